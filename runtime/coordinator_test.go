package runtime

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/canary/assert"
	"github.com/pithecene-io/canary/metrics"
	"github.com/pithecene-io/canary/platform"
	"github.com/pithecene-io/canary/platform/platformtest"
	"github.com/pithecene-io/canary/spec"
	"github.com/pithecene-io/canary/types"
)

func newTestCoordinator(fake *platformtest.Fake, suite types.SuiteConfig) *Coordinator {
	if suite.PollInterval == 0 {
		suite.PollInterval = 5 * time.Millisecond
	}
	return NewCoordinator(CoordinatorConfig{
		Suite:      suite,
		SuiteRunID: "suite-run-1",
		Client:     fake,
		Backoff:    noBackoff,
	})
}

func scenario(index int, actor string, checks ...assert.Check) spec.Scenario {
	return spec.Scenario{
		Index:  index,
		Name:   fmt.Sprintf("scenario %d (%s)", index, actor),
		Job:    types.JobDescriptor{ActorID: actor, Input: map[string]any{"maxItems": 10}},
		Checks: checks,
	}
}

func statusCheck() assert.Check {
	return assert.Status("status", assert.Equals("SUCCEEDED"))
}

func postItems(n int) []types.Record {
	items := make([]types.Record, n)
	for i := range items {
		items[i] = types.Record{
			"dataType": "post",
			"title":    fmt.Sprintf("post %d", i),
			"url":      fmt.Sprintf("https://www.reddit.com/r/pizza/comments/%d", i),
		}
	}
	return items
}

func redditChecks() []assert.Check {
	return []assert.Check{
		statusCheck(),
		assert.Log("no reference errors", assert.Not(assert.Contains("ReferenceError"))),
		assert.Log("debug", assert.Contains("DEBUG")),
		assert.Stats("retries", "requestsRetries", assert.LessThan(5)),
		assert.Stats("runtime", "crawlerRuntimeMillis", assert.Within(6000, 600000)),
		assert.Info("clean items", "cleanItemCount", assert.Equals(10)),
		assert.Items("items", assert.NonEmptyArray()),
		assert.ItemShapes("shape", assert.ShapeTable{
			"post": {
				{Field: "title", Matcher: assert.NonEmptyString()},
				{Field: "url", Matcher: assert.StartsWith("https://www.reddit.com/r/")},
			},
		}),
	}
}

func healthyRun() platformtest.Run {
	return platformtest.Run{
		Statuses: []types.JobStatus{types.JobStatusRunning, types.JobStatusSucceeded},
		Log:      "INFO start\nDEBUG crawling\nINFO done",
		Items:    postItems(10),
		Stats:    &types.Statistics{RequestsRetries: 0, CrawlerRuntimeMillis: 30000},
	}
}

func TestCoordinator_EndToEndSucceeded(t *testing.T) {
	fake := platformtest.New()
	fake.Script("reddit", healthyRun())
	m := metrics.NewCollector("reddit", "suite-run-1", "fake", "")
	c := NewCoordinator(CoordinatorConfig{
		Suite:   types.SuiteConfig{Name: "reddit", PollInterval: 5 * time.Millisecond},
		Client:  fake,
		Metrics: m,
	})

	result := c.Run(t.Context(), []spec.Scenario{scenario(0, "reddit", redditChecks()...)})

	if result.Status != types.SuiteSucceeded {
		t.Fatalf("suite status = %s, want SUCCEEDED; failures: %+v", result.Status, result.Failures)
	}
	if len(result.Failures) != 0 {
		t.Errorf("expected zero failures, got %+v", result.Failures)
	}
	s := result.Scenarios[0]
	if s.Status != types.ScenarioPassed || s.JobStatus != types.JobStatusSucceeded || s.Attempts != 1 {
		t.Errorf("unexpected scenario result %+v", s)
	}
	if s.Handle == nil || s.Handle.RunID == "" {
		t.Error("passed scenario should carry its handle")
	}
	if snap := m.Snapshot(); snap.ScenariosPassed != 1 || snap.Fetches["dataset_items"] != 1 {
		t.Errorf("unexpected metrics %+v", snap)
	}
}

func TestCoordinator_OneFailurePerPredicateWithRunLink(t *testing.T) {
	run := healthyRun()
	run.Log = "ReferenceError: x is not defined"
	run.Items[3]["url"] = "https://example.com/elsewhere"
	fake := platformtest.New()
	fake.Script("reddit", run)

	result := newTestCoordinator(fake, types.SuiteConfig{}).Run(t.Context(), []spec.Scenario{scenario(0, "reddit", redditChecks()...)})

	if result.Status != types.SuiteFailed {
		t.Fatalf("suite status = %s, want FAILED", result.Status)
	}
	wantLabels := []string{"no reference errors", "debug", "shape"}
	if len(result.Failures) != len(wantLabels) {
		t.Fatalf("got %d failures, want %d: %+v", len(result.Failures), len(wantLabels), result.Failures)
	}
	for i, f := range result.Failures {
		if f.ContextLabel != wantLabels[i] {
			t.Errorf("failure %d label = %q, want %q", i, f.ContextLabel, wantLabels[i])
		}
		if f.Kind != types.FailureAssertion {
			t.Errorf("failure %d kind = %s", i, f.Kind)
		}
		if !strings.HasPrefix(f.RunLink, "https://console.apify.com/actors/reddit/runs/") {
			t.Errorf("failure %d run link = %q", i, f.RunLink)
		}
	}
	if result.Scenarios[0].Status != types.ScenarioFailed {
		t.Errorf("scenario status = %s", result.Scenarios[0].Status)
	}
}

func TestCoordinator_AbortPropagation(t *testing.T) {
	fake := platformtest.New()
	fake.Script("a", platformtest.Run{Statuses: []types.JobStatus{types.JobStatusFailed}})
	fake.Script("b", platformtest.Run{Statuses: []types.JobStatus{types.JobStatusRunning}})
	fake.Script("c", platformtest.Run{Statuses: []types.JobStatus{types.JobStatusRunning}})

	c := newTestCoordinator(fake, types.SuiteConfig{AbortRuns: true, Concurrency: 3, DefaultTimeout: time.Minute})
	start := time.Now()
	result := c.Run(t.Context(), []spec.Scenario{
		scenario(0, "a", statusCheck()),
		scenario(1, "b", statusCheck()),
		scenario(2, "c", statusCheck()),
	})

	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("abort did not unwind promptly: %v", elapsed)
	}
	if got := result.Scenarios[0].Status; got != types.ScenarioFailed {
		t.Errorf("scenario a = %s, want failed", got)
	}
	for _, i := range []int{1, 2} {
		s := result.Scenarios[i]
		if s.Status != types.ScenarioAborted {
			t.Errorf("scenario %d = %s, want aborted", i, s.Status)
		}
		if len(s.Failures) != 1 || s.Failures[0].Kind != types.FailureAborted {
			t.Errorf("scenario %d should carry one aborted record, got %+v", i, s.Failures)
		}
		if !strings.Contains(s.Failures[0].Message, `scenario "scenario 0 (a)" failed`) {
			t.Errorf("aborted record should name the trigger: %q", s.Failures[0].Message)
		}
	}
	if result.Status != types.SuiteFailed {
		t.Errorf("suite status = %s, want FAILED", result.Status)
	}
	submittedAndAborted := 0
	for _, s := range result.Scenarios[1:] {
		if s.Handle != nil {
			submittedAndAborted++
		}
	}
	if got := len(fake.Canceled()); got != submittedAndAborted {
		t.Errorf("expected %d running jobs cancelled, got %d", submittedAndAborted, got)
	}
}

func TestCoordinator_JobFailureWithoutStatusCheck(t *testing.T) {
	logCheck := assert.Log("log", assert.Contains("INFO"))
	fake := platformtest.New()
	fake.Script("a", platformtest.Run{Statuses: []types.JobStatus{types.JobStatusFailed}, Log: "INFO crashed"})
	fake.Script("b", platformtest.Run{Statuses: []types.JobStatus{types.JobStatusRunning}, Log: "INFO"})

	c := newTestCoordinator(fake, types.SuiteConfig{AbortRuns: true, Concurrency: 2, DefaultTimeout: time.Minute})
	result := c.Run(t.Context(), []spec.Scenario{
		scenario(0, "a", logCheck),
		scenario(1, "b", logCheck),
	})

	a := result.Scenarios[0]
	if a.Status != types.ScenarioFailed {
		t.Fatalf("scenario a = %s, want failed", a.Status)
	}
	if len(a.Failures) != 1 || a.Failures[0].Kind != types.FailureJobStatus || a.Failures[0].ContextLabel != "status" {
		t.Fatalf("expected one job status record, got %+v", a.Failures)
	}
	if !strings.Contains(a.Failures[0].Message, "FAILED") || a.Failures[0].RunLink == "" {
		t.Errorf("job status record = %+v", a.Failures[0])
	}
	if got := result.Scenarios[1].Status; got != types.ScenarioAborted {
		t.Errorf("scenario b = %s, want aborted", got)
	}
	if result.Status != types.SuiteFailed {
		t.Errorf("suite = %s, want FAILED", result.Status)
	}
}

func TestCoordinator_TerminalJobStatusOutcome(t *testing.T) {
	tests := []struct {
		name       string
		status     types.JobStatus
		checks     []assert.Check
		want       types.ScenarioStatus
		wantRecord int
	}{
		{"timed out on platform", types.JobStatusTimedOut, []assert.Check{assert.Log("log", assert.Contains("INFO"))}, types.ScenarioTimedOut, 1},
		{"aborted on platform", types.JobStatusAborted, nil, types.ScenarioFailed, 1},
		{"declared status check stands in", types.JobStatusFailed, []assert.Check{statusCheck()}, types.ScenarioFailed, 1},
		{"passing status check still fails", types.JobStatusFailed, []assert.Check{assert.Status("expect failure", assert.Equals("FAILED"))}, types.ScenarioFailed, 1},
		{"succeeded", types.JobStatusSucceeded, []assert.Check{assert.Log("log", assert.Contains("INFO"))}, types.ScenarioPassed, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := platformtest.New()
			fake.Script("a", platformtest.Run{Statuses: []types.JobStatus{tt.status}, Log: "INFO"})

			result := newTestCoordinator(fake, types.SuiteConfig{}).Run(t.Context(), []spec.Scenario{scenario(0, "a", tt.checks...)})

			s := result.Scenarios[0]
			if s.Status != tt.want {
				t.Errorf("scenario = %s, want %s", s.Status, tt.want)
			}
			if len(result.Failures) != tt.wantRecord {
				t.Errorf("got %d failures, want %d: %+v", len(result.Failures), tt.wantRecord, result.Failures)
			}
			if tt.want != types.ScenarioPassed && result.Status != types.SuiteFailed {
				t.Errorf("suite = %s, want FAILED", result.Status)
			}
		})
	}
}

func TestCoordinator_AbortSkipsUnstartedScenarios(t *testing.T) {
	fake := platformtest.New()
	fake.Script("a", platformtest.Run{Statuses: []types.JobStatus{types.JobStatusFailed}})

	c := newTestCoordinator(fake, types.SuiteConfig{AbortRuns: true, Concurrency: 1})
	result := c.Run(t.Context(), []spec.Scenario{
		scenario(0, "a", statusCheck()),
		scenario(1, "b", statusCheck()),
	})

	s := result.Scenarios[1]
	if s.Status != types.ScenarioAborted {
		t.Fatalf("scenario b = %s, want aborted", s.Status)
	}
	if s.Handle != nil {
		t.Error("unstarted scenario must not be submitted")
	}
	if s.Failures[0].RunLink != "" {
		t.Errorf("never-submitted scenario has no run link, got %q", s.Failures[0].RunLink)
	}
	if got := fake.Calls("submit"); got != 1 {
		t.Errorf("submit calls = %d, want 1", got)
	}
}

func TestCoordinator_NoAbortWithoutFlag(t *testing.T) {
	fake := platformtest.New()
	fake.Script("a", platformtest.Run{Statuses: []types.JobStatus{types.JobStatusFailed}})

	result := newTestCoordinator(fake, types.SuiteConfig{Concurrency: 1}).Run(t.Context(), []spec.Scenario{
		scenario(0, "a", statusCheck()),
		scenario(1, "b", statusCheck()),
	})

	if got := result.Scenarios[1].Status; got != types.ScenarioPassed {
		t.Errorf("scenario b = %s, want passed", got)
	}
}

func TestCoordinator_RetryReportsSecondOutcome(t *testing.T) {
	fake := platformtest.New()
	first := healthyRun()
	first.Statuses = []types.JobStatus{types.JobStatusFailed}
	first.Log = "TypeError"
	fake.Script("reddit", first, healthyRun())
	m := metrics.NewCollector("s", "r", "fake", "")

	c := NewCoordinator(CoordinatorConfig{
		Suite:   types.SuiteConfig{RetryFailedTests: true, PollInterval: 5 * time.Millisecond},
		Client:  fake,
		Metrics: m,
	})
	result := c.Run(t.Context(), []spec.Scenario{scenario(0, "reddit", redditChecks()...)})

	s := result.Scenarios[0]
	if s.Status != types.ScenarioPassed {
		t.Fatalf("scenario = %s, want passed", s.Status)
	}
	if s.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", s.Attempts)
	}
	if len(result.Failures) != 0 || len(s.Failures) != 0 {
		t.Errorf("first attempt failures must be discarded, got %+v", result.Failures)
	}
	if result.Status != types.SuiteSucceeded {
		t.Errorf("suite = %s, want SUCCEEDED", result.Status)
	}
	if got := fake.Calls("submit"); got != 2 {
		t.Errorf("submit calls = %d, want 2", got)
	}
	if m.Snapshot().ScenarioRetries != 1 {
		t.Error("retry not counted")
	}
}

func TestCoordinator_RetryFailsTwice(t *testing.T) {
	fake := platformtest.New()
	fake.Script("a", platformtest.Run{Statuses: []types.JobStatus{types.JobStatusFailed}})

	result := newTestCoordinator(fake, types.SuiteConfig{RetryFailedTests: true}).Run(t.Context(), []spec.Scenario{scenario(0, "a", statusCheck())})

	s := result.Scenarios[0]
	if s.Status != types.ScenarioFailed || s.Attempts != 2 {
		t.Errorf("scenario = %s after %d attempts, want failed after 2", s.Status, s.Attempts)
	}
	if len(result.Failures) != 1 {
		t.Errorf("only the second attempt's failures are reported, got %d", len(result.Failures))
	}
}

func TestCoordinator_RetrySubmissionFailure(t *testing.T) {
	fake := platformtest.New()
	fake.Script("a", platformtest.Run{SubmitErr: &platform.StatusError{Code: 403, Op: "submit"}}, platformtest.Run{})

	result := newTestCoordinator(fake, types.SuiteConfig{RetryFailedTests: true}).Run(t.Context(), []spec.Scenario{scenario(0, "a", statusCheck())})

	if s := result.Scenarios[0]; s.Status != types.ScenarioPassed || s.Attempts != 2 {
		t.Errorf("scenario = %s after %d attempts, want passed after 2", s.Status, s.Attempts)
	}
}

func TestCoordinator_NoRetryWithoutFlag(t *testing.T) {
	fake := platformtest.New()
	fake.Script("a", platformtest.Run{Statuses: []types.JobStatus{types.JobStatusFailed}}, platformtest.Run{})

	result := newTestCoordinator(fake, types.SuiteConfig{}).Run(t.Context(), []spec.Scenario{scenario(0, "a", statusCheck())})

	if s := result.Scenarios[0]; s.Status != types.ScenarioFailed || s.Attempts != 1 {
		t.Errorf("scenario = %s after %d attempts, want failed after 1", s.Status, s.Attempts)
	}
}

func TestCoordinator_SubmissionError(t *testing.T) {
	fake := platformtest.New()
	fake.Script("a", platformtest.Run{SubmitErr: &platform.StatusError{Code: 404, Op: "submit", Body: "actor not found"}})

	result := newTestCoordinator(fake, types.SuiteConfig{}).Run(t.Context(), []spec.Scenario{scenario(0, "a", statusCheck())})

	s := result.Scenarios[0]
	if s.Status != types.ScenarioErrored {
		t.Fatalf("scenario = %s, want errored", s.Status)
	}
	f := result.Failures[0]
	if f.Kind != types.FailureSubmission || !strings.Contains(f.Message, "actor not found") {
		t.Errorf("unexpected failure %+v", f)
	}
}

func TestCoordinator_ScenarioTimeout(t *testing.T) {
	fake := platformtest.New()
	fake.Script("slow", platformtest.Run{Statuses: []types.JobStatus{types.JobStatusRunning}})

	sc := scenario(0, "slow", statusCheck())
	sc.Timeout = 30 * time.Millisecond
	result := newTestCoordinator(fake, types.SuiteConfig{DefaultTimeout: time.Minute}).Run(t.Context(), []spec.Scenario{sc})

	s := result.Scenarios[0]
	if s.Status != types.ScenarioTimedOut {
		t.Fatalf("scenario = %s, want timed_out", s.Status)
	}
	if result.Failures[0].Kind != types.FailureTimeout {
		t.Errorf("failure kind = %s", result.Failures[0].Kind)
	}
	if len(fake.Canceled()) != 1 {
		t.Error("timed out job must be cancelled")
	}
	if result.Status != types.SuiteFailed {
		t.Errorf("suite = %s, want FAILED", result.Status)
	}
}

func TestCoordinator_SuiteTimeoutAborts(t *testing.T) {
	fake := platformtest.New()
	fake.Script("slow", platformtest.Run{Statuses: []types.JobStatus{types.JobStatusRunning}})

	c := newTestCoordinator(fake, types.SuiteConfig{SuiteTimeout: 40 * time.Millisecond, DefaultTimeout: time.Minute})
	result := c.Run(t.Context(), []spec.Scenario{scenario(0, "slow", statusCheck())})

	if got := result.Scenarios[0].Status; got != types.ScenarioAborted {
		t.Errorf("scenario = %s, want aborted", got)
	}
	if result.Status != types.SuiteAborted {
		t.Errorf("suite = %s, want ABORTED", result.Status)
	}
}

func TestCoordinator_CallerCancellationAborts(t *testing.T) {
	fake := platformtest.New()
	fake.Script("slow", platformtest.Run{Statuses: []types.JobStatus{types.JobStatusRunning}})

	ctx, cancel := context.WithCancel(t.Context())
	time.AfterFunc(30*time.Millisecond, cancel)

	result := newTestCoordinator(fake, types.SuiteConfig{DefaultTimeout: time.Minute}).Run(ctx, []spec.Scenario{scenario(0, "slow", statusCheck())})

	if result.Status != types.SuiteAborted {
		t.Errorf("suite = %s, want ABORTED", result.Status)
	}
}

func TestCoordinator_FetchErrorErrorsScenario(t *testing.T) {
	fake := platformtest.New()
	fake.Script("a", platformtest.Run{FetchErr: &platform.StatusError{Code: 500, Op: "log"}})

	checks := []assert.Check{
		assert.Status("status", assert.Equals("FAILED")),
		assert.Log("log", assert.Contains("DEBUG")),
		assert.Stats("retries", "requestsRetries", assert.LessThan(5)),
	}
	result := newTestCoordinator(fake, types.SuiteConfig{}).Run(t.Context(), []spec.Scenario{scenario(0, "a", checks...)})

	s := result.Scenarios[0]
	if s.Status != types.ScenarioErrored {
		t.Fatalf("scenario = %s, want errored", s.Status)
	}
	if len(s.Failures) != 2 {
		t.Fatalf("expected the status failure and the fetch failure, got %+v", s.Failures)
	}
	if s.Failures[0].Kind != types.FailureAssertion || s.Failures[1].Kind != types.FailureFetch {
		t.Errorf("unexpected kinds %s, %s", s.Failures[0].Kind, s.Failures[1].Kind)
	}
	if s.Failures[1].ContextLabel != "fetch log" {
		t.Errorf("fetch label = %q", s.Failures[1].ContextLabel)
	}
	if fake.Calls(string(types.ViewStatistics)) != 0 {
		t.Error("checks after the fetch error must be skipped")
	}
}

func TestCoordinator_ResultsInRegistrationOrder(t *testing.T) {
	fake := platformtest.New()
	var scenarios []spec.Scenario
	for i := range 8 {
		actor := fmt.Sprintf("act-%d", i)
		fake.Script(actor, platformtest.Run{Statuses: []types.JobStatus{types.JobStatusRunning, types.JobStatusSucceeded}})
		scenarios = append(scenarios, scenario(i, actor, statusCheck()))
	}

	result := newTestCoordinator(fake, types.SuiteConfig{Concurrency: 4}).Run(t.Context(), scenarios)

	for i, s := range result.Scenarios {
		if s.Index != i {
			t.Errorf("result %d has index %d", i, s.Index)
		}
	}
	if result.Status != types.SuiteSucceeded {
		t.Errorf("suite = %s", result.Status)
	}
	if result.SuiteRunID != "suite-run-1" {
		t.Errorf("suite run id = %q", result.SuiteRunID)
	}
}
