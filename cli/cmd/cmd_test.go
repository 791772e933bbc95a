package cmd

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/canary/archive"
	"github.com/pithecene-io/canary/cli/config"
	"github.com/pithecene-io/canary/history"
	"github.com/pithecene-io/canary/platform/platformtest"
	"github.com/pithecene-io/canary/types"
)

const suiteInput = `
suiteName: reddit
pollInterval: 5
testSpec:
  groups:
    - name: Reddit scraper
      actorId: trudax/reddit-scraper
      builds: [beta, latest]
      scenarios:
        - name: posts
          input: {maxItems: 10}
          assertions:
            status: SUCCEEDED
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadSuite(t *testing.T) *config.Suite {
	t.Helper()
	suite, err := config.LoadSuite(writeFile(t, "suite.yaml", suiteInput))
	if err != nil {
		t.Fatalf("LoadSuite: %v", err)
	}
	return suite
}

// testApp runs commands without exiting the test process.
func testApp(commands ...*cli.Command) *cli.App {
	return &cli.App{
		Name:           "canary",
		Commands:       commands,
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var ec cli.ExitCoder
	if !errors.As(err, &ec) {
		t.Fatalf("error is not an ExitCoder: %v", err)
	}
	return ec.ExitCode()
}

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	hasTUI := false
	for _, f := range ReadOnlyFlags() {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}
	if !hasTUI {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

func TestStatusToExitCode(t *testing.T) {
	tests := []struct {
		status types.SuiteStatus
		want   int
	}{
		{types.SuiteSucceeded, 0},
		{types.SuiteFailed, 1},
		{types.SuiteAborted, 3},
		{"", 1},
	}
	for _, tt := range tests {
		if got := statusToExitCode(tt.status); got != tt.want {
			t.Errorf("statusToExitCode(%q) = %d, want %d", tt.status, got, tt.want)
		}
	}
}

func TestSubmitRetries(t *testing.T) {
	intPtr := func(v int) *int { return &v }
	tests := []struct {
		name string
		in   *int
		want int
	}{
		{"unset uses default", nil, 0},
		{"zero disables", intPtr(0), -1},
		{"explicit", intPtr(5), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := submitRetries(tt.in); got != tt.want {
				t.Errorf("submitRetries = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	resp := summarize(loadSuite(t))
	if resp.Suite != "reddit" || len(resp.Scenarios) != 2 {
		t.Fatalf("resp = %+v", resp)
	}
	first := resp.Scenarios[0]
	if first.Name != "Reddit scraper (beta version) › posts" {
		t.Errorf("Name = %q", first.Name)
	}
	if first.Target != "trudax/reddit-scraper" || first.Build != "beta" {
		t.Errorf("first = %+v", first)
	}
	if first.Timeout != "10m0s" || first.Checks != 1 {
		t.Errorf("first = %+v", first)
	}
	if len(first.Views) != 1 || first.Views[0] != string(types.ViewStatus) {
		t.Errorf("Views = %v", first.Views)
	}
	if resp.Scenarios[1].Build != "latest" {
		t.Errorf("second build = %q", resp.Scenarios[1].Build)
	}
}

type webhookSink struct {
	mu     sync.Mutex
	events []map[string]any
}

func (s *webhookSink) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event map[string]any
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.events = append(s.events, event)
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (s *webhookSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestExecution_RunAndFinalize(t *testing.T) {
	tests := []struct {
		name          string
		statuses      []types.JobStatus
		notifySuccess bool
		wantStatus    types.SuiteStatus
		wantEvents    int
	}{
		{"success is not delivered", nil, false, types.SuiteSucceeded, 0},
		{"success delivered on request", nil, true, types.SuiteSucceeded, 1},
		{"failure always delivered", []types.JobStatus{types.JobStatusFailed}, false, types.SuiteFailed, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := platformtest.New()
			fake.Default = platformtest.Run{Statuses: tt.statuses}
			sink := &webhookSink{}
			srv := sink.server(t)
			historyDir := t.TempDir()

			ex := execution{
				suite: loadSuite(t),
				cfg: &config.Config{
					History: config.HistoryConfig{Backend: history.BackendFS, Path: historyDir},
					Notify:  config.NotifyConfig{Type: config.NotifyWebhook, URL: srv.URL},
				},
				suiteRunID: "sr-1",
				client:     fake,
				platform:   "fake",
			}
			result := ex.run(t.Context())
			if result.Status != tt.wantStatus {
				t.Fatalf("Status = %s, want %s", result.Status, tt.wantStatus)
			}
			ex.finalize(t.Context(), result, tt.notifySuccess)

			if got := sink.count(); got != tt.wantEvents {
				t.Errorf("delivered %d events, want %d", got, tt.wantEvents)
			}
			if tt.wantEvents > 0 {
				event := sink.events[0]
				if text, _ := event["text"].(string); event["suite_run_id"] != "sr-1" || text == "" {
					t.Errorf("event = %v", event)
				}
			}

			store, err := history.Open(t.Context(), history.Config{Path: historyDir})
			if err != nil {
				t.Fatal(err)
			}
			latest, err := store.Latest(t.Context(), "reddit")
			if err != nil {
				t.Fatalf("Latest: %v", err)
			}
			if latest.SuiteRunID != "sr-1" || latest.Status != tt.wantStatus {
				t.Errorf("latest = %+v", latest)
			}

			snap := ex.metrics.Snapshot()
			if snap.HistoryWriteSuccess != 1 || snap.HistoryWriteFailure != 0 {
				t.Errorf("history metrics = %d/%d", snap.HistoryWriteSuccess, snap.HistoryWriteFailure)
			}
		})
	}
}

func TestExecution_HistoryFailureKeepsOutcome(t *testing.T) {
	// A file where the history directory should be.
	blocker := writeFile(t, "blocker", "x")

	ex := execution{
		suite: loadSuite(t),
		cfg: &config.Config{
			History: config.HistoryConfig{Path: filepath.Join(blocker, "history")},
		},
		suiteRunID: "sr-2",
		client:     platformtest.New(),
		platform:   "fake",
	}
	result := ex.run(t.Context())
	ex.finalize(t.Context(), result, false)

	if result.Status != types.SuiteSucceeded {
		t.Errorf("Status = %s", result.Status)
	}
	if snap := ex.metrics.Snapshot(); snap.HistoryWriteFailure != 1 {
		t.Errorf("HistoryWriteFailure = %d, want 1", snap.HistoryWriteFailure)
	}
}

func TestReplayCommand(t *testing.T) {
	dir := t.TempDir()
	inputPath := writeFile(t, "suite.yaml", suiteInput)
	suite, err := config.LoadSuite(inputPath)
	if err != nil {
		t.Fatal(err)
	}

	w, err := archive.Create(dir, suite.Config.Name, "sr-rec")
	if err != nil {
		t.Fatal(err)
	}
	ex := execution{
		suite:      suite,
		cfg:        &config.Config{},
		suiteRunID: "sr-rec",
		client:     platformtest.New(),
		platform:   "fake",
		recorder:   w,
	}
	if got := ex.run(t.Context()); got.Status != types.SuiteSucceeded {
		t.Fatalf("recorded status = %s", got.Status)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	err = testApp(ReplayCommand()).Run([]string{
		"canary", "replay", "--input", inputPath, "--archive", archive.Path(dir, "sr-rec"), "--quiet",
	})
	if code := exitCode(t, err); code != exitSucceeded {
		t.Errorf("exit code = %d, want %d (err %v)", code, exitSucceeded, err)
	}
}

func TestCommands_ConfigErrors(t *testing.T) {
	valid := writeFile(t, "suite.yaml", suiteInput)
	malformed := writeFile(t, "bad.yaml", "testSpec:\n  scenarios:\n    - name: a\n      actorId: x\n")
	badConfig := writeFile(t, "canary.yaml", "notify:\n  type: carrier-pigeon\n")

	tests := []struct {
		name string
		args []string
	}{
		{"validate malformed spec", []string{"validate", "--input", malformed}},
		{"validate missing input", []string{"validate", "--input", filepath.Join(t.TempDir(), "nope.yaml")}},
		{"validate rejects tui", []string{"validate", "--input", valid, "--tui"}},
		{"run bad tool config", []string{"run", "--input", valid, "--config", badConfig}},
		{"run missing explicit config", []string{"run", "--input", valid, "--config", filepath.Join(t.TempDir(), "nope.yaml")}},
		{"run invalid format", []string{"run", "--input", valid, "--format", "xml"}},
		{"replay missing archive", []string{"replay", "--input", valid, "--archive", filepath.Join(t.TempDir(), "nope.canary")}},
		{"stats bad limit", []string{"stats", "--limit", "0"}},
		{"inspect without id", []string{"inspect"}},
		{"version rejects tui", []string{"version", "--tui"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := testApp(RunCommand(), ValidateCommand(), ReplayCommand(), StatsCommand(), InspectCommand(), VersionCommand("abc"))
			err := app.Run(append([]string{"canary"}, tt.args...))
			if code := exitCode(t, err); code != exitConfigError {
				t.Errorf("exit code = %d, want %d (err %v)", code, exitConfigError, err)
			}
		})
	}
}

func TestStatsAndInspect_ReadHistory(t *testing.T) {
	historyDir := t.TempDir()
	store, err := history.Open(t.Context(), history.Config{Path: historyDir})
	if err != nil {
		t.Fatal(err)
	}
	result := &types.SuiteResult{
		SuiteName:  "reddit",
		SuiteRunID: "sr-7",
		Status:     types.SuiteSucceeded,
		Scenarios:  []types.ScenarioResult{{Index: 0, Name: "posts", Status: types.ScenarioPassed, Attempts: 1}},
	}
	if err := store.Write(t.Context(), result); err != nil {
		t.Fatal(err)
	}

	run := func(args ...string) error {
		return testApp(StatsCommand(), InspectCommand()).Run(append([]string{"canary"}, args...))
	}
	tests := [][]string{
		{"stats", "--suite", "reddit", "--history-path", historyDir, "--format", "json"},
		{"inspect", "--suite-run-id", "sr-7", "--history-path", historyDir, "--format", "json"},
		{"inspect", "--history-path", historyDir, "--format", "yaml", "sr-7"},
	}
	for _, args := range tests {
		if err := run(args...); err != nil {
			t.Errorf("%v: %v", args, err)
		}
	}

	if err := run("inspect", "--suite-run-id", "sr-404", "--history-path", historyDir); err == nil {
		t.Error("inspect of unknown run should fail")
	}
	if err := run("stats"); err == nil {
		t.Error("stats without history configured should fail")
	}
}
