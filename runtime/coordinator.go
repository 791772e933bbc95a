// Package runtime executes scenarios against the job execution API.
//
// The Coordinator runs a suite's scenarios on a bounded worker pool, applying
// the suite-wide abort and whole-scenario retry policies. Each scenario is
// submitted and awaited by the Executor, its result bundle is fetched lazily
// by a Collector, and its checks are evaluated by the assertion engine.
package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/pithecene-io/canary/assert"
	"github.com/pithecene-io/canary/log"
	"github.com/pithecene-io/canary/metrics"
	"github.com/pithecene-io/canary/platform"
	"github.com/pithecene-io/canary/report"
	"github.com/pithecene-io/canary/spec"
	"github.com/pithecene-io/canary/types"
)

// CoordinatorConfig configures a suite execution.
type CoordinatorConfig struct {
	// Suite is the immutable suite configuration. Defaults are applied.
	Suite types.SuiteConfig
	// SuiteRunID identifies this execution in logs, history and reports.
	SuiteRunID string
	Client     platform.Client
	// Logger is optional; nil discards.
	Logger *log.Logger
	// Metrics is optional; all Collector methods are nil-safe.
	Metrics *metrics.Collector
	// Recorder is optional; when set every submission and fetched view is archived.
	Recorder Recorder
	// RunLink builds the deep link to a run. Nil uses the default console URL.
	RunLink func(h *types.JobHandle) string
	// SubmitRetries and Backoff tune the executor (see ExecutorConfig).
	SubmitRetries int
	Backoff       BackoffFunc
}

// Coordinator runs all scenarios of a suite.
type Coordinator struct {
	suite      types.SuiteConfig
	suiteRunID string
	client     platform.Client
	executor   *Executor
	engine     *assert.Engine
	logger     *log.Logger
	metrics    *metrics.Collector
	recorder   Recorder
	runLink    func(h *types.JobHandle) string
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	suite := cfg.Suite.WithDefaults()
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	runLink := cfg.RunLink
	if runLink == nil {
		runLink = func(h *types.JobHandle) string { return report.RunLink(h, report.DefaultConsoleURL) }
	}
	return &Coordinator{
		suite:      suite,
		suiteRunID: cfg.SuiteRunID,
		client:     cfg.Client,
		executor: NewExecutor(ExecutorConfig{
			Client:        cfg.Client,
			PollInterval:  suite.PollInterval,
			SubmitRetries: cfg.SubmitRetries,
			Backoff:       cfg.Backoff,
			Metrics:       cfg.Metrics,
		}),
		engine:   assert.NewEngine(logger),
		logger:   logger,
		metrics:  cfg.Metrics,
		recorder: cfg.Recorder,
		runLink:  runLink,
	}
}

// failureLog is the suite's append-only failure accumulator.
type failureLog struct {
	mu       sync.Mutex
	failures []types.FailureRecord
}

func (l *failureLog) append(fs []types.FailureRecord) {
	l.mu.Lock()
	l.failures = append(l.failures, fs...)
	l.mu.Unlock()
}

// Run executes every scenario and aggregates the outcomes. It never returns
// per-scenario errors: those are reported in the result. Cancelling ctx (or
// the suite timeout elapsing) aborts pending and running scenarios.
//
// Scenario results are ordered by registration index. Failures are in
// completion order; the reporter sorts them.
func (c *Coordinator) Run(ctx context.Context, scenarios []spec.Scenario) *types.SuiteResult {
	started := time.Now()

	suiteCtx := ctx
	if c.suite.SuiteTimeout > 0 {
		var cancel context.CancelFunc
		suiteCtx, cancel = context.WithTimeout(ctx, c.suite.SuiteTimeout)
		defer cancel()
	}
	runCtx, abort := context.WithCancelCause(suiteCtx)
	defer abort(nil)

	c.logger.Info("suite started", map[string]any{
		"scenarios":   len(scenarios),
		"concurrency": c.suite.Concurrency,
		"abort_runs":  c.suite.AbortRuns,
		"retry":       c.suite.RetryFailedTests,
	})

	results := make([]types.ScenarioResult, len(scenarios))
	var failures failureLog
	p := pool.New().WithMaxGoroutines(c.suite.Concurrency)
	for i, s := range scenarios {
		p.Go(func() {
			res := c.runScenario(runCtx, s)
			results[i] = res
			failures.append(res.Failures)
			c.metrics.RecordScenarioOutcome(string(res.Status))
			c.metrics.AddFailureRecords(len(res.Failures))

			if c.suite.AbortRuns && res.Status.IsTerminalFailure() && runCtx.Err() == nil {
				c.logger.Warn("aborting suite", map[string]any{"scenario": s.Name, "status": string(res.Status)})
				abort(&AbortTrigger{Scenario: s.Name, Status: res.Status})
			}
		})
	}
	p.Wait()

	result := &types.SuiteResult{
		SuiteName:  c.suite.Name,
		SuiteRunID: c.suiteRunID,
		StartedAt:  started.UTC(),
		Duration:   time.Since(started),
		Scenarios:  results,
		Failures:   failures.failures,
	}
	result.Status = suiteStatus(suiteCtx, result)

	c.logger.Info("suite finished", map[string]any{
		"status":   string(result.Status),
		"passed":   result.Count(types.ScenarioPassed),
		"failed":   len(scenarios) - result.Count(types.ScenarioPassed),
		"failures": len(result.Failures),
		"duration": result.Duration.String(),
	})
	return result
}

// runScenario runs a scenario, retrying it once in full when the policy allows.
// Only the final attempt is reported.
func (c *Coordinator) runScenario(ctx context.Context, s spec.Scenario) types.ScenarioResult {
	res := c.attempt(ctx, s, 1)
	if !c.suite.RetryFailedTests || !needsRetry(res) || ctx.Err() != nil {
		return res
	}

	c.metrics.IncScenarioRetry()
	c.logger.ForScenario(s.Name, 1).Info("retrying scenario", map[string]any{
		"status":   string(res.Status),
		"failures": len(res.Failures),
	})
	return c.attempt(ctx, s, 2)
}

// suiteStatus is SUCCEEDED iff every scenario passed, ABORTED if the suite
// deadline or the caller's context ended the run, FAILED otherwise.
// An abort triggered by a failing scenario is FAILED: a real failure occurred.
func suiteStatus(suiteCtx context.Context, r *types.SuiteResult) types.SuiteStatus {
	if r.Count(types.ScenarioPassed) == len(r.Scenarios) {
		return types.SuiteSucceeded
	}
	if suiteCtx.Err() != nil {
		return types.SuiteAborted
	}
	return types.SuiteFailed
}
