package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/pithecene-io/canary/assert"
	"github.com/pithecene-io/canary/log"
	"github.com/pithecene-io/canary/spec"
	"github.com/pithecene-io/canary/types"
)

// attempt runs one scenario execution end to end: submit, await terminal
// status, collect and evaluate. Every per-scenario error is converted into
// the result's status and failure records here; none escape.
func (c *Coordinator) attempt(ctx context.Context, s spec.Scenario, n int) (res types.ScenarioResult) {
	start := time.Now()
	logger := c.logger.ForScenario(s.Name, n)
	res = types.ScenarioResult{Index: s.Index, Name: s.Name, Attempts: n}
	defer func() { res.Duration = time.Since(start) }()

	if ctx.Err() != nil {
		c.finishAborted(&res, abortError(ctx), logger)
		return res
	}
	c.metrics.IncScenarioStarted()

	h, err := c.executor.Submit(ctx, s.Job, logger)
	if err != nil {
		if errors.Is(err, ErrAborted) {
			c.finishAborted(&res, err, logger)
			return res
		}
		res.Status = types.ScenarioErrored
		res.Failures = append(res.Failures, c.failure(s, nil, types.FailureSubmission, "submission", err.Error()))
		logger.Error("scenario errored", map[string]any{"error": err.Error()})
		return res
	}
	res.Handle = h
	logger = logger.ForJob(h)
	c.record(func(r Recorder) error { return r.RecordSubmission(s.Job, h) }, logger)

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = c.suite.DefaultTimeout
	}
	status, err := c.executor.AwaitTerminal(ctx, h, timeout, logger)
	res.JobStatus = status
	if err != nil {
		var timeoutErr *ExecutionTimeoutError
		switch {
		case errors.Is(err, ErrAborted):
			c.finishAborted(&res, err, logger)
		case errors.As(err, &timeoutErr):
			res.Status = types.ScenarioTimedOut
			res.Failures = append(res.Failures, c.failure(s, h, types.FailureTimeout, "timeout", err.Error()))
			logger.Warn("scenario timed out", map[string]any{"timeout": timeout.String()})
		default:
			res.Status = types.ScenarioErrored
			res.Failures = append(res.Failures, c.failure(s, h, types.FailureFetch, "status", err.Error()))
			logger.Error("scenario errored", map[string]any{"error": err.Error()})
		}
		return res
	}
	c.record(func(r Recorder) error { return r.RecordStatus(h, status) }, logger)

	bundle := NewCollector(c.client, h, status, logger, c.metrics, c.recorder)
	failures, err := c.engine.Evaluate(ctx, bundle, s.Checks)
	for _, f := range failures {
		res.Failures = append(res.Failures, c.failure(s, h, types.FailureAssertion, f.Label, f.Message))
	}
	if status != types.JobStatusSucceeded && !statusAsserted(s.Checks, failures) {
		res.Failures = append(res.Failures, c.failure(s, h, types.FailureJobStatus, "status",
			"job finished with status "+string(status)))
	}

	switch {
	case err != nil && ctx.Err() != nil:
		c.finishAborted(&res, abortError(ctx), logger)
	case err != nil:
		res.Status = types.ScenarioErrored
		label := "fetch"
		var fetchErr *ResultFetchError
		if errors.As(err, &fetchErr) {
			label = "fetch " + string(fetchErr.View)
		}
		res.Failures = append(res.Failures, c.failure(s, h, types.FailureFetch, label, err.Error()))
		logger.Error("scenario errored", map[string]any{"error": err.Error()})
	case status == types.JobStatusTimedOut:
		res.Status = types.ScenarioTimedOut
		logger.Warn("job timed out on the platform", map[string]any{"failures": len(res.Failures)})
	case len(res.Failures) > 0:
		res.Status = types.ScenarioFailed
		logger.Info("scenario failed", map[string]any{"job_status": string(status), "failures": len(res.Failures)})
	default:
		res.Status = types.ScenarioPassed
		logger.Info("scenario passed", map[string]any{"job_status": string(status)})
	}
	return res
}

// finishAborted marks the result aborted. Failures gathered before the abort
// are discarded; the single aborted record carries the cause.
func (c *Coordinator) finishAborted(res *types.ScenarioResult, cause error, logger *log.Logger) {
	res.Status = types.ScenarioAborted
	s := spec.Scenario{Index: res.Index, Name: res.Name}
	res.Failures = []types.FailureRecord{c.failure(s, res.Handle, types.FailureAborted, "aborted", cause.Error())}
	logger.Warn("scenario aborted", map[string]any{"cause": cause.Error()})
}

func (c *Coordinator) failure(s spec.Scenario, h *types.JobHandle, kind types.FailureKind, label, message string) types.FailureRecord {
	f := types.FailureRecord{
		ScenarioIndex: s.Index,
		ScenarioName:  s.Name,
		Kind:          kind,
		ContextLabel:  label,
		Message:       message,
	}
	if !h.IsZero() {
		f.RunLink = c.runLink(h)
	}
	return f
}

func (c *Coordinator) record(fn func(Recorder) error, logger *log.Logger) {
	if c.recorder == nil {
		return
	}
	if err := fn(c.recorder); err != nil {
		logger.Warn("failed to archive", map[string]any{"error": err.Error()})
	}
}

// statusAsserted reports whether a declared status check already failed, in
// which case it stands in for the implicit job status record.
func statusAsserted(checks []assert.Check, failures []assert.Failure) bool {
	for _, ch := range checks {
		if ch.View() != types.ViewStatus {
			continue
		}
		for _, f := range failures {
			if f.Label == ch.Label() {
				return true
			}
		}
	}
	return false
}

// needsRetry reports whether an outcome qualifies for the whole-scenario retry:
// any terminal failure, or a job that ended FAILED on the platform.
// Aborted scenarios are never retried.
func needsRetry(res types.ScenarioResult) bool {
	if res.Status == types.ScenarioAborted {
		return false
	}
	return res.Status.IsTerminalFailure() || res.JobStatus == types.JobStatusFailed
}
