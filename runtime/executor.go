package runtime

import (
	"context"
	"time"

	"github.com/pithecene-io/canary/log"
	"github.com/pithecene-io/canary/metrics"
	"github.com/pithecene-io/canary/platform"
	"github.com/pithecene-io/canary/types"
)

// Executor defaults.
const (
	DefaultSubmitRetries = 3
	DefaultCancelTimeout = 30 * time.Second
)

// BackoffFunc returns the delay before retry number attempt (starting at 1).
type BackoffFunc func(attempt int) time.Duration

// ExponentialBackoff doubles from 500ms: 500ms, 1s, 2s, ...
func ExponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
}

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	Client platform.Client
	// PollInterval is the interval between status polls.
	PollInterval time.Duration
	// SubmitRetries bounds retries of transient submission errors.
	// Zero uses DefaultSubmitRetries; negative disables retries.
	SubmitRetries int
	// Backoff overrides ExponentialBackoff (for testing).
	Backoff BackoffFunc
	// CancelTimeout bounds the out-of-band cancel request.
	CancelTimeout time.Duration
	// Metrics is optional; all Collector methods are nil-safe.
	Metrics *metrics.Collector
}

// Executor submits one job and waits for it to finish.
type Executor struct {
	client        platform.Client
	pollInterval  time.Duration
	retries       int
	backoff       BackoffFunc
	cancelTimeout time.Duration
	metrics       *metrics.Collector
}

// NewExecutor creates an Executor, applying defaults to unset fields.
func NewExecutor(cfg ExecutorConfig) *Executor {
	e := &Executor{
		client:        cfg.Client,
		pollInterval:  cfg.PollInterval,
		retries:       cfg.SubmitRetries,
		backoff:       cfg.Backoff,
		cancelTimeout: cfg.CancelTimeout,
		metrics:       cfg.Metrics,
	}
	if e.pollInterval <= 0 {
		e.pollInterval = types.DefaultPollInterval
	}
	switch {
	case e.retries == 0:
		e.retries = DefaultSubmitRetries
	case e.retries < 0:
		e.retries = 0
	}
	if e.backoff == nil {
		e.backoff = ExponentialBackoff
	}
	if e.cancelTimeout <= 0 {
		e.cancelTimeout = DefaultCancelTimeout
	}
	return e
}

// Submit starts the job. Transient errors (network, 5xx, 429) are retried
// with exponential backoff; non-transient errors fail immediately.
// Returns SubmissionError on failure, or an ErrAborted-wrapping error if ctx ends.
func (e *Executor) Submit(ctx context.Context, desc types.JobDescriptor, logger *log.Logger) (*types.JobHandle, error) {
	attempts := 1 + e.retries
	var lastErr error
	var made int
	for i := range attempts {
		if i > 0 {
			delay := e.backoff(i)
			e.metrics.IncSubmissionRetry()
			logger.Warn("retrying submission", map[string]any{
				"attempt": i + 1,
				"backoff": delay.String(),
				"error":   lastErr.Error(),
			})
			select {
			case <-ctx.Done():
				return nil, abortError(ctx)
			case <-time.After(delay):
			}
		}

		made++
		e.metrics.IncSubmission()
		h, err := e.client.Submit(ctx, desc)
		if err == nil {
			logger.Info("job submitted", map[string]any{
				"run_id":       h.RunID,
				"build":        desc.Options.Build,
				"build_number": h.BuildNumber,
			})
			return h, nil
		}
		if ctx.Err() != nil {
			return nil, abortError(ctx)
		}
		lastErr = err
		if !platform.IsTransient(err) {
			break
		}
	}

	e.metrics.IncSubmissionFailure()
	return nil, &SubmissionError{Attempts: made, Err: lastErr}
}

// AwaitTerminal polls the job status until it is terminal or timeout elapses.
// The first poll is immediate. On timeout the job is cancelled out-of-band and
// ExecutionTimeoutError is returned. If ctx ends first the job is cancelled and
// an ErrAborted-wrapping error is returned. Transient poll errors are tolerated.
func (e *Executor) AwaitTerminal(ctx context.Context, h *types.JobHandle, timeout time.Duration, logger *log.Logger) (types.JobStatus, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	var last types.JobStatus
	for {
		e.metrics.IncStatusPoll()
		status, err := e.client.Status(waitCtx, h)
		switch {
		case err == nil:
			if status != last {
				logger.Debug("job status", map[string]any{"status": string(status)})
			}
			last = status
			if status.IsTerminal() {
				return status, nil
			}
		case waitCtx.Err() != nil:
			// Deadline or abort raced the poll; handled below.
		case platform.IsTransient(err):
			logger.Debug("transient status poll error", map[string]any{"error": err.Error()})
		default:
			e.Cancel(ctx, h, logger)
			return last, &ResultFetchError{View: types.ViewStatus, Err: err}
		}

		select {
		case <-waitCtx.Done():
			e.Cancel(ctx, h, logger)
			if ctx.Err() != nil {
				return last, abortError(ctx)
			}
			return last, &ExecutionTimeoutError{Timeout: timeout, LastStatus: last}
		case <-ticker.C:
		}
	}
}

// Cancel requests cancellation of the job. It runs detached from ctx's
// cancellation so an aborting suite can still reach the platform.
// Errors are logged, not returned.
func (e *Executor) Cancel(ctx context.Context, h *types.JobHandle, logger *log.Logger) {
	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cancelTimeout)
	defer cancel()

	e.metrics.IncCancellation()
	if err := e.client.Cancel(cancelCtx, h); err != nil {
		logger.Warn("failed to cancel job", map[string]any{"error": err.Error()})
		return
	}
	logger.Info("job cancelled", nil)
}
