package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/canary/types"
)

// ErrAborted is returned when a suite-wide abort, the suite deadline, or a
// signal cancels a scenario. Aborted scenarios are reported distinctly from
// failed ones.
var ErrAborted = errors.New("scenario aborted")

// SubmissionError means a job could not be submitted.
type SubmissionError struct {
	Attempts int
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// ExecutionTimeoutError means the job did not reach a terminal status before
// its deadline. Cancellation of the job has been requested.
type ExecutionTimeoutError struct {
	Timeout time.Duration
	// LastStatus is the last observed status, empty if no poll succeeded.
	LastStatus types.JobStatus
}

func (e *ExecutionTimeoutError) Error() string {
	if e.LastStatus == "" {
		return fmt.Sprintf("job did not finish within %s", e.Timeout)
	}
	return fmt.Sprintf("job did not finish within %s (last status %s)", e.Timeout, e.LastStatus)
}

// ResultFetchError means a result view could not be fetched.
type ResultFetchError struct {
	View types.View
	Err  error
}

func (e *ResultFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.View, e.Err)
}

func (e *ResultFetchError) Unwrap() error { return e.Err }

// abortError wraps ErrAborted with the cancellation cause of ctx.
func abortError(ctx context.Context) error {
	cause := context.Cause(ctx)
	if cause == nil || errors.Is(cause, ErrAborted) {
		return ErrAborted
	}
	return fmt.Errorf("%w: %w", ErrAborted, cause)
}

// AbortTrigger is the cancellation cause set when a scenario's terminal
// failure aborts the rest of the suite.
type AbortTrigger struct {
	Scenario string
	Status   types.ScenarioStatus
}

func (e *AbortTrigger) Error() string {
	return fmt.Sprintf("aborted after scenario %q %s", e.Scenario, e.Status)
}
