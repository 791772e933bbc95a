// Package adapter delivers suite reports to downstream systems.
//
// Adapters publish one SuiteCompletedEvent per suite run. The CLI owns the
// adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/pithecene-io/canary/types"
)

// EventType is the event_type of every published event.
const EventType = "suite_completed"

// SuiteCompletedEvent is the payload published when a suite finishes.
// Text carries the rendered report, which chat incoming webhooks display
// as the message body.
type SuiteCompletedEvent struct {
	Text       string                `json:"text"`
	EventType  string                `json:"event_type"`
	Suite      string                `json:"suite"`
	SuiteRunID string                `json:"suite_run_id"`
	Status     types.SuiteStatus     `json:"status"`
	Timestamp  string                `json:"timestamp"` // ISO 8601
	DurationMs int64                 `json:"duration_ms"`
	Scenarios  int                   `json:"scenarios"`
	Passed     int                   `json:"passed"`
	Failures   []types.FailureRecord `json:"failures"`
}

// NewSuiteCompletedEvent builds the event for a finished suite.
func NewSuiteCompletedEvent(r *types.SuiteResult, text string, now time.Time) *SuiteCompletedEvent {
	failures := r.Failures
	if failures == nil {
		failures = []types.FailureRecord{}
	}
	return &SuiteCompletedEvent{
		Text:       text,
		EventType:  EventType,
		Suite:      r.SuiteName,
		SuiteRunID: r.SuiteRunID,
		Status:     r.Status,
		Timestamp:  now.UTC().Format(time.RFC3339),
		DurationMs: r.Duration.Milliseconds(),
		Scenarios:  len(r.Scenarios),
		Passed:     r.Count(types.ScenarioPassed),
		Failures:   failures,
	}
}

// Adapter publishes suite completion events to a downstream system.
type Adapter interface {
	// Publish sends the event. Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *SuiteCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// BackoffFunc returns the delay before retry attempt n (n >= 1).
type BackoffFunc func(attempt int) time.Duration

// DefaultBackoff doubles from 500ms.
func DefaultBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
}

// Deliver calls send up to 1+retries times with backoff between attempts.
// An error for which permanent returns true stops immediately.
// name prefixes returned errors.
func Deliver(ctx context.Context, name string, retries int, backoff BackoffFunc, permanent func(error) bool, send func(context.Context) error) error {
	if backoff == nil {
		backoff = DefaultBackoff
	}
	attempts := 1 + retries

	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(backoff(i)):
			}
		}

		lastErr = send(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
