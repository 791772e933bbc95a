package types

import "time"

// SuiteConfig is the process-wide configuration of one suite execution.
// Loaded once, immutable for the suite's lifetime, and passed explicitly.
type SuiteConfig struct {
	// Name labels the suite in logs, history and notifications.
	Name string
	// AbortRuns cancels pending and running scenarios after the first terminal failure.
	AbortRuns bool
	// RetryFailedTests re-runs a failed scenario once and reports only the second outcome.
	RetryFailedTests bool
	// DefaultTimeout bounds each scenario's wait for a terminal status.
	DefaultTimeout time.Duration
	// VerboseLogs enables debug logging.
	VerboseLogs bool
	// Concurrency is the maximum number of scenarios executing at once.
	Concurrency int
	// SuiteTimeout bounds the whole suite. Zero means no suite deadline.
	SuiteTimeout time.Duration
	// PollInterval is the interval between job status polls.
	PollInterval time.Duration
}

// Defaults for SuiteConfig fields left unset.
const (
	DefaultConcurrency     = 5
	DefaultScenarioTimeout = 10 * time.Minute
	DefaultPollInterval    = 5 * time.Second
)

// WithDefaults returns a copy with zero values replaced by defaults.
func (c SuiteConfig) WithDefaults() SuiteConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = DefaultScenarioTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Name == "" {
		c.Name = "default"
	}
	return c
}

// ScenarioStatus is the reported outcome of one scenario.
type ScenarioStatus string

const (
	// ScenarioPassed means every assertion held.
	ScenarioPassed ScenarioStatus = "passed"
	// ScenarioFailed means at least one assertion failed.
	ScenarioFailed ScenarioStatus = "failed"
	// ScenarioTimedOut means the job missed its deadline and was cancelled.
	ScenarioTimedOut ScenarioStatus = "timed_out"
	// ScenarioErrored means submission or result fetching failed.
	ScenarioErrored ScenarioStatus = "errored"
	// ScenarioAborted means a suite-wide abort or deadline cancelled the scenario.
	ScenarioAborted ScenarioStatus = "aborted"
)

// IsTerminalFailure reports whether this outcome triggers a suite-wide abort.
func (s ScenarioStatus) IsTerminalFailure() bool {
	return s == ScenarioFailed || s == ScenarioTimedOut || s == ScenarioErrored
}

// ScenarioResult is the reported outcome of one scenario.
type ScenarioResult struct {
	Index  int            `json:"index"`
	Name   string         `json:"name"`
	Status ScenarioStatus `json:"status"`
	// JobStatus is the last observed job status, empty if never submitted.
	JobStatus JobStatus `json:"job_status,omitempty"`
	// Handle is nil if the job was never submitted.
	Handle *JobHandle `json:"handle,omitempty"`
	// Attempts is 2 when the scenario was retried.
	Attempts int             `json:"attempts"`
	Failures []FailureRecord `json:"failures,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// SuiteStatus is the overall suite outcome.
type SuiteStatus string

const (
	SuiteSucceeded SuiteStatus = "SUCCEEDED"
	SuiteFailed    SuiteStatus = "FAILED"
	SuiteAborted   SuiteStatus = "ABORTED"
)

// SuiteResult aggregates all scenario outcomes of one suite execution.
type SuiteResult struct {
	SuiteName  string           `json:"suite_name"`
	SuiteRunID string           `json:"suite_run_id"`
	Status     SuiteStatus      `json:"status"`
	StartedAt  time.Time        `json:"started_at"`
	Duration   time.Duration    `json:"duration"`
	Scenarios  []ScenarioResult `json:"scenarios"`
	Failures   []FailureRecord  `json:"failures"`
}

// Count returns the number of scenarios with the given status.
func (r *SuiteResult) Count(status ScenarioStatus) int {
	n := 0
	for i := range r.Scenarios {
		if r.Scenarios[i].Status == status {
			n++
		}
	}
	return n
}
