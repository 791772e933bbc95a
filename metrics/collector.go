// Package metrics provides per-suite metrics collection.
//
// The Collector accumulates counters during a single suite execution. It is a
// leaf package with no internal dependencies: statuses and views are passed
// as plain strings.
package metrics

import (
	"maps"
	"sync"
)

// Snapshot is an immutable point-in-time view of all suite metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Scenario lifecycle
	ScenariosStarted  int64
	ScenariosPassed   int64
	ScenariosFailed   int64
	ScenariosTimedOut int64
	ScenariosErrored  int64
	ScenariosAborted  int64
	ScenarioRetries   int64

	// Executor
	Submissions        int64
	SubmissionRetries  int64
	SubmissionFailures int64
	StatusPolls        int64
	Cancellations      int64

	// Result collection, keyed by view name
	Fetches       map[string]int64
	FetchFailures map[string]int64

	FailureRecords int64

	// History storage (per write call, not per record)
	HistoryWriteSuccess int64
	HistoryWriteFailure int64

	// Dimensions (informational, set at construction)
	Suite          string
	SuiteRunID     string
	Platform       string
	HistoryBackend string
}

// Collector accumulates metrics during a single suite execution.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	scenariosStarted  int64
	scenarioOutcomes  map[string]int64
	scenarioRetries   int64
	submissions       int64
	submissionRetries int64
	submissionFails   int64
	statusPolls       int64
	cancellations     int64
	fetches           map[string]int64
	fetchFailures     map[string]int64
	failureRecords    int64
	historyWriteOK    int64
	historyWriteFail  int64

	suite          string
	suiteRunID     string
	platform       string
	historyBackend string
}

// NewCollector creates a Collector with dimension labels.
// platform names the execution API backend ("http" or "replay");
// historyBackend is empty when no history store is configured.
func NewCollector(suite, suiteRunID, platform, historyBackend string) *Collector {
	return &Collector{
		scenarioOutcomes: make(map[string]int64),
		fetches:          make(map[string]int64),
		fetchFailures:    make(map[string]int64),
		suite:            suite,
		suiteRunID:       suiteRunID,
		platform:         platform,
		historyBackend:   historyBackend,
	}
}

func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Scenario lifecycle ---

// IncScenarioStarted records a scenario attempt start.
func (c *Collector) IncScenarioStarted() {
	if c == nil {
		return
	}
	c.add(&c.scenariosStarted, 1)
}

// RecordScenarioOutcome records a scenario's reported status
// ("passed", "failed", "timed_out", "errored", "aborted").
func (c *Collector) RecordScenarioOutcome(status string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.scenarioOutcomes[status]++
	c.mu.Unlock()
}

// IncScenarioRetry records a whole-scenario retry.
func (c *Collector) IncScenarioRetry() {
	if c == nil {
		return
	}
	c.add(&c.scenarioRetries, 1)
}

// --- Executor ---

// IncSubmission records a submission attempt.
func (c *Collector) IncSubmission() {
	if c == nil {
		return
	}
	c.add(&c.submissions, 1)
}

// IncSubmissionRetry records a retry after a transient submission error.
func (c *Collector) IncSubmissionRetry() {
	if c == nil {
		return
	}
	c.add(&c.submissionRetries, 1)
}

// IncSubmissionFailure records a submission that failed after all retries.
func (c *Collector) IncSubmissionFailure() {
	if c == nil {
		return
	}
	c.add(&c.submissionFails, 1)
}

// IncStatusPoll records one status poll.
func (c *Collector) IncStatusPoll() {
	if c == nil {
		return
	}
	c.add(&c.statusPolls, 1)
}

// IncCancellation records a cancel request sent to the platform.
func (c *Collector) IncCancellation() {
	if c == nil {
		return
	}
	c.add(&c.cancellations, 1)
}

// --- Result collection ---

// IncFetch records one underlying fetch of a result view.
func (c *Collector) IncFetch(view string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.fetches[view]++
	c.mu.Unlock()
}

// IncFetchFailure records a failed fetch of a result view.
func (c *Collector) IncFetchFailure(view string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.fetchFailures[view]++
	c.mu.Unlock()
}

// AddFailureRecords records n reported failure records.
func (c *Collector) AddFailureRecords(n int) {
	if c == nil {
		return
	}
	c.add(&c.failureRecords, int64(n))
}

// --- History ---

// IncHistoryWriteSuccess records a successful history write call.
func (c *Collector) IncHistoryWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.historyWriteOK, 1)
}

// IncHistoryWriteFailure records a failed history write call.
func (c *Collector) IncHistoryWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.historyWriteFail, 1)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		ScenariosStarted:  c.scenariosStarted,
		ScenariosPassed:   c.scenarioOutcomes["passed"],
		ScenariosFailed:   c.scenarioOutcomes["failed"],
		ScenariosTimedOut: c.scenarioOutcomes["timed_out"],
		ScenariosErrored:  c.scenarioOutcomes["errored"],
		ScenariosAborted:  c.scenarioOutcomes["aborted"],
		ScenarioRetries:   c.scenarioRetries,

		Submissions:        c.submissions,
		SubmissionRetries:  c.submissionRetries,
		SubmissionFailures: c.submissionFails,
		StatusPolls:        c.statusPolls,
		Cancellations:      c.cancellations,

		Fetches:       maps.Clone(c.fetches),
		FetchFailures: maps.Clone(c.fetchFailures),

		FailureRecords: c.failureRecords,

		HistoryWriteSuccess: c.historyWriteOK,
		HistoryWriteFailure: c.historyWriteFail,

		Suite:          c.suite,
		SuiteRunID:     c.suiteRunID,
		Platform:       c.platform,
		HistoryBackend: c.historyBackend,
	}
}
