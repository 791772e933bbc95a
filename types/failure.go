package types

// FailureKind classifies a failure record.
type FailureKind string

const (
	// FailureAssertion is a predicate that evaluated false.
	FailureAssertion FailureKind = "assertion"
	// FailureJobStatus means the job reached a terminal status other than SUCCEEDED.
	FailureJobStatus FailureKind = "job_status"
	// FailureSubmission means the job could not be submitted after retries.
	FailureSubmission FailureKind = "submission"
	// FailureTimeout means the job did not reach a terminal status before its deadline.
	FailureTimeout FailureKind = "timeout"
	// FailureFetch means a result view could not be fetched.
	FailureFetch FailureKind = "fetch"
	// FailureAborted means the scenario was cancelled by a suite-wide abort or deadline.
	FailureAborted FailureKind = "aborted"
)

// FailureRecord is one reportable failure. Constructed only when something failed.
type FailureRecord struct {
	// ScenarioIndex is the scenario's registration order, used for stable report ordering.
	ScenarioIndex int         `json:"scenario_index"`
	ScenarioName  string      `json:"scenario_name"`
	Kind          FailureKind `json:"kind"`
	ContextLabel  string      `json:"context_label"`
	Message       string      `json:"message"`
	// RunLink deep-links to the run. Empty only when no run was ever submitted.
	RunLink string `json:"run_link,omitempty"`
}
