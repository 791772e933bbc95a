// Package reader is the read side of suite history for the stats and
// inspect commands. Both text renderers and the TUI consume its responses.
package reader

import (
	"github.com/pithecene-io/canary/history"
	"github.com/pithecene-io/canary/types"
)

// RunRow is one suite execution in a stats listing.
type RunRow struct {
	SuiteRunID string            `json:"suite_run_id"`
	Suite      string            `json:"suite"`
	Status     types.SuiteStatus `json:"status"`
	StartedAt  string            `json:"started_at"`
	DurationMS int64             `json:"duration_ms"`
	Passed     int               `json:"passed"`
	Scenarios  int               `json:"scenarios"`
	Failures   int               `json:"failures"`
}

// StatsResponse aggregates recent executions of a suite.
type StatsResponse struct {
	// Suite is empty when every suite is included.
	Suite     string `json:"suite,omitempty"`
	Runs      int    `json:"runs"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Aborted   int    `json:"aborted"`
	// SuccessRate is Succeeded/Runs in [0, 1].
	SuccessRate float64 `json:"success_rate"`
	// Recent is newest first; Recent[0] is the latest run.
	Recent []RunRow `json:"recent"`
}

// ScenarioRow is one scenario outcome of an inspected run.
type ScenarioRow struct {
	Index      int                  `json:"index"`
	Name       string               `json:"name"`
	Status     types.ScenarioStatus `json:"status"`
	JobStatus  types.JobStatus      `json:"job_status,omitempty"`
	RunID      string               `json:"run_id,omitempty"`
	Attempts   int                  `json:"attempts"`
	DurationMS int64                `json:"duration_ms"`
}

// InspectResponse is everything stored for one suite execution.
type InspectResponse struct {
	Run       RunRow                `json:"run"`
	Scenarios []ScenarioRow         `json:"scenarios"`
	Failures  []types.FailureRecord `json:"failures"`
}

func runRow(s *history.SummaryRecord) RunRow {
	return RunRow{
		SuiteRunID: s.SuiteRunID,
		Suite:      s.Suite,
		Status:     s.Status,
		StartedAt:  s.StartedAt,
		DurationMS: s.DurationMS,
		Passed:     s.Passed,
		Scenarios:  s.Scenarios,
		Failures:   s.FailureCount,
	}
}
