package reader

import (
	"context"

	"github.com/pithecene-io/canary/history"
	"github.com/pithecene-io/canary/types"
)

// DefaultLimit is the number of runs summarized by Stats.
const DefaultLimit = 20

// Reader is the history query surface. *history.Store implements it.
type Reader interface {
	Recent(ctx context.Context, suite string, limit int) ([]history.SummaryRecord, error)
	Run(ctx context.Context, suiteRunID string) (*history.Run, error)
}

var _ Reader = (*history.Store)(nil)

// Stats summarizes the latest limit executions of suite (all suites when
// empty). Returns history.ErrNoHistory when nothing is stored.
func Stats(ctx context.Context, r Reader, suite string, limit int) (*StatsResponse, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	recent, err := r.Recent(ctx, suite, limit)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, history.ErrNoHistory
	}

	resp := &StatsResponse{Suite: suite, Runs: len(recent), Recent: make([]RunRow, 0, len(recent))}
	for i := range recent {
		switch recent[i].Status {
		case types.SuiteSucceeded:
			resp.Succeeded++
		case types.SuiteAborted:
			resp.Aborted++
		default:
			resp.Failed++
		}
		resp.Recent = append(resp.Recent, runRow(&recent[i]))
	}
	resp.SuccessRate = float64(resp.Succeeded) / float64(resp.Runs)
	return resp, nil
}

// Inspect returns one stored suite execution.
func Inspect(ctx context.Context, r Reader, suiteRunID string) (*InspectResponse, error) {
	run, err := r.Run(ctx, suiteRunID)
	if err != nil {
		return nil, err
	}
	resp := &InspectResponse{
		Run:       runRow(&run.Summary),
		Scenarios: make([]ScenarioRow, 0, len(run.Scenarios)),
		Failures:  make([]types.FailureRecord, 0, len(run.Failures)),
	}
	for _, s := range run.Scenarios {
		resp.Scenarios = append(resp.Scenarios, ScenarioRow{
			Index:      s.ScenarioIndex,
			Name:       s.Scenario,
			Status:     s.Status,
			JobStatus:  s.JobStatus,
			RunID:      s.RunID,
			Attempts:   s.Attempts,
			DurationMS: s.DurationMS,
		})
	}
	for i := range run.Failures {
		resp.Failures = append(resp.Failures, run.Failures[i].FailureRecord())
	}
	return resp, nil
}
