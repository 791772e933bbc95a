package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pithecene-io/canary/types"
)

// Record kinds, also the innermost partition key.
const (
	KindSuiteSummary   = "suite_summary"
	KindScenarioResult = "scenario_result"
	KindFailure        = "failure"
)

// dayFormat is the day partition format (UTC).
const dayFormat = "2006-01-02"

// Partition keys shared by every record.
type Partition struct {
	RecordKind string `json:"record_kind"`
	Suite      string `json:"suite"`
	Day        string `json:"day"`
	SuiteRunID string `json:"suite_run_id"`
}

// SummaryRecord is one suite execution.
type SummaryRecord struct {
	Partition
	Status       types.SuiteStatus `json:"status"`
	StartedAt    string            `json:"started_at"`
	DurationMS   int64             `json:"duration_ms"`
	Scenarios    int               `json:"scenarios"`
	Passed       int               `json:"passed"`
	Failed       int               `json:"failed"`
	TimedOut     int               `json:"timed_out"`
	Errored      int               `json:"errored"`
	Aborted      int               `json:"aborted"`
	FailureCount int               `json:"failure_count"`
}

// ScenarioRecord is one scenario outcome.
type ScenarioRecord struct {
	Partition
	ScenarioIndex int                  `json:"scenario_index"`
	Scenario      string               `json:"scenario"`
	Status        types.ScenarioStatus `json:"status"`
	JobStatus     types.JobStatus      `json:"job_status,omitempty"`
	RunID         string               `json:"run_id,omitempty"`
	ActorID       string               `json:"actor_id,omitempty"`
	Attempts      int                  `json:"attempts"`
	DurationMS    int64                `json:"duration_ms"`
}

// FailureRow is one stored FailureRecord.
type FailureRow struct {
	Partition
	ScenarioIndex int               `json:"scenario_index"`
	Scenario      string            `json:"scenario"`
	Kind          types.FailureKind `json:"kind"`
	ContextLabel  string            `json:"context_label"`
	Message       string            `json:"message"`
	RunLink       string            `json:"run_link,omitempty"`
}

// FailureRecord converts the row back to the domain type.
func (f *FailureRow) FailureRecord() types.FailureRecord {
	return types.FailureRecord{
		ScenarioIndex: f.ScenarioIndex,
		ScenarioName:  f.Scenario,
		Kind:          f.Kind,
		ContextLabel:  f.ContextLabel,
		Message:       f.Message,
		RunLink:       f.RunLink,
	}
}

func partition(kind string, r *types.SuiteResult) Partition {
	return Partition{
		RecordKind: kind,
		Suite:      r.SuiteName,
		Day:        r.StartedAt.UTC().Format(dayFormat),
		SuiteRunID: r.SuiteRunID,
	}
}

// toRecords flattens a suite result into storage records: the summary
// first, then scenarios and failures in report order.
func toRecords(r *types.SuiteResult) ([]any, error) {
	summary := SummaryRecord{
		Partition:    partition(KindSuiteSummary, r),
		Status:       r.Status,
		StartedAt:    r.StartedAt.UTC().Format(time.RFC3339),
		DurationMS:   r.Duration.Milliseconds(),
		Scenarios:    len(r.Scenarios),
		Passed:       r.Count(types.ScenarioPassed),
		Failed:       r.Count(types.ScenarioFailed),
		TimedOut:     r.Count(types.ScenarioTimedOut),
		Errored:      r.Count(types.ScenarioErrored),
		Aborted:      r.Count(types.ScenarioAborted),
		FailureCount: len(r.Failures),
	}
	structs := []any{summary}
	for _, s := range r.Scenarios {
		rec := ScenarioRecord{
			Partition:     partition(KindScenarioResult, r),
			ScenarioIndex: s.Index,
			Scenario:      s.Name,
			Status:        s.Status,
			JobStatus:     s.JobStatus,
			Attempts:      s.Attempts,
			DurationMS:    s.Duration.Milliseconds(),
		}
		if !s.Handle.IsZero() {
			rec.RunID = s.Handle.RunID
			rec.ActorID = s.Handle.ActorID
		}
		structs = append(structs, rec)
	}
	for _, f := range r.Failures {
		structs = append(structs, FailureRow{
			Partition:     partition(KindFailure, r),
			ScenarioIndex: f.ScenarioIndex,
			Scenario:      f.ScenarioName,
			Kind:          f.Kind,
			ContextLabel:  f.ContextLabel,
			Message:       f.Message,
			RunLink:       f.RunLink,
		})
	}

	// The Hive layout reads partition keys from map records.
	records := make([]any, 0, len(structs))
	for _, s := range structs {
		m, err := toMap(s)
		if err != nil {
			return nil, err
		}
		records = append(records, m)
	}
	return records, nil
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode history record: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to encode history record: %w", err)
	}
	return m, nil
}

func fromMap[T any](m map[string]any) (T, error) {
	var out T
	b, err := json.Marshal(m)
	if err != nil {
		return out, fmt.Errorf("failed to decode history record: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("failed to decode history record: %w", err)
	}
	return out, nil
}
