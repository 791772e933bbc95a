// Package types defines core domain types for the canary harness.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"strings"
)

// JobStatus is the status of a remote job as reported by the execution API.
type JobStatus string

// Job status constants. Terminal statuses are SUCCEEDED, FAILED, TIMED_OUT and ABORTED.
const (
	JobStatusReady     JobStatus = "READY"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusTimingOut JobStatus = "TIMING_OUT"
	JobStatusAborting  JobStatus = "ABORTING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusTimedOut  JobStatus = "TIMED_OUT"
	JobStatusAborted   JobStatus = "ABORTED"
)

// ParseJobStatus normalizes a platform status string.
// The platform spells some statuses with a hyphen (TIMED-OUT); both forms are accepted.
func ParseJobStatus(s string) JobStatus {
	return JobStatus(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_"))
}

// IsTerminal returns true if the job will never transition again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusTimedOut, JobStatusAborted:
		return true
	default:
		return false
	}
}

// RunOptions are the platform run options for a job.
type RunOptions struct {
	// Build is the release channel or build tag (e.g. "beta", "latest").
	Build string `yaml:"build,omitempty" json:"build,omitempty" msgpack:"build,omitempty"`
	// MemoryMbytes overrides the run memory. Zero uses the platform default.
	MemoryMbytes int `yaml:"memoryMbytes,omitempty" json:"memoryMbytes,omitempty" msgpack:"memory_mbytes,omitempty"`
	// TimeoutSecs is the platform-side run timeout. Zero uses the platform default.
	TimeoutSecs int `yaml:"timeoutSecs,omitempty" json:"timeoutSecs,omitempty" msgpack:"timeout_secs,omitempty"`
}

// JobDescriptor identifies what to run: exactly one of ActorID or TaskID,
// an input document, and run options.
type JobDescriptor struct {
	ActorID string         `yaml:"actorId,omitempty" json:"actorId,omitempty" msgpack:"actor_id,omitempty"`
	TaskID  string         `yaml:"taskId,omitempty" json:"taskId,omitempty" msgpack:"task_id,omitempty"`
	Input   map[string]any `yaml:"input,omitempty" json:"input,omitempty" msgpack:"input,omitempty"`
	Options RunOptions     `yaml:"options,omitempty" json:"options,omitempty" msgpack:"options"`
	// RunName is a human label for the run (not sent to the platform).
	RunName string `yaml:"name,omitempty" json:"name,omitempty" msgpack:"run_name,omitempty"`
}

// Validate checks that exactly one job target is set.
func (d *JobDescriptor) Validate() error {
	switch {
	case d.ActorID == "" && d.TaskID == "":
		return errors.New("job descriptor requires actorId or taskId")
	case d.ActorID != "" && d.TaskID != "":
		return errors.New("job descriptor must not set both actorId and taskId")
	}
	return nil
}

// Target returns the actor or task ID, whichever is set.
func (d *JobDescriptor) Target() string {
	if d.ActorID != "" {
		return d.ActorID
	}
	return d.TaskID
}

// JobHandle references one submitted run plus its denormalized metadata.
// Immutable once created; one handle per scenario execution attempt.
type JobHandle struct {
	// RunID is the opaque run identifier assigned by the platform.
	RunID string `json:"run_id" msgpack:"run_id"`
	// ActorID is the owning actor, also set for task runs.
	ActorID         string `json:"actor_id" msgpack:"actor_id"`
	TaskID          string `json:"task_id,omitempty" msgpack:"task_id,omitempty"`
	DatasetID       string `json:"dataset_id" msgpack:"dataset_id"`
	KeyValueStoreID string `json:"key_value_store_id" msgpack:"key_value_store_id"`
	BuildNumber     string `json:"build_number,omitempty" msgpack:"build_number,omitempty"`
}

// IsZero reports whether the handle was never populated (job never submitted).
func (h *JobHandle) IsZero() bool {
	return h == nil || h.RunID == ""
}
