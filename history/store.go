// Package history persists suite results to a Lode dataset and queries them
// back for the stats and inspect commands.
//
// Records are Hive-partitioned by suite/day/suite_run_id/record_kind and
// encoded as JSON lines, on the local filesystem or in S3.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/canary/types"
)

// DefaultDataset is the Lode dataset ID used when none is configured.
const DefaultDataset = "canary"

// Backend names.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// Config selects and configures the storage backend.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// Backend is "fs" or "s3".
	Backend string
	// Path is the root directory (fs) or "bucket/prefix" (s3).
	Path string
	// Region, Endpoint and UsePathStyle apply to s3 only.
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// Store writes and queries suite history.
type Store struct {
	dataset lode.Dataset
	name    string
}

// Open creates a store for the configured backend.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}
	switch cfg.Backend {
	case "", BackendFS:
		if cfg.Path == "" {
			return nil, errors.New("history path is required for the fs backend")
		}
		return NewStore(cfg.Dataset, lode.NewFSFactory(cfg.Path))
	case BackendS3:
		factory, err := s3Factory(ctx, cfg)
		if err != nil {
			return nil, wrap("init", cfg.Path, err)
		}
		return NewStore(cfg.Dataset, factory)
	default:
		return nil, fmt.Errorf("unknown history backend %q (want fs or s3)", cfg.Backend)
	}
}

// NewStore creates a store over any Lode store factory.
// Tests use lode.NewMemoryFactory().
func NewStore(dataset string, factory lode.StoreFactory) (*Store, error) {
	ds, err := lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout("suite", "day", "suite_run_id", "record_kind"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, wrap("init", dataset, err)
	}
	return &Store{dataset: ds, name: dataset}, nil
}

// Write stores one suite result as a single snapshot.
func (s *Store) Write(ctx context.Context, r *types.SuiteResult) error {
	records, err := toRecords(r)
	if err != nil {
		return err
	}
	if _, err := s.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return wrap("write", s.name+"/"+r.SuiteRunID, err)
	}
	return nil
}

// Run is everything stored for one suite execution.
type Run struct {
	Summary   SummaryRecord
	Scenarios []ScenarioRecord
	Failures  []FailureRow
}

// Recent returns up to limit suite summaries, newest first. An empty suite
// matches every suite; limit <= 0 means no limit.
func (s *Store) Recent(ctx context.Context, suite string, limit int) ([]SummaryRecord, error) {
	snapshots, err := s.dataset.Snapshots(ctx)
	if err != nil {
		return nil, wrap("read", s.name+"/snapshots", err)
	}

	var out []SummaryRecord
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !hasPartition(snap, "record_kind", KindSuiteSummary) || !hasPartition(snap, "suite", suite) {
			continue
		}
		records, err := s.read(ctx, snap)
		if err != nil {
			return nil, err
		}
		for _, m := range records {
			if m["record_kind"] != KindSuiteSummary || (suite != "" && m["suite"] != suite) {
				continue
			}
			rec, err := fromMap[SummaryRecord](m)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		if limit > 0 && len(out) >= limit {
			return out[:limit], nil
		}
	}
	return out, nil
}

// Latest returns the newest summary for suite, or ErrNoHistory.
func (s *Store) Latest(ctx context.Context, suite string) (*SummaryRecord, error) {
	recent, err := s.Recent(ctx, suite, 1)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, ErrNoHistory
	}
	return &recent[0], nil
}

// Run returns the stored records of one suite execution, or ErrNoHistory.
func (s *Store) Run(ctx context.Context, suiteRunID string) (*Run, error) {
	snapshots, err := s.dataset.Snapshots(ctx)
	if err != nil {
		return nil, wrap("read", s.name+"/snapshots", err)
	}
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !hasPartition(snap, "suite_run_id", suiteRunID) {
			continue
		}
		records, err := s.read(ctx, snap)
		if err != nil {
			return nil, err
		}
		run, found, err := collectRun(records, suiteRunID)
		if err != nil {
			return nil, err
		}
		if found {
			return run, nil
		}
	}
	return nil, ErrNoHistory
}

func collectRun(records []map[string]any, suiteRunID string) (*Run, bool, error) {
	run := &Run{}
	found := false
	for _, m := range records {
		if m["suite_run_id"] != suiteRunID {
			continue
		}
		var err error
		switch m["record_kind"] {
		case KindSuiteSummary:
			run.Summary, err = fromMap[SummaryRecord](m)
			found = true
		case KindScenarioResult:
			var rec ScenarioRecord
			rec, err = fromMap[ScenarioRecord](m)
			run.Scenarios = append(run.Scenarios, rec)
		case KindFailure:
			var rec FailureRow
			rec, err = fromMap[FailureRow](m)
			run.Failures = append(run.Failures, rec)
		}
		if err != nil {
			return nil, false, err
		}
	}
	sort.SliceStable(run.Scenarios, func(i, j int) bool {
		return run.Scenarios[i].ScenarioIndex < run.Scenarios[j].ScenarioIndex
	})
	sort.SliceStable(run.Failures, func(i, j int) bool {
		return run.Failures[i].ScenarioIndex < run.Failures[j].ScenarioIndex
	})
	return run, found, nil
}

func (s *Store) read(ctx context.Context, snap *lode.Snapshot) ([]map[string]any, error) {
	data, err := s.dataset.Read(ctx, snap.ID)
	if err != nil {
		return nil, wrap("read", fmt.Sprintf("%s/snapshot/%s", s.name, snap.ID), err)
	}
	out := make([]map[string]any, 0, len(data))
	for _, item := range data {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// hasPartition reports whether any file of the snapshot lies under the
// exact key=value path segment. An empty value matches everything.
func hasPartition(snap *lode.Snapshot, key, value string) bool {
	if value == "" {
		return true
	}
	segment := key + "=" + value
	for _, f := range snap.Manifest.Files {
		for _, part := range strings.Split(f.Path, "/") {
			if part == segment {
				return true
			}
		}
	}
	return false
}
