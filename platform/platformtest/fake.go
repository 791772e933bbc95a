// Package platformtest provides a scripted in-memory platform.Client for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/pithecene-io/canary/platform"
	"github.com/pithecene-io/canary/types"
)

// Run scripts the behavior of one submitted run.
type Run struct {
	// SubmitErr fails the submission that consumes this script.
	SubmitErr error
	// Statuses are returned by successive Status calls. The last one repeats.
	// Empty means SUCCEEDED.
	Statuses []types.JobStatus
	// StatusErr fails every Status call.
	StatusErr error
	// FetchErr fails every result fetch.
	FetchErr error

	Log   string
	Info  *types.DatasetInfo
	Items []types.Record
	Stats *types.Statistics
}

type runState struct {
	script   Run
	polls    int
	canceled bool
}

// Fake is a scripted platform.Client. Scripts are keyed by Key(desc);
// each submission consumes the next script for its key and the last one repeats.
// Unscripted keys use Default.
type Fake struct {
	Default Run

	mu        sync.Mutex
	scripts   map[string][]Run
	consumed  map[string]int
	runs      map[string]*runState
	calls     map[string]int
	submitted []types.JobDescriptor
	canceled  []string
	nextID    int
}

// New creates an empty fake whose default run succeeds with no output.
func New() *Fake {
	return &Fake{
		scripts:  make(map[string][]Run),
		consumed: make(map[string]int),
		runs:     make(map[string]*runState),
		calls:    make(map[string]int),
	}
}

// Key returns the script key for a descriptor: its target, plus "@build" when set.
func Key(desc types.JobDescriptor) string {
	if desc.Options.Build != "" {
		return desc.Target() + "@" + desc.Options.Build
	}
	return desc.Target()
}

// Script registers the run scripts for key.
func (f *Fake) Script(key string, runs ...Run) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[key] = runs
}

// Calls returns how many times op was invoked. Ops are "submit", "status",
// "cancel", and the types.View names of the result fetches.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Submitted returns the descriptors passed to Submit, in call order.
func (f *Fake) Submitted() []types.JobDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.JobDescriptor(nil), f.submitted...)
}

// Canceled returns the run IDs passed to Cancel, in call order.
func (f *Fake) Canceled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.canceled...)
}

// Submit implements platform.Client.
func (f *Fake) Submit(ctx context.Context, desc types.JobDescriptor) (*types.JobHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["submit"]++
	f.submitted = append(f.submitted, desc)

	key := Key(desc)
	script := f.Default
	if runs := f.scripts[key]; len(runs) > 0 {
		i := min(f.consumed[key], len(runs)-1)
		script = runs[i]
		f.consumed[key]++
	}
	if script.SubmitErr != nil {
		return nil, script.SubmitErr
	}

	f.nextID++
	id := fmt.Sprintf("run-%d", f.nextID)
	f.runs[id] = &runState{script: script}
	return &types.JobHandle{
		RunID:           id,
		ActorID:         desc.ActorID,
		TaskID:          desc.TaskID,
		DatasetID:       "ds-" + id,
		KeyValueStoreID: "kvs-" + id,
	}, nil
}

// Status implements platform.Client.
func (f *Fake) Status(ctx context.Context, h *types.JobHandle) (types.JobStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["status"]++
	st, err := f.lookup(h)
	if err != nil {
		return "", err
	}
	if st.canceled {
		return types.JobStatusAborted, nil
	}
	if st.script.StatusErr != nil {
		return "", st.script.StatusErr
	}
	seq := st.script.Statuses
	if len(seq) == 0 {
		return types.JobStatusSucceeded, nil
	}
	s := seq[min(st.polls, len(seq)-1)]
	st.polls++
	return s, nil
}

// Cancel implements platform.Client. Canceled runs report ABORTED.
func (f *Fake) Cancel(_ context.Context, h *types.JobHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["cancel"]++
	st, err := f.lookup(h)
	if err != nil {
		return err
	}
	st.canceled = true
	f.canceled = append(f.canceled, h.RunID)
	return nil
}

// FetchLog implements platform.Client.
func (f *Fake) FetchLog(ctx context.Context, h *types.JobHandle) (string, error) {
	st, err := f.fetch(ctx, h, types.ViewLog)
	if err != nil {
		return "", err
	}
	return st.Log, nil
}

// FetchDatasetInfo implements platform.Client.
func (f *Fake) FetchDatasetInfo(ctx context.Context, h *types.JobHandle) (*types.DatasetInfo, error) {
	st, err := f.fetch(ctx, h, types.ViewDatasetInfo)
	if err != nil {
		return nil, err
	}
	if st.Info == nil {
		n := int64(len(st.Items))
		return &types.DatasetInfo{ID: h.DatasetID, CleanItemCount: n, ItemCount: n}, nil
	}
	return st.Info, nil
}

// FetchDatasetItems implements platform.Client.
func (f *Fake) FetchDatasetItems(ctx context.Context, h *types.JobHandle) ([]types.Record, error) {
	st, err := f.fetch(ctx, h, types.ViewDatasetItems)
	if err != nil {
		return nil, err
	}
	return st.Items, nil
}

// FetchStatistics implements platform.Client.
func (f *Fake) FetchStatistics(ctx context.Context, h *types.JobHandle) (*types.Statistics, error) {
	st, err := f.fetch(ctx, h, types.ViewStatistics)
	if err != nil {
		return nil, err
	}
	if st.Stats == nil {
		return &types.Statistics{}, nil
	}
	return st.Stats, nil
}

func (f *Fake) fetch(ctx context.Context, h *types.JobHandle, view types.View) (Run, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[string(view)]++
	st, err := f.lookup(h)
	if err != nil {
		return Run{}, err
	}
	if st.script.FetchErr != nil {
		return Run{}, st.script.FetchErr
	}
	return st.script, nil
}

func (f *Fake) lookup(h *types.JobHandle) (*runState, error) {
	if h.IsZero() {
		return nil, &platform.StatusError{Code: 400, Op: "lookup", Body: "empty handle"}
	}
	st, ok := f.runs[h.RunID]
	if !ok {
		return nil, &platform.StatusError{Code: 404, Op: "lookup", Body: h.RunID}
	}
	return st, nil
}

// Verify Fake implements platform.Client.
var _ platform.Client = (*Fake)(nil)
