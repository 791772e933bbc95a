package runtime

import (
	"errors"
	"sync"
	"testing"

	"github.com/pithecene-io/canary/log"
	"github.com/pithecene-io/canary/platform"
	"github.com/pithecene-io/canary/platform/platformtest"
	"github.com/pithecene-io/canary/types"
)

type recordedView struct {
	runID string
	view  types.View
}

type memRecorder struct {
	mu          sync.Mutex
	submissions []string
	statuses    []types.JobStatus
	views       []recordedView
}

func (r *memRecorder) RecordSubmission(_ types.JobDescriptor, h *types.JobHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissions = append(r.submissions, h.RunID)
	return nil
}

func (r *memRecorder) RecordStatus(_ *types.JobHandle, status types.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	return nil
}

func (r *memRecorder) RecordView(h *types.JobHandle, view types.View, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, recordedView{runID: h.RunID, view: view})
	return nil
}

func submitted(t *testing.T, fake *platformtest.Fake, actor string) *types.JobHandle {
	t.Helper()
	h, err := fake.Submit(t.Context(), types.JobDescriptor{ActorID: actor})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return h
}

func TestCollector_FetchesEachViewOnce(t *testing.T) {
	fake := platformtest.New()
	fake.Script("act", platformtest.Run{
		Log:   "DEBUG hello",
		Items: []types.Record{{"dataType": "post"}},
		Stats: &types.Statistics{RequestsRetries: 1},
	})
	h := submitted(t, fake, "act")
	rec := &memRecorder{}
	c := NewCollector(fake, h, types.JobStatusSucceeded, log.NewNop(), nil, rec)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Log(t.Context())
			_, _ = c.DatasetItems(t.Context())
			_, _ = c.DatasetInfo(t.Context())
			_, _ = c.Statistics(t.Context())
		}()
	}
	wg.Wait()

	for _, view := range []types.View{types.ViewLog, types.ViewDatasetItems, types.ViewDatasetInfo, types.ViewStatistics} {
		if got := fake.Calls(string(view)); got != 1 {
			t.Errorf("%s fetched %d times, want 1", view, got)
		}
	}
	if len(rec.views) != 4 {
		t.Errorf("expected each view archived once, got %v", rec.views)
	}

	items1, _ := c.DatasetItems(t.Context())
	items2, _ := c.DatasetItems(t.Context())
	if &items1[0] != &items2[0] {
		t.Error("repeated calls must return the identical cached value")
	}
}

func TestCollector_OnlyRequestedViews(t *testing.T) {
	fake := platformtest.New()
	h := submitted(t, fake, "act")
	c := NewCollector(fake, h, types.JobStatusSucceeded, log.NewNop(), nil, nil)

	if _, err := c.Statistics(t.Context()); err != nil {
		t.Fatal(err)
	}
	if fake.Calls(string(types.ViewLog)) != 0 || fake.Calls(string(types.ViewDatasetItems)) != 0 {
		t.Error("views nobody asked for must not be fetched")
	}
}

func TestCollector_StripsANSIFromLog(t *testing.T) {
	fake := platformtest.New()
	fake.Script("act", platformtest.Run{Log: "\x1b[32mINFO\x1b[0m ready\n\x1b[90mDEBUG\x1b[39m crawl"})
	c := NewCollector(fake, submitted(t, fake, "act"), types.JobStatusSucceeded, log.NewNop(), nil, nil)

	got, err := c.Log(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if got != "INFO ready\nDEBUG crawl" {
		t.Errorf("log = %q", got)
	}
}

func TestCollector_FetchErrorMemoized(t *testing.T) {
	fake := platformtest.New()
	fake.Script("act", platformtest.Run{FetchErr: &platform.StatusError{Code: 500, Op: "log"}})
	c := NewCollector(fake, submitted(t, fake, "act"), types.JobStatusSucceeded, log.NewNop(), nil, nil)

	_, err1 := c.Log(t.Context())
	_, err2 := c.Log(t.Context())

	var fetchErr *ResultFetchError
	if !errors.As(err1, &fetchErr) || fetchErr.View != types.ViewLog {
		t.Fatalf("expected log ResultFetchError, got %v", err1)
	}
	if err1 != err2 {
		t.Error("the fetch error must be memoized with the view")
	}
	if got := fake.Calls(string(types.ViewLog)); got != 1 {
		t.Errorf("failed view re-fetched: %d calls", got)
	}
}
