package runtime

import (
	"context"
	"sync"

	"github.com/acarl005/stripansi"

	"github.com/pithecene-io/canary/assert"
	"github.com/pithecene-io/canary/log"
	"github.com/pithecene-io/canary/metrics"
	"github.com/pithecene-io/canary/platform"
	"github.com/pithecene-io/canary/types"
)

// Recorder observes submissions, terminal statuses and fetched views.
// The archive implements it to make runs replayable.
type Recorder interface {
	RecordSubmission(desc types.JobDescriptor, h *types.JobHandle) error
	RecordStatus(h *types.JobHandle, status types.JobStatus) error
	RecordView(h *types.JobHandle, view types.View, value any) error
}

// lazy memoizes the first result of fetch, including its error.
type lazy[T any] struct {
	once sync.Once
	val  T
	err  error
}

func (l *lazy[T]) get(fetch func() (T, error)) (T, error) {
	l.once.Do(func() { l.val, l.err = fetch() })
	return l.val, l.err
}

// Collector is the result bundle of one terminal job. Each view is fetched
// from the platform at most once, on first use, and the result (or error)
// is returned to every later caller. Safe for concurrent use.
type Collector struct {
	client   platform.Client
	handle   *types.JobHandle
	status   types.JobStatus
	logger   *log.Logger
	metrics  *metrics.Collector
	recorder Recorder

	log   lazy[string]
	info  lazy[*types.DatasetInfo]
	items lazy[[]types.Record]
	stats lazy[*types.Statistics]
}

// NewCollector creates the bundle for a job observed in a terminal status.
// metrics and recorder may be nil.
func NewCollector(client platform.Client, h *types.JobHandle, status types.JobStatus, logger *log.Logger, m *metrics.Collector, recorder Recorder) *Collector {
	return &Collector{
		client:   client,
		handle:   h,
		status:   status,
		logger:   logger,
		metrics:  m,
		recorder: recorder,
	}
}

// Handle returns the job handle.
func (c *Collector) Handle() *types.JobHandle { return c.handle }

// Status returns the terminal status observed by the executor.
func (c *Collector) Status() types.JobStatus { return c.status }

// Log returns the run log with ANSI escape sequences removed.
func (c *Collector) Log(ctx context.Context) (string, error) {
	return c.log.get(func() (string, error) {
		raw, err := fetchView(ctx, c, types.ViewLog, c.client.FetchLog)
		if err != nil {
			return "", err
		}
		return stripansi.Strip(raw), nil
	})
}

// DatasetInfo returns aggregate info of the run's dataset.
func (c *Collector) DatasetInfo(ctx context.Context) (*types.DatasetInfo, error) {
	return c.info.get(func() (*types.DatasetInfo, error) {
		return fetchView(ctx, c, types.ViewDatasetInfo, c.client.FetchDatasetInfo)
	})
}

// DatasetItems returns all dataset items, fully materialized.
func (c *Collector) DatasetItems(ctx context.Context) ([]types.Record, error) {
	return c.items.get(func() ([]types.Record, error) {
		return fetchView(ctx, c, types.ViewDatasetItems, c.client.FetchDatasetItems)
	})
}

// Statistics returns the run's crawler statistics.
func (c *Collector) Statistics(ctx context.Context) (*types.Statistics, error) {
	return c.stats.get(func() (*types.Statistics, error) {
		return fetchView(ctx, c, types.ViewStatistics, c.client.FetchStatistics)
	})
}

// fetchView performs one underlying fetch, recording metrics and archiving
// the raw value. Errors are wrapped in ResultFetchError.
func fetchView[T any](ctx context.Context, c *Collector, view types.View, fetch func(context.Context, *types.JobHandle) (T, error)) (T, error) {
	c.metrics.IncFetch(string(view))
	v, err := fetch(ctx, c.handle)
	if err != nil {
		c.metrics.IncFetchFailure(string(view))
		var zero T
		return zero, &ResultFetchError{View: view, Err: err}
	}
	c.logger.Debug("fetched view", map[string]any{"view": string(view)})
	if c.recorder != nil {
		if rerr := c.recorder.RecordView(c.handle, view, v); rerr != nil {
			c.logger.Warn("failed to archive view", map[string]any{"view": string(view), "error": rerr.Error()})
		}
	}
	return v, nil
}

// Verify Collector implements assert.Bundle.
var _ assert.Bundle = (*Collector)(nil)
