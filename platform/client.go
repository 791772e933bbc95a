// Package platform is the boundary to the job execution API.
//
// The harness treats the platform as a black box: submit a job, observe its
// status until terminal, cancel it, and fetch its log, dataset and statistics.
package platform

import (
	"context"

	"github.com/pithecene-io/canary/types"
)

// Client is the job execution API consumed by the harness.
// Implementations must be safe for concurrent use and respect ctx cancellation.
type Client interface {
	// Submit starts a run for the descriptor and returns its handle.
	Submit(ctx context.Context, desc types.JobDescriptor) (*types.JobHandle, error)
	// Status returns the current status of the run.
	Status(ctx context.Context, h *types.JobHandle) (types.JobStatus, error)
	// Cancel requests that the run be aborted. Idempotent.
	Cancel(ctx context.Context, h *types.JobHandle) error
	// FetchLog returns the full run log.
	FetchLog(ctx context.Context, h *types.JobHandle) (string, error)
	// FetchDatasetInfo returns aggregate info of the run's default dataset.
	FetchDatasetInfo(ctx context.Context, h *types.JobHandle) (*types.DatasetInfo, error)
	// FetchDatasetItems returns every clean item of the run's default dataset, in order.
	FetchDatasetItems(ctx context.Context, h *types.JobHandle) ([]types.Record, error)
	// FetchStatistics returns the run's crawler statistics.
	FetchStatistics(ctx context.Context, h *types.JobHandle) (*types.Statistics, error)
}
