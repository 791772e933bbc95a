package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/pithecene-io/canary/platform"
	"github.com/pithecene-io/canary/types"
)

// Archive is the decoded content of an archive file.
type Archive struct {
	Header HeaderFrame
	// Truncated is set when the file ended in a partial frame.
	Truncated bool

	// submissions by descriptor key; the last write wins.
	submissions map[string]types.JobHandle
	statuses    map[string]types.JobStatus
	views       map[string]map[types.View]*ViewFrame
}

// Open reads an archive file.
func Open(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}

// Read decodes an archive stream. A partial trailing frame is tolerated and
// flagged via Truncated; any other decoding error is fatal.
func Read(r io.Reader) (*Archive, error) {
	a := &Archive{
		submissions: make(map[string]types.JobHandle),
		statuses:    make(map[string]types.JobStatus),
		views:       make(map[string]map[types.View]*ViewFrame),
	}
	dec := NewFrameDecoder(r)
	first := true
	for {
		payload, err := dec.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if IsTruncated(err) {
			a.Truncated = true
			break
		}
		if err != nil {
			return nil, err
		}
		frame, err := DecodeFrame(payload)
		if err != nil {
			return nil, err
		}
		if first {
			hdr, ok := frame.(*HeaderFrame)
			if !ok {
				return nil, &FrameError{Kind: FrameErrorDecode, Msg: "archive does not start with a header frame"}
			}
			if hdr.Version != FormatVersion {
				return nil, &FrameError{Kind: FrameErrorDecode, Msg: fmt.Sprintf("unsupported archive version %d", hdr.Version)}
			}
			a.Header = *hdr
			first = false
			continue
		}
		a.add(frame)
	}
	if first {
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "empty archive"}
	}
	return a, nil
}

func (a *Archive) add(frame any) {
	switch f := frame.(type) {
	case *SubmissionFrame:
		a.submissions[f.Key] = f.Handle
	case *StatusFrame:
		a.statuses[f.RunID] = f.Status
	case *ViewFrame:
		byView, ok := a.views[f.RunID]
		if !ok {
			byView = make(map[types.View]*ViewFrame)
			a.views[f.RunID] = byView
		}
		byView[f.View] = f
	}
}

// Submissions returns the number of distinct recorded descriptors.
func (a *Archive) Submissions() int { return len(a.submissions) }

// ReplayClient serves recorded runs as a platform.Client. Submitting a
// descriptor returns the handle recorded for an identical descriptor;
// everything not in the archive fails with a 404 StatusError.
type ReplayClient struct {
	archive *Archive

	mu       sync.Mutex
	canceled []string
}

// NewReplayClient creates a client over a decoded archive.
func NewReplayClient(a *Archive) *ReplayClient {
	return &ReplayClient{archive: a}
}

func notArchived(op, what string) error {
	return &platform.StatusError{Code: http.StatusNotFound, Op: op, Body: what + " not archived"}
}

// Submit implements platform.Client.
func (c *ReplayClient) Submit(_ context.Context, desc types.JobDescriptor) (*types.JobHandle, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	key, err := DescriptorKey(desc)
	if err != nil {
		return nil, err
	}
	h, ok := c.archive.submissions[key]
	if !ok {
		return nil, notArchived("submit", "job "+desc.Target())
	}
	return &h, nil
}

// Status implements platform.Client. Runs that were never observed terminal
// (the original attempt timed out) report RUNNING forever, so the replayed
// scenario times out too.
func (c *ReplayClient) Status(_ context.Context, h *types.JobHandle) (types.JobStatus, error) {
	if s, ok := c.archive.statuses[h.RunID]; ok {
		return s, nil
	}
	return types.JobStatusRunning, nil
}

// Cancel implements platform.Client. It only remembers the run ID.
func (c *ReplayClient) Cancel(_ context.Context, h *types.JobHandle) error {
	c.mu.Lock()
	c.canceled = append(c.canceled, h.RunID)
	c.mu.Unlock()
	return nil
}

// Canceled returns the run IDs passed to Cancel.
func (c *ReplayClient) Canceled() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.canceled...)
}

func (c *ReplayClient) view(h *types.JobHandle, view types.View) (*ViewFrame, error) {
	if f, ok := c.archive.views[h.RunID][view]; ok {
		return f, nil
	}
	return nil, notArchived(string(view), "view "+string(view)+" of run "+h.RunID)
}

// FetchLog implements platform.Client.
func (c *ReplayClient) FetchLog(_ context.Context, h *types.JobHandle) (string, error) {
	f, err := c.view(h, types.ViewLog)
	if err != nil {
		return "", err
	}
	return f.Log, nil
}

// FetchDatasetInfo implements platform.Client.
func (c *ReplayClient) FetchDatasetInfo(_ context.Context, h *types.JobHandle) (*types.DatasetInfo, error) {
	f, err := c.view(h, types.ViewDatasetInfo)
	if err != nil {
		return nil, err
	}
	return f.Info, nil
}

// FetchDatasetItems implements platform.Client.
func (c *ReplayClient) FetchDatasetItems(_ context.Context, h *types.JobHandle) ([]types.Record, error) {
	f, err := c.view(h, types.ViewDatasetItems)
	if err != nil {
		return nil, err
	}
	if f.Items == nil {
		return []types.Record{}, nil
	}
	return f.Items, nil
}

// FetchStatistics implements platform.Client.
func (c *ReplayClient) FetchStatistics(_ context.Context, h *types.JobHandle) (*types.Statistics, error) {
	f, err := c.view(h, types.ViewStatistics)
	if err != nil {
		return nil, err
	}
	return f.Stats, nil
}

var _ platform.Client = (*ReplayClient)(nil)
