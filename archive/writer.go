package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pithecene-io/canary/types"
)

// Extension is the archive file extension.
const Extension = ".canary"

// Path returns the archive path for a suite run under dir.
func Path(dir, suiteRunID string) string {
	return filepath.Join(dir, suiteRunID+Extension)
}

// DescriptorKey identifies a job descriptor across runs: sha256 over the
// target, a NUL separator and the JSON form of input and options.
// encoding/json sorts map keys, so equal descriptors hash equally.
func DescriptorKey(desc types.JobDescriptor) (string, error) {
	body, err := json.Marshal(struct {
		Input   map[string]any   `json:"input"`
		Options types.RunOptions `json:"options"`
	}{desc.Input, desc.Options})
	if err != nil {
		return "", fmt.Errorf("failed to encode descriptor: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(desc.Target()))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Writer appends frames to an archive. Safe for concurrent use; frames from
// parallel scenarios are serialized whole.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	closed bool
}

// Create creates the archive file for a suite run and writes its header.
// The directory is created if missing.
func Create(dir, suite, suiteRunID string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive dir: %w", err)
	}
	f, err := os.OpenFile(Path(dir, suiteRunID), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	w := &Writer{w: f, closer: f}
	if err := w.writeHeader(suite, suiteRunID); err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

// NewWriter writes an archive to w. The caller owns w.
func NewWriter(w io.Writer, suite, suiteRunID string) (*Writer, error) {
	aw := &Writer{w: w}
	if err := aw.writeHeader(suite, suiteRunID); err != nil {
		return nil, err
	}
	return aw, nil
}

func (w *Writer) writeHeader(suite, suiteRunID string) error {
	return w.write(&HeaderFrame{
		Type:       HeaderType,
		Version:    FormatVersion,
		Suite:      suite,
		SuiteRunID: suiteRunID,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	})
}

// RecordSubmission records which run a descriptor started.
func (w *Writer) RecordSubmission(desc types.JobDescriptor, h *types.JobHandle) error {
	if h == nil {
		return errors.New("nil job handle")
	}
	key, err := DescriptorKey(desc)
	if err != nil {
		return err
	}
	return w.write(&SubmissionFrame{Type: SubmissionType, Key: key, Descriptor: desc, Handle: *h})
}

// RecordStatus records the terminal status of a run.
func (w *Writer) RecordStatus(h *types.JobHandle, status types.JobStatus) error {
	return w.write(&StatusFrame{Type: StatusType, RunID: h.RunID, Status: status})
}

// RecordView records one fetched result view.
func (w *Writer) RecordView(h *types.JobHandle, view types.View, value any) error {
	frame := &ViewFrame{Type: ViewType, RunID: h.RunID, View: view}
	switch v := value.(type) {
	case string:
		frame.Log = v
	case *types.DatasetInfo:
		frame.Info = v
	case []types.Record:
		frame.Items = v
	case *types.Statistics:
		frame.Stats = v
	default:
		return fmt.Errorf("unsupported view value %T for %s", value, view)
	}
	return w.write(frame)
}

func (w *Writer) write(v any) error {
	frame, err := EncodeFrame(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("archive closed")
	}
	if _, err := w.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file, if the writer owns one.
// Calling Close twice is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if f, ok := w.closer.(*os.File); ok {
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to sync archive: %w", err)
		}
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
