// Package archive records submissions and fetched result views to a file
// and replays them as an offline platform.Client.
//
// An archive is a stream of length-prefixed msgpack frames: a 4-byte
// big-endian payload length followed by the payload. Every payload carries a
// "type" discriminant.
package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/canary/types"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (64 MiB), including length prefix.
	MaxFrameSize = 64 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// FormatVersion is written in the header frame.
const FormatVersion = 1

// Frame type discriminants.
const (
	HeaderType     = "header"
	SubmissionType = "submission"
	StatusType     = "status"
	ViewType       = "view"
)

// HeaderFrame opens every archive.
type HeaderFrame struct {
	Type       string `msgpack:"type"`
	Version    int    `msgpack:"version"`
	Suite      string `msgpack:"suite"`
	SuiteRunID string `msgpack:"suite_run_id"`
	CreatedAt  string `msgpack:"created_at"`
}

// SubmissionFrame maps a job descriptor to the run it started.
type SubmissionFrame struct {
	Type string `msgpack:"type"`
	// Key is DescriptorKey of Descriptor.
	Key        string              `msgpack:"key"`
	Descriptor types.JobDescriptor `msgpack:"descriptor"`
	Handle     types.JobHandle     `msgpack:"handle"`
}

// StatusFrame is the terminal status of a run.
type StatusFrame struct {
	Type   string          `msgpack:"type"`
	RunID  string          `msgpack:"run_id"`
	Status types.JobStatus `msgpack:"status"`
}

// ViewFrame is one fetched result view. Exactly one payload field is set,
// matching View.
type ViewFrame struct {
	Type  string             `msgpack:"type"`
	RunID string             `msgpack:"run_id"`
	View  types.View         `msgpack:"view"`
	Log   string             `msgpack:"log,omitempty"`
	Info  *types.DatasetInfo `msgpack:"info,omitempty"`
	Items []types.Record     `msgpack:"items,omitempty"`
	Stats *types.Statistics  `msgpack:"stats,omitempty"`
}

// FrameErrorKind classifies frame decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
)

// FrameError represents a frame decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsTruncated reports whether err is a partial trailing frame, as left by a
// process killed mid-write. Frames before it are intact.
func IsTruncated(err error) bool {
	var frameErr *FrameError
	return errors.As(err, &frameErr) && frameErr.Kind == FrameErrorPartial
}

// EncodeFrame marshals v and prefixes it with its length.
func EncodeFrame(v any) ([]byte, error) {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}
	frame := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[LengthPrefixSize:], payload)
	return frame, nil
}

// FrameDecoder decodes length-prefixed msgpack frames from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: r}
}

// ReadFrame reads a single frame and returns its raw payload.
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(d.reader, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read length prefix", Err: err}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(d.reader, payload); err != nil {
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read payload", Err: err}
	}
	return payload, nil
}

// frameTypeProbe is used to peek at the type field without full decode.
type frameTypeProbe struct {
	Type string `msgpack:"type"`
}

// DecodeFrame decodes a payload into one of the frame types,
// discriminating on the type field.
func DecodeFrame(payload []byte) (any, error) {
	var probe frameTypeProbe
	if err := msgpack.Unmarshal(payload, &probe); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode frame type", Err: err}
	}

	var frame any
	switch probe.Type {
	case HeaderType:
		frame = &HeaderFrame{}
	case SubmissionType:
		frame = &SubmissionFrame{}
	case StatusType:
		frame = &StatusFrame{}
	case ViewType:
		frame = &ViewFrame{}
	default:
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: fmt.Sprintf("unknown frame type %q", probe.Type)}
	}
	if err := msgpack.Unmarshal(payload, frame); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode " + probe.Type + " frame", Err: err}
	}
	return frame, nil
}
