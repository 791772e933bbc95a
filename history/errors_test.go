package history

import (
	"context"
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"AccessDenied: you do not have access", ErrAccessDenied},
		{"received status 403", ErrAccessDenied},
		{"open /data/history: permission denied", ErrPermissionDenied},
		{"open /data/history: no such file or directory", ErrNotFound},
		{"NoSuchBucket: the bucket does not exist", ErrNotFound},
		{"write /data: no space left on device", ErrDiskFull},
		{"operation timed out", ErrTimeout},
		{"SlowDown: please reduce your request rate", ErrThrottled},
		{"NoCredentialProviders: no valid providers in chain", ErrAuth},
		{"dial tcp 10.0.0.1:9000: connection refused", ErrNetwork},
		{"something odd", ErrUnclassified},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := classify(errors.New(tt.msg)); got != tt.want {
				t.Errorf("classify = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStorageErrorChain(t *testing.T) {
	err := wrap("write", "canary/sr-1", context.DeadlineExceeded)
	if !errors.Is(err, ErrTimeout) {
		t.Error("not ErrTimeout")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("underlying error lost")
	}
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "write" {
		t.Errorf("StorageError = %+v", se)
	}
	if wrap("read", "", nil) != nil {
		t.Error("wrap(nil) != nil")
	}
}
