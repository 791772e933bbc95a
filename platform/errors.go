package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// StatusError is returned for non-2xx API responses.
// Wrapping the status code lets callers distinguish retriable (5xx, 429)
// from non-retriable (other 4xx) failures.
type StatusError struct {
	Code int
	// Op is the API operation that failed (e.g. "submit", "dataset items").
	Op string
	// Body is a truncated response body for diagnostics.
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Code, e.Body)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Code)
}

// Transient reports whether retrying the request may succeed.
func (e *StatusError) Transient() bool {
	return e.Code >= 500 || e.Code == 429
}

// IsTransient reports whether err is a transient platform failure:
// a 5xx/429 response or a network-level error. Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
