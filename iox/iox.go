// Package iox provides cleanup helpers for closers and HTTP bodies.
package iox

import "io"

// maxDrain bounds how much of an unread body DrainClose consumes.
const maxDrain = 64 << 10

// DiscardClose closes c and discards the error:
//
//	defer iox.DiscardClose(resp.Body)
func DiscardClose(c io.Closer) { _ = c.Close() }

// DrainClose reads what is left of rc (up to 64 KiB) and closes it, so the
// HTTP transport can reuse the connection. Errors are discarded.
func DrainClose(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, maxDrain))
	_ = rc.Close()
}

// CloseFunc returns a cleanup function that closes c, for t.Cleanup:
//
//	t.Cleanup(iox.CloseFunc(adapter))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}
