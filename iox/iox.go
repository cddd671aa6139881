// Package iox holds small I/O helpers shared by the HTTP clients: closing
// without error checks, and reading or draining response bodies with a
// bound.
package iox

import (
	"io"
	"strings"
)

// MaxErrorBody bounds how much of a failed response body is kept.
const MaxErrorBody = 4 << 10

// maxDrain bounds how much of an unread body is discarded before closing.
const maxDrain = 64 << 10

// DiscardClose closes c and ignores the error.
//
//	defer iox.DiscardClose(resp.Body)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a func that closes c, for t.Cleanup.
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DrainClose discards what is left of rc, up to a bound, then closes it so
// the underlying connection can be reused.
func DrainClose(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, maxDrain))
	_ = rc.Close()
}

// ErrorBody reads at most MaxErrorBody bytes of r for an error message.
// Read errors are ignored; whatever arrived is returned, trimmed.
func ErrorBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, MaxErrorBody))
	return strings.TrimSpace(string(b))
}
