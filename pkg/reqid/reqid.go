// Package reqid provides request identifier generation.
package reqid

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Prefix is prepended to generated request IDs.
const Prefix = "req-"

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New generates a new request ID.
//
// IDs from the same process are monotonically increasing within the
// same millisecond.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return Prefix + ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// FromTime generates a request ID for the given timestamp.
// Useful in tests that need deterministic ordering.
func FromTime(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return Prefix + ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
