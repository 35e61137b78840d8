package id

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New generates a new ULID string. ULIDs are lexicographically sortable
// by creation time and safe for use as DynamoDB partition keys.
func New() string {
	return NewAt(time.Now())
}

// NewAt generates a ULID whose timestamp component is t, so that ordering by
// id matches ordering by t. IDs minted within the same millisecond increase
// monotonically in call order.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	u, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		// Monotonic overflow within one millisecond; start a fresh sequence.
		return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
	}
	return u.String()
}
