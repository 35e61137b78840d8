package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// refreshBytes yields a 64-character hex refresh token.
const refreshBytes = 32

// Refresh is an opaque refresh token and the unix second it stops being accepted.
type Refresh struct {
	Value     string
	ExpiresAt int64
}

// NewRefresh issues a random refresh token valid for ttl from now.
func NewRefresh(now time.Time, ttl time.Duration) (Refresh, error) {
	b := make([]byte, refreshBytes)
	if _, err := rand.Read(b); err != nil {
		return Refresh{}, fmt.Errorf("generate refresh token: %w", err)
	}
	return Refresh{Value: hex.EncodeToString(b), ExpiresAt: now.Add(ttl).Unix()}, nil
}

// Expired reports whether a token expiring at expiresAt is no longer usable at now.
func Expired(expiresAt int64, now time.Time) bool {
	return expiresAt < now.Unix()
}
