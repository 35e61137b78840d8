package token

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRefresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	r, err := NewRefresh(now, 24*time.Hour)

	require.NoError(t, err)
	assert.Len(t, r.Value, 64)
	_, err = hex.DecodeString(r.Value)
	assert.NoError(t, err)
	assert.Equal(t, now.Add(24*time.Hour).Unix(), r.ExpiresAt)
}

func TestNewRefresh_Unique(t *testing.T) {
	now := time.Now()
	a, err := NewRefresh(now, time.Hour)
	require.NoError(t, err)
	b, err := NewRefresh(now, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, a.Value, b.Value)
}

func TestExpired(t *testing.T) {
	now := time.Unix(1_000, 0)
	assert.False(t, Expired(1_001, now))
	assert.False(t, Expired(1_000, now))
	assert.True(t, Expired(999, now))
}
