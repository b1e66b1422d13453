package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.SetBytes(ctx, "risk:1", []byte("a"), time.Minute))
	require.NoError(t, c.SetBytes(ctx, "forever", []byte("b"), 0))

	b, ok, err := c.GetBytes(ctx, "risk:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("a"), b)

	now = now.Add(2 * time.Minute)
	_, ok, _ = c.GetBytes(ctx, "risk:1")
	assert.False(t, ok)

	_, ok, _ = c.GetBytes(ctx, "forever")
	assert.True(t, ok)
}

func TestTTLCacheSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache()
	c.now = func() time.Time { return now }

	_ = c.SetBytes(ctx, "a", []byte("1"), time.Second)
	_ = c.SetBytes(ctx, "b", []byte("2"), time.Hour)
	now = now.Add(time.Minute)

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
}

func TestTTLCacheDeletePrefix(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache()
	_ = c.SetBytes(ctx, "u:1:risk", []byte("x"), 0)
	_ = c.SetBytes(ctx, "u:1:anomalies", []byte("x"), 0)
	_ = c.SetBytes(ctx, "u:12:risk", []byte("x"), 0)

	require.NoError(t, c.DeletePrefix(ctx, "u:1:"))

	_, ok, _ := c.GetBytes(ctx, "u:12:risk")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestKeyScopesByUser(t *testing.T) {
	assert.Equal(t, "u:7:forecast:hba1c", Key(7, "forecast", "HbA1c"))
	assert.Equal(t, "u:7:risk", Key(7, "risk"))
	assert.True(t, strings.HasPrefix(Key(7, "risk"), UserPrefix(7)))
	assert.False(t, strings.HasPrefix(Key(70, "risk"), UserPrefix(7)))
}
