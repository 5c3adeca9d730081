package cache

import (
	"context"
	"testing"
	"time"

	"github.com/mikey/mailview/internal/core"
	"github.com/mikey/mailview/internal/sanitizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newEntry(key string, expires time.Time) *core.CacheEntry {
	return &core.CacheEntry{
		Key:       key,
		HTML:      "<p>" + key + "</p>",
		Status:    sanitizer.StatusSanitized,
		ExpiresAt: expires,
	}
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), 0, 0)
	defer c.Stop()
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Set(ctx, newEntry("a", time.Now().Add(time.Hour))))
	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "<p>a</p>", got.HTML)

	// Callers get copies.
	got.HTML = "mutated"
	again, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "<p>a</p>", again.HTML)

	require.NoError(t, c.Delete(ctx, "a"))
	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), 0, 0)
	defer c.Stop()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, newEntry("old", now.Add(time.Minute))))
	require.NoError(t, c.Set(ctx, newEntry("fresh", now.Add(time.Hour))))

	now = now.Add(2 * time.Minute)
	_, err := c.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrExpired)

	require.NoError(t, c.Cleanup(ctx))
	assert.Equal(t, 1, c.Len())
	_, err = c.Get(ctx, "fresh")
	assert.NoError(t, err)
}

func TestMemoryCache_EvictsWhenFull(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), 0, 2)
	defer c.Stop()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, c.Set(ctx, newEntry("soon", base.Add(time.Minute))))
	require.NoError(t, c.Set(ctx, newEntry("later", base.Add(time.Hour))))
	require.NoError(t, c.Set(ctx, newEntry("new", base.Add(2*time.Hour))))

	assert.Equal(t, 2, c.Len())
	_, err := c.Get(ctx, "soon")
	assert.ErrorIs(t, err, ErrNotFound)

	// Overwriting an existing key never evicts.
	require.NoError(t, c.Set(ctx, newEntry("later", base.Add(3*time.Hour))))
	assert.Equal(t, 2, c.Len())
}

func TestMemoryCache_BackgroundCleanup(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), 5*time.Millisecond, 0)
	defer c.Stop()

	require.NoError(t, c.Set(context.Background(), newEntry("gone", time.Now().Add(-time.Second))))
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryCache_StopIsIdempotent(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), time.Hour, 0)
	c.Stop()
	assert.NotPanics(t, c.Stop)
}

func TestMemoryCache_RejectsKeylessEntries(t *testing.T) {
	c := NewMemoryCache(nil, 0, 0)
	assert.Error(t, c.Set(context.Background(), &core.CacheEntry{}))
	assert.Error(t, c.Set(context.Background(), nil))
}
