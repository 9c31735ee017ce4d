package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func newTestBolt(t *testing.T, opts ...Option) (*BoltCache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := NewBoltCache(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, path
}

func TestBoltCacheSetGetExpire(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c, _ := newTestBolt(t, WithClock(clock.Now))

	require.NoError(t, c.Set(ctx, "game_1", []byte(`{"id":"1"}`), 300000*time.Millisecond))

	got, err := c.Get(ctx, "game_1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1"}`, string(got))

	clock.Advance(300001 * time.Millisecond)
	_, err = c.Get(ctx, "game_1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	// The expired record is gone from disk, not just hidden.
	err = c.db.View(func(tx *bolt.Tx) error {
		assert.Nil(t, tx.Bucket(entriesBucket).Get([]byte("game_1")))
		return nil
	})
	require.NoError(t, err)
}

func TestBoltCacheSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	c, err := NewBoltCache(path)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "games_cache", []byte("[]"), time.Hour))
	require.NoError(t, c.Close())

	c, err = NewBoltCache(path)
	require.NoError(t, err)
	defer c.Close()

	got, err := c.Get(ctx, "games_cache")
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), got)
}

func TestBoltCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestBolt(t)

	require.NoError(t, c.Set(ctx, "game_1", []byte("a"), time.Hour))
	require.NoError(t, c.Set(ctx, "games_cache", []byte("b"), time.Hour))
	require.NoError(t, c.Set(ctx, "session:x", []byte("c"), time.Hour))

	removed, err := c.Invalidate(ctx, "game")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = c.Get(ctx, "session:x")
	assert.NoError(t, err)
}

func TestBoltCacheCorruptRecordIsMiss(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestBolt(t)

	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).Put([]byte("broken"), []byte("{not json"))
	})
	require.NoError(t, err)

	_, err = c.Get(ctx, "broken")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestBoltCacheQuotaDropsWrite(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c, _ := newTestBolt(t, WithClock(clock.Now), WithQuota(120))

	require.NoError(t, c.Set(ctx, "a", []byte("0123456789"), time.Second))
	clock.Advance(2 * time.Second)

	big := make([]byte, 200)
	require.NoError(t, c.Set(ctx, "b", big, time.Hour))

	_, err := c.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss, "expired entry swept on quota failure")
}

func TestBoltCacheSetNX(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c, _ := newTestBolt(t, WithClock(clock.Now))

	ok, err := c.SetNX(ctx, "kp_view_v1_a", []byte("1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "kp_view_v1_a", []byte("2"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	clock.Advance(time.Minute)
	ok, err = c.SetNX(ctx, "kp_view_v1_a", []byte("3"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := c.Get(ctx, "kp_view_v1_a")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got)
}
