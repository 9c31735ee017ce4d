package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheSetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Set(ctx, "games_cache", []byte(`[1,2]`), time.Minute))

	got, err := c.Get(ctx, "games_cache")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[1,2]`), got)

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheExpiryEvicts(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewMemoryCache(WithClock(clock.Now))

	require.NoError(t, c.Set(ctx, "games_cache", []byte(`[1,2]`), 300000*time.Millisecond))

	clock.Advance(299999 * time.Millisecond)
	_, err := c.Get(ctx, "games_cache")
	require.NoError(t, err)

	clock.Advance(2 * time.Millisecond) // 300001ms after the write
	_, err = c.Get(ctx, "games_cache")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 0, c.Len(), "expired entry must be evicted on read")
}

func TestMemoryCacheExpiresExactlyAtTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewMemoryCache(WithClock(clock.Now))

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	clock.Advance(time.Second)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheInvalidateContains(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	for _, key := range []string{"game_1", "game_2", "games_cache", "kp_view_x_1", "youtube_gallery"} {
		require.NoError(t, c.Set(ctx, key, []byte("v"), time.Minute))
	}

	removed, err := c.Invalidate(ctx, "game")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	_, err = c.Get(ctx, "game_1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "games_cache")
	assert.ErrorIs(t, err, ErrCacheMiss)

	_, err = c.Get(ctx, "kp_view_x_1")
	assert.NoError(t, err)
	_, err = c.Get(ctx, "youtube_gallery")
	assert.NoError(t, err)
}

func TestMemoryCacheQuotaSweepsThenDrops(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewMemoryCache(WithClock(clock.Now), WithQuota(20))

	require.NoError(t, c.Set(ctx, "old", []byte("1234567"), time.Second)) // 10 bytes
	require.NoError(t, c.Set(ctx, "live", []byte("123456"), time.Hour))   // 10 bytes
	clock.Advance(2 * time.Second)

	// Over quota: expired "old" is swept, the write itself is dropped without error.
	require.NoError(t, c.Set(ctx, "new", []byte("1234567"), time.Hour))
	_, err := c.Get(ctx, "new")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 1, c.Len())

	// Space freed by the sweep is usable by the next write.
	require.NoError(t, c.Set(ctx, "new", []byte("1234567"), time.Hour))
	_, err = c.Get(ctx, "new")
	assert.NoError(t, err)
	_, err = c.Get(ctx, "live")
	assert.NoError(t, err)
}

func TestMemoryCacheOverwriteWithinQuota(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(WithQuota(10))

	require.NoError(t, c.Set(ctx, "k", []byte("12345678"), time.Hour))
	require.NoError(t, c.Set(ctx, "k", []byte("abcdefgh"), time.Hour))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdefgh"), got)
}

func TestMemoryCacheDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheSetNX(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewMemoryCache(WithClock(clock.Now))

	ok, err := c.SetNX(ctx, "kp_view_v1_a", []byte("1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "kp_view_v1_a", []byte("2"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := c.Get(ctx, "kp_view_v1_a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	clock.Advance(time.Minute)
	ok, err = c.SetNX(ctx, "kp_view_v1_a", []byte("3"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "an expired entry can be claimed again")
}

func TestMemoryCacheSetNXConcurrent(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	var claims int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := c.SetNX(ctx, "claim", []byte(fmt.Sprint(i)), time.Minute)
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&claims, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), claims)
}

func TestMemoryCacheSweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewMemoryCache(WithClock(clock.Now))

	require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Second))
	require.NoError(t, c.Set(ctx, "long", []byte("v"), time.Hour))

	clock.Advance(time.Minute)
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
}
