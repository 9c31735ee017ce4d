package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"kplays-api/internal/metrics"
)

// cacheEntry represents a cached value with its write time and lifetime.
type cacheEntry struct {
	value     []byte
	timestamp time.Time
	ttl       time.Duration
}

// MemoryCache is an in-memory implementation of Cache.
// Use this for development/testing or single-instance deployments.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	size    int64
	opts    options
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache(opts ...Option) *MemoryCache {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryCache{
		entries: make(map[string]*cacheEntry),
		opts:    o,
	}
}

// Get retrieves a value by key, evicting it if it has expired.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, ErrCacheMiss
	}
	if expired(c.opts.now(), entry.timestamp, entry.ttl) {
		c.remove(key)
		return nil, ErrCacheMiss
	}

	result := make([]byte, len(entry.value))
	copy(result, entry.value)
	return result, nil
}

// Set stores a value with the given TTL.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.put(key, value, ttl)
	return nil
}

// SetNX stores a value unless a live entry already holds key.
func (c *MemoryCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok && !expired(c.opts.now(), entry.timestamp, entry.ttl) {
		return false, nil
	}
	c.put(key, value, ttl)
	return true, nil
}

// put writes an entry unless it would exceed the quota. Caller holds the lock.
func (c *MemoryCache) put(key string, value []byte, ttl time.Duration) {
	if c.opts.quota > 0 {
		needed := c.size + int64(len(key)+len(value))
		if old, ok := c.entries[key]; ok {
			needed -= int64(len(key) + len(old.value))
		}
		if needed > c.opts.quota {
			swept := c.sweep()
			metrics.CacheDroppedWrites.WithLabelValues(c.opts.name).Inc()
			slog.Warn("cache quota exceeded, write dropped",
				"cache", c.opts.name, "key", key, "bytes", len(value), "swept", swept)
			return
		}
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	c.remove(key)
	c.entries[key] = &cacheEntry{
		value:     valueCopy,
		timestamp: c.opts.now(),
		ttl:       ttl,
	}
	c.size += int64(len(key) + len(valueCopy))
}

// Delete removes a value by key.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.remove(key)
	return nil
}

// Invalidate removes all keys containing pattern.
func (c *MemoryCache) Invalidate(ctx context.Context, pattern string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if strings.Contains(key, pattern) {
			c.remove(key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep removes every expired entry and returns how many it removed.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweep()
}

// Close is a no-op; there is no background work to stop.
func (c *MemoryCache) Close() error {
	return nil
}

// sweep removes every expired entry. Caller holds the lock.
func (c *MemoryCache) sweep() int {
	now := c.opts.now()
	removed := 0
	for key, entry := range c.entries {
		if expired(now, entry.timestamp, entry.ttl) {
			c.remove(key)
			removed++
		}
	}
	return removed
}

// remove deletes key and updates the size. Caller holds the lock.
func (c *MemoryCache) remove(key string) {
	if entry, ok := c.entries[key]; ok {
		c.size -= int64(len(key) + len(entry.value))
		delete(c.entries, key)
	}
}
