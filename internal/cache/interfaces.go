package cache

import (
	"context"
	"time"
)

// Cache defines the interface for TTL caching operations.
//
// An entry is live only while now - written < ttl. Reading an expired entry
// evicts it and reports ErrCacheMiss. Backends never sweep on their own; bulk
// removal of expired entries happens when a write hits the quota or when the
// owner calls MemoryCache.Sweep.
type Cache interface {
	// Get retrieves a value by key. Returns ErrCacheMiss if absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL. A write rejected for lack of
	// space is dropped and logged, not returned as an error.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value only if key is absent or expired and reports
	// whether it did. Concurrent callers racing on one key see exactly one
	// true. A claim dropped for lack of space still reports true.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// Invalidate removes every key whose name contains pattern and returns
	// how many were removed.
	Invalidate(ctx context.Context, pattern string) (int, error)

	// Close releases backend resources.
	Close() error
}

// Common cache errors
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"
)

// Option configures the local backends.
type Option func(*options)

type options struct {
	now   func() time.Time
	quota int64
	name  string
}

func defaultOptions() options {
	return options{now: time.Now, name: "cache"}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithQuota limits the total payload bytes. Zero means unlimited.
func WithQuota(bytes int64) Option {
	return func(o *options) { o.quota = bytes }
}

// WithName labels log lines and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// expired reports whether an entry written at ts with the given ttl is dead at now.
func expired(now, ts time.Time, ttl time.Duration) bool {
	return now.Sub(ts) >= ttl
}
