package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kplays-api/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// scanBatch is the COUNT hint used while scanning for invalidation.
const scanBatch = 200

// RedisCache implements Cache using Redis for distributed storage.
// This is suitable for multi-instance deployments behind a load balancer.
// Expiry is delegated to Redis, which never returns an expired key.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a Redis-backed cache. Keys are stored under prefix + ":cache:".
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "kplays"
	}
	slog.Info("redis cache connected", "prefix", prefix)
	return &RedisCache{
		client: client,
		prefix: prefix + ":cache:",
	}
}

// Get retrieves a value by key.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache from redis: %w", err)
	}
	return data, nil
}

// Set stores a value with the given TTL. Writes refused because Redis is out
// of memory are dropped like quota failures in the local backends.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+key, value, ttl).Err()
	if err != nil && isOutOfMemory(err) {
		metrics.CacheDroppedWrites.WithLabelValues("redis").Inc()
		slog.Warn("cache quota exceeded, write dropped", "cache", "redis", "key", key, "bytes", len(value))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to set cache in redis: %w", err)
	}
	return nil
}

// SetNX stores a value with SET NX PX, so only one caller claims key.
func (c *RedisCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.prefix+key, value, ttl).Result()
	if err != nil && isOutOfMemory(err) {
		metrics.CacheDroppedWrites.WithLabelValues("redis").Inc()
		slog.Warn("cache quota exceeded, write dropped", "cache", "redis", "key", key, "bytes", len(value))
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to claim cache key in redis: %w", err)
	}
	return ok, nil
}

// Delete removes a value by key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}

// Invalidate removes all keys containing pattern.
func (c *RedisCache) Invalidate(ctx context.Context, pattern string) (int, error) {
	match := c.prefix + "*" + escapeGlob(pattern) + "*"
	iter := c.client.Scan(ctx, 0, match, scanBatch).Iterator()

	var keys []string
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.Contains(strings.TrimPrefix(key, c.prefix), pattern) {
			keys = append(keys, key)
		}
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan cache keys: %w", err)
	}

	removed := 0
	for start := 0; start < len(keys); start += scanBatch {
		end := start + scanBatch
		if end > len(keys) {
			end = len(keys)
		}
		n, err := c.client.Del(ctx, keys[start:end]...).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to delete cache keys: %w", err)
		}
		removed += int(n)
	}
	return removed, nil
}

// Close is a no-op; the client is owned by the caller.
func (c *RedisCache) Close() error {
	return nil
}

func isOutOfMemory(err error) bool {
	return strings.HasPrefix(err.Error(), "OOM")
}

// escapeGlob escapes the characters SCAN MATCH treats as wildcards.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
