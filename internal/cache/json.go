package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// IsMiss reports whether err is a cache miss.
func IsMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// GetJSON decodes the entry at key into v. An entry that does not decode is
// evicted and reported as a miss.
func GetJSON(ctx context.Context, c Cache, key string, v interface{}) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		slog.Warn("evicting undecodable cache entry", "key", key, "error", err)
		_ = c.Delete(ctx, key)
		return ErrCacheMiss
	}
	return nil
}

// SetJSON serializes v and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}

// GetOrLoad returns the cached value for key or calls load, stores its result
// and returns it. Cache read and write failures fall through to the loader.
func GetOrLoad[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	err := GetJSON(ctx, c, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !IsMiss(err) {
		slog.Warn("cache read failed", "key", key, "error", err)
	}

	value, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if err := SetJSON(ctx, c, key, value, ttl); err != nil {
		slog.Warn("cache write failed", "key", key, "error", err)
	}
	return value, nil
}
