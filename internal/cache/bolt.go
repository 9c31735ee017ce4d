package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"kplays-api/internal/metrics"

	bolt "go.etcd.io/bbolt"
)

var entriesBucket = []byte("entries")

// boltRecord is the on-disk form of an entry. Timestamp and TTL are milliseconds.
type boltRecord struct {
	Data      []byte `json:"data"`
	Timestamp int64  `json:"timestamp"`
	TTL       int64  `json:"ttl"`
}

// BoltCache is a persistent Cache on a bbolt file with a payload quota.
// It survives restarts the way browser local storage survives reloads.
type BoltCache struct {
	db   *bolt.DB
	mu   sync.Mutex
	size int64
	opts options
}

// NewBoltCache opens (or creates) the cache file at path.
func NewBoltCache(path string, opts ...Option) (*BoltCache, error) {
	o := defaultOptions()
	o.name = "bolt"
	for _, opt := range opts {
		opt(&o)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	var size int64
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(entriesBucket)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			size += int64(len(k) + len(v))
			return nil
		})
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache bucket: %w", err)
	}

	slog.Info("bolt cache opened", "path", path, "bytes", size, "quota", o.quota)
	return &BoltCache{db: db, size: size, opts: o}, nil
}

// Get retrieves a value by key. Expired or corrupt records are deleted.
func (c *BoltCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var value []byte
	found := false
	// A returned error would roll back the eviction, so misses are signalled via found.
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		raw := b.Get([]byte(key))
		if raw == nil {
			return nil
		}

		var rec boltRecord
		if err := json.Unmarshal(raw, &rec); err != nil || c.recordExpired(rec) {
			c.size -= int64(len(key) + len(raw))
			return b.Delete([]byte(key))
		}

		value = append([]byte(nil), rec.Data...)
		found = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrCacheMiss
	}
	return value, nil
}

// Set stores a value with the given TTL.
func (c *BoltCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	rec, err := c.encode(value, ttl)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.db.Update(func(tx *bolt.Tx) error {
		return c.put(tx.Bucket(entriesBucket), key, rec, len(value))
	})
}

// SetNX stores a value unless a live record already holds key. Corrupt
// records count as absent.
func (c *BoltCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	rec, err := c.encode(value, ttl)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	claimed := false
	err = c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		if raw := b.Get([]byte(key)); raw != nil {
			var old boltRecord
			if err := json.Unmarshal(raw, &old); err == nil && !c.recordExpired(old) {
				return nil
			}
		}
		claimed = true
		return c.put(b, key, rec, len(value))
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

func (c *BoltCache) encode(value []byte, ttl time.Duration) ([]byte, error) {
	return json.Marshal(boltRecord{
		Data:      value,
		Timestamp: c.opts.now().UnixMilli(),
		TTL:       ttl.Milliseconds(),
	})
}

// put writes rec unless it would exceed the quota. Runs inside an update
// transaction with c.mu held.
func (c *BoltCache) put(b *bolt.Bucket, key string, rec []byte, valueLen int) error {
	var oldSize int64
	if old := b.Get([]byte(key)); old != nil {
		oldSize = int64(len(key) + len(old))
	}
	newSize := int64(len(key) + len(rec))

	if c.opts.quota > 0 && c.size-oldSize+newSize > c.opts.quota {
		swept, err := c.sweep(b)
		if err != nil {
			return err
		}
		metrics.CacheDroppedWrites.WithLabelValues(c.opts.name).Inc()
		slog.Warn("cache quota exceeded, write dropped",
			"cache", c.opts.name, "key", key, "bytes", valueLen, "swept", swept)
		return nil
	}

	if err := b.Put([]byte(key), rec); err != nil {
		return err
	}
	c.size += newSize - oldSize
	return nil
}

// Delete removes a value by key.
func (c *BoltCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		if old := b.Get([]byte(key)); old != nil {
			c.size -= int64(len(key) + len(old))
		}
		return b.Delete([]byte(key))
	})
}

// Invalidate removes all keys containing pattern.
func (c *BoltCache) Invalidate(ctx context.Context, pattern string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		var keys [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if strings.Contains(string(k), pattern) {
				keys = append(keys, append([]byte(nil), k...))
				c.size -= int64(len(k) + len(v))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(keys)
		return nil
	})
	return removed, err
}

// Close closes the underlying database file.
func (c *BoltCache) Close() error {
	return c.db.Close()
}

// sweep drops expired and unreadable records. Runs inside an update transaction.
func (c *BoltCache) sweep(b *bolt.Bucket) (int, error) {
	var keys [][]byte
	err := b.ForEach(func(k, v []byte) error {
		var rec boltRecord
		if err := json.Unmarshal(v, &rec); err != nil || c.recordExpired(rec) {
			keys = append(keys, append([]byte(nil), k...))
			c.size -= int64(len(k) + len(v))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

func (c *BoltCache) recordExpired(rec boltRecord) bool {
	return expired(c.opts.now(), time.UnixMilli(rec.Timestamp), time.Duration(rec.TTL)*time.Millisecond)
}
