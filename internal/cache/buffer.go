package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"kplays-api/internal/metrics"
	"kplays-api/internal/model"
	"kplays-api/pkg/uid"

	"github.com/redis/go-redis/v9"
)

// Buffer configuration
const (
	MaxBatchSize = 50
	FlushTimeout = 30 * time.Second
)

// FlushFunc is called to persist buffered counter deltas to the store.
type FlushFunc func(ctx context.Context, deltas []model.CounterDelta) error

// BatchRetention is how long a claimed batch survives when neither the
// store write nor its cleanup completes.
const BatchRetention = 7 * 24 * time.Hour

// claimBatchScript moves the pending counts of the given games into a batch
// hash in one step. Increments that land later go to the buffer again, and
// two flushers can never claim the same counts. Returns id, views,
// downloads triplets.
var claimBatchScript = redis.NewScript(`
	local out = {}
	for i = 2, #ARGV do
		local id = ARGV[i]
		local v = tonumber(redis.call("HGET", KEYS[1], id .. ":views") or "0")
		local d = tonumber(redis.call("HGET", KEYS[1], id .. ":downloads") or "0")
		redis.call("HDEL", KEYS[1], id .. ":views", id .. ":downloads")
		redis.call("SREM", KEYS[2], id)
		if v ~= 0 or d ~= 0 then
			redis.call("HSET", KEYS[3], id, v .. ":" .. d)
			table.insert(out, id)
			table.insert(out, v)
			table.insert(out, d)
		end
	end
	redis.call("PEXPIRE", KEYS[3], ARGV[1])
	return out
`)

// restoreBatchScript puts an unflushed batch back into the buffer.
var restoreBatchScript = redis.NewScript(`
	local batch = redis.call("HGETALL", KEYS[3])
	for i = 1, #batch, 2 do
		local id = batch[i]
		local v, d = string.match(batch[i + 1], "(-?%d+):(-?%d+)")
		redis.call("HINCRBY", KEYS[1], id .. ":views", tonumber(v))
		redis.call("HINCRBY", KEYS[1], id .. ":downloads", tonumber(d))
		redis.call("SADD", KEYS[2], id)
	end
	redis.call("DEL", KEYS[3])
	return #batch / 2
`)

// CounterBuffer uses Redis for write-behind view/download counting.
type CounterBuffer struct {
	client      *redis.Client
	flushFunc   FlushFunc
	flushTicker *time.Ticker
	stopFlush   chan struct{}
	done        chan struct{}
	stopOnce    sync.Once
	keyPrefix   string
}

// CounterBufferConfig holds configuration for the counter buffer.
type CounterBufferConfig struct {
	FlushInterval time.Duration
	KeyPrefix     string
}

// NewCounterBuffer creates a Redis-backed counter buffer and starts its flush loop.
func NewCounterBuffer(client *redis.Client, cfg CounterBufferConfig, flushFunc FlushFunc) *CounterBuffer {
	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "kplays"
	}
	keyPrefix += ":counters"

	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	b := &CounterBuffer{
		client:      client,
		flushFunc:   flushFunc,
		flushTicker: time.NewTicker(interval),
		stopFlush:   make(chan struct{}),
		done:        make(chan struct{}),
		keyPrefix:   keyPrefix,
	}

	go b.backgroundFlush()

	slog.Info("counter buffer started", "prefix", keyPrefix, "flush", interval, "batch", MaxBatchSize)
	return b
}

func (b *CounterBuffer) bufferKey() string {
	return b.keyPrefix + ":buffer"
}

func (b *CounterBuffer) pendingKey() string {
	return b.keyPrefix + ":pending"
}

func (b *CounterBuffer) batchKey() string {
	return b.keyPrefix + ":batch:" + uid.New()
}

// Add buffers counter increments for a game.
func (b *CounterBuffer) Add(ctx context.Context, gameID string, views, downloads int64) error {
	pipe := b.client.Pipeline()
	if views != 0 {
		pipe.HIncrBy(ctx, b.bufferKey(), gameID+":views", views)
	}
	if downloads != 0 {
		pipe.HIncrBy(ctx, b.bufferKey(), gameID+":downloads", downloads)
	}
	pipe.SAdd(ctx, b.pendingKey(), gameID)
	_, err := pipe.Exec(ctx)
	return err
}

// Pending returns the not yet flushed deltas for a game.
func (b *CounterBuffer) Pending(ctx context.Context, gameID string) (model.CounterDelta, error) {
	delta := model.CounterDelta{GameID: gameID}
	vals, err := b.client.HMGet(ctx, b.bufferKey(), gameID+":views", gameID+":downloads").Result()
	if err != nil {
		return delta, err
	}
	delta.Views = parseCount(vals[0])
	delta.Downloads = parseCount(vals[1])
	return delta, nil
}

// Count returns the number of games with pending deltas.
func (b *CounterBuffer) Count(ctx context.Context) (int64, error) {
	return b.client.SCard(ctx, b.pendingKey()).Result()
}

// FlushBatch writes up to MaxBatchSize games' deltas to the store. The
// deltas leave the buffer under a batch key unique to this flush before the
// store is written, so a failure after the write can never replay them. A
// failed store write puts the batch back.
func (b *CounterBuffer) FlushBatch(ctx context.Context) (int, error) {
	gameIDs, err := b.client.SRandMemberN(ctx, b.pendingKey(), MaxBatchSize).Result()
	if err != nil {
		return 0, err
	}
	if len(gameIDs) == 0 {
		return 0, nil
	}

	batch := b.batchKey()
	keys := []string{b.bufferKey(), b.pendingKey(), batch}
	args := make([]interface{}, 0, len(gameIDs)+1)
	args = append(args, BatchRetention.Milliseconds())
	for _, id := range gameIDs {
		args = append(args, id)
	}

	raw, err := claimBatchScript.Run(ctx, b.client, keys, args...).Slice()
	if err != nil {
		return 0, fmt.Errorf("failed to claim counter batch: %w", err)
	}
	deltas := parseBatch(raw)
	if len(deltas) == 0 {
		return 0, nil
	}

	if err := b.flushFunc(ctx, deltas); err != nil {
		slog.Error("counter buffer flush failed", "items", len(deltas), "error", err)
		if _, rerr := restoreBatchScript.Run(context.WithoutCancel(ctx), b.client, keys).Result(); rerr != nil {
			slog.Error("counter batch restore failed, counts parked", "batch", batch, "error", rerr)
		}
		return 0, err
	}

	metrics.CounterFlushes.Add(float64(len(deltas)))

	if err := b.client.Del(ctx, batch).Err(); err != nil {
		return len(deltas), fmt.Errorf("failed to drop flushed counter batch %s: %w", batch, err)
	}

	slog.Debug("counter buffer flushed", "items", len(deltas))
	return len(deltas), nil
}

// Flush drains the buffer completely.
func (b *CounterBuffer) Flush(ctx context.Context) error {
	for {
		flushed, err := b.FlushBatch(ctx)
		if err != nil {
			return err
		}
		if flushed == 0 {
			return nil
		}
	}
}

func (b *CounterBuffer) backgroundFlush() {
	defer close(b.done)
	for {
		select {
		case <-b.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), FlushTimeout)
			if _, err := b.FlushBatch(ctx); err != nil {
				slog.Error("counter buffer background flush failed", "error", err)
			}
			cancel()
		case <-b.stopFlush:
			slog.Info("counter buffer shutdown, flushing remaining items")
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			if err := b.Flush(ctx); err != nil {
				slog.Error("counter buffer shutdown flush failed", "error", err)
			}
			cancel()
			return
		}
	}
}

// Close stops the flush loop after a final flush. The client is owned by the caller.
func (b *CounterBuffer) Close() error {
	b.stopOnce.Do(func() {
		b.flushTicker.Stop()
		close(b.stopFlush)
	})
	<-b.done
	return nil
}

func parseBatch(raw []interface{}) []model.CounterDelta {
	deltas := make([]model.CounterDelta, 0, len(raw)/3)
	for i := 0; i+2 < len(raw); i += 3 {
		id, _ := raw[i].(string)
		views, _ := raw[i+1].(int64)
		downloads, _ := raw[i+2].(int64)
		deltas = append(deltas, model.CounterDelta{GameID: id, Views: views, Downloads: downloads})
	}
	return deltas
}

func parseCount(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
