package service

import (
	"context"

	"kplays-api/internal/cache"
	"kplays-api/internal/model"
	"kplays-api/internal/repository"
)

// CounterSink receives view and download increments.
type CounterSink interface {
	Add(ctx context.Context, gameID string, views, downloads int64) error
	// Pending returns increments accepted but not yet visible in the store.
	Pending(ctx context.Context, gameID string) (model.CounterDelta, error)
	Buffered() bool
}

// directCounters writes every increment straight to the store.
type directCounters struct {
	repo repository.GameRepository
}

// NewDirectCounters returns a sink that increments counters in the store.
func NewDirectCounters(repo repository.GameRepository) CounterSink {
	return directCounters{repo: repo}
}

func (d directCounters) Add(ctx context.Context, gameID string, views, downloads int64) error {
	return d.repo.IncrementCounters(ctx, gameID, views, downloads)
}

func (d directCounters) Pending(ctx context.Context, gameID string) (model.CounterDelta, error) {
	return model.CounterDelta{GameID: gameID}, nil
}

func (d directCounters) Buffered() bool { return false }

// bufferedCounters collects increments in redis and lets the buffer flush them.
type bufferedCounters struct {
	buf *cache.CounterBuffer
}

// NewBufferedCounters returns a sink backed by a write-behind buffer.
func NewBufferedCounters(buf *cache.CounterBuffer) CounterSink {
	return bufferedCounters{buf: buf}
}

func (b bufferedCounters) Add(ctx context.Context, gameID string, views, downloads int64) error {
	return b.buf.Add(ctx, gameID, views, downloads)
}

func (b bufferedCounters) Pending(ctx context.Context, gameID string) (model.CounterDelta, error) {
	return b.buf.Pending(ctx, gameID)
}

func (b bufferedCounters) Buffered() bool { return true }

// CreateFlushFunc creates the flush function for the counter buffer.
func CreateFlushFunc(repo repository.GameRepository) cache.FlushFunc {
	return func(ctx context.Context, deltas []model.CounterDelta) error {
		return repo.ApplyCounterDeltas(ctx, deltas)
	}
}
