package cache

import (
	"context"

	"kplays-api/internal/metrics"
)

// Instrumented wraps a Cache and counts hits and misses.
type Instrumented struct {
	Cache
	name string
}

// NewInstrumented wraps c, labelling its metrics with name.
func NewInstrumented(c Cache, name string) *Instrumented {
	return &Instrumented{Cache: c, name: name}
}

// Get records a hit or a miss.
func (i *Instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := i.Cache.Get(ctx, key)
	switch {
	case err == nil:
		metrics.CacheHits.WithLabelValues(i.name).Inc()
	case IsMiss(err):
		metrics.CacheMisses.WithLabelValues(i.name).Inc()
	}
	return data, err
}
