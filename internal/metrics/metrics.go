// Package metrics holds the prometheus collectors shared by the API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled requests by method, route pattern and status.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kplays_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration observes request latency by method and route pattern.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kplays_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// CacheHits counts cache lookups that returned a live entry.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kplays_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	// CacheMisses counts lookups that found nothing or an expired entry.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kplays_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	// CacheDroppedWrites counts writes dropped for exceeding the storage quota.
	CacheDroppedWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kplays_cache_dropped_writes_total",
			Help: "Total number of cache writes dropped by quota",
		},
		[]string{"cache"},
	)

	// CounterFlushes counts view/download deltas flushed from the buffer to the store.
	CounterFlushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kplays_counter_flushed_items_total",
			Help: "Total number of buffered counter items written to the store",
		},
	)
)
