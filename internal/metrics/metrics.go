// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Computations counts engine runs by operation and outcome.
	Computations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "priority_computations_total",
		Help: "Engine computations by operation and result",
	}, []string{"operation", "result"})

	// ComputeDuration tracks engine latency per operation.
	ComputeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "priority_compute_duration_seconds",
		Help:    "Engine computation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
	}, []string{"operation"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "priority_results_cache_hits_total",
		Help: "Project result lookups served from the memo cache",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "priority_results_cache_misses_total",
		Help: "Project result lookups that ran the engine",
	})

	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "priority_results_cache_entries",
		Help: "Entries currently held in the memo cache",
	})

	// ConsistencyRatio records every CR computed for a matrix with three or more elements.
	ConsistencyRatio = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "priority_consistency_ratio",
		Help:    "Consistency ratio of evaluated comparison matrices",
		Buckets: []float64{0.01, 0.02, 0.05, 0.1, 0.15, 0.2, 0.3, 0.5, 1},
	})

	ComparisonsUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "priority_comparisons_upserted_total",
		Help: "Pairwise comparisons written",
	})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "priority_events_published_total",
		Help: "Events published to hermes by kind and result",
	}, []string{"kind", "result"})
)

// ObserveComputation records the outcome and latency of one engine call.
func ObserveComputation(operation string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	Computations.WithLabelValues(operation, result).Inc()
	ComputeDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
