package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// Hits counts cache reads that returned a typed value.
	Hits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_cache_hits_total",
		Help: "Total number of cache hits",
	})

	// Misses counts reads with no usable entry.
	Misses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_cache_misses_total",
		Help: "Total number of cache misses",
	})

	// Sets counts admitted writes.
	Sets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_cache_sets_total",
		Help: "Total number of cache sets",
	})

	// Deletes counts explicit removals.
	Deletes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_cache_deletes_total",
		Help: "Total number of cache deletes",
	})
)
