package marketcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SnapshotSize tracks markets in the published snapshot.
	SnapshotSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_arb_marketcache_snapshot_size",
		Help: "Number of markets in the published snapshot",
	})

	// RefreshErrors tracks failed snapshot rebuilds.
	RefreshErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_marketcache_refresh_errors_total",
		Help: "Total number of failed snapshot refreshes",
	})
)
