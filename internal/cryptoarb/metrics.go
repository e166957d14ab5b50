package cryptoarb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal tracks completed scan cycles.
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_cryptoarb_cycles_total",
		Help: "Total number of completed scan cycles",
	})

	// ArbsFound tracks markets that cleared the profit hurdle.
	ArbsFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_cryptoarb_arbs_found_total",
		Help: "Total number of YES+NO arbitrages found",
	})

	// ArbsExecuted tracks arbitrages with both legs placed.
	ArbsExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_cryptoarb_arbs_executed_total",
		Help: "Total number of YES+NO arbitrages executed",
	})

	// CycleDuration tracks scan cycle latency.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_arb_cryptoarb_cycle_duration_seconds",
		Help:    "Duration of scan cycles",
		Buckets: prometheus.DefBuckets,
	})
)
