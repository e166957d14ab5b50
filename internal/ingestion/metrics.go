package ingestion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MarketsIngested tracks open markets seen on the last sweep.
	MarketsIngested = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_arb_ingestion_markets",
		Help: "Number of open markets seen on the last ingestion sweep",
	})

	// EventsIngested tracks open events seen on the last sweep.
	EventsIngested = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_arb_ingestion_events",
		Help: "Number of open events seen on the last ingestion sweep",
	})

	// IngestDuration tracks sweep latency.
	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_arb_ingestion_duration_seconds",
		Help:    "Duration of full ingestion sweeps",
		Buckets: prometheus.DefBuckets,
	})

	// IngestErrors tracks failed sweeps.
	IngestErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_ingestion_errors_total",
		Help: "Total number of failed ingestion sweeps",
	})
)
