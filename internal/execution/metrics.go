package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExecutionsTotal tracks completed executions by terminal status.
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_arb_executions_total",
			Help: "Total number of opportunity executions by terminal status",
		},
		[]string{"status"},
	)

	// ExecutionDuration tracks end-to-end execution latency.
	ExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_arb_execution_duration_seconds",
		Help:    "Duration of opportunity executions",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 90},
	})

	// PartialFills tracks executions that left a directional residual or
	// cancelled partition legs.
	PartialFills = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_execution_partial_fills_total",
		Help: "Total number of executions that did not fill every leg",
	})
)
