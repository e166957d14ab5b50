package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TaskDuration tracks per-task run latency.
	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kalshi_arb_orchestrator_task_duration_seconds",
			Help:    "Duration of orchestrator task runs",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"task"},
	)

	// TaskErrors tracks task failures and panics.
	TaskErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_arb_orchestrator_task_errors_total",
			Help: "Total number of orchestrator task failures",
		},
		[]string{"task"},
	)

	// OpportunitiesVetoed tracks opportunities expired by the assessor.
	OpportunitiesVetoed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_orchestrator_opportunities_vetoed_total",
		Help: "Total number of opportunities vetoed before execution",
	})
)
