package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BreakerState reports the current state (0 closed, 1 open, 2 half-open).
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kalshi_arb_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"breaker"},
	)

	// StateChanges counts transitions between states.
	StateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_arb_circuit_breaker_state_changes_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"breaker"},
	)

	// CallsRejected counts calls refused while open.
	CallsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_arb_circuit_breaker_rejected_total",
			Help: "Total number of calls rejected by an open circuit breaker",
		},
		[]string{"breaker"},
	)
)
