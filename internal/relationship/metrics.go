package relationship

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchesAnalyzed tracks oracle batches submitted per pass.
	BatchesAnalyzed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_arb_relationship_batches_total",
			Help: "Total number of market batches submitted to the oracle",
		},
		[]string{"pass"},
	)

	// RelationshipsDiscovered tracks new relationships by variant.
	RelationshipsDiscovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_arb_relationships_discovered_total",
			Help: "Total number of new relationships discovered",
		},
		[]string{"type"},
	)

	// ProposalsDropped tracks malformed oracle proposals.
	ProposalsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_relationship_proposals_dropped_total",
		Help: "Total number of oracle proposals rejected as malformed",
	})

	// StaleRelationshipsRemoved tracks cleanup sweep deletions.
	StaleRelationshipsRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_relationships_stale_removed_total",
		Help: "Total number of relationships removed by the staleness sweep",
	})

	// OracleCallDuration tracks oracle request latency.
	OracleCallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_arb_oracle_call_duration_seconds",
		Help:    "Duration of relationship oracle calls",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 120},
	})

	// OracleErrors tracks failed oracle calls.
	OracleErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_oracle_errors_total",
		Help: "Total number of failed relationship oracle calls",
	})
)
