package detector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DetectedTotal tracks emitted opportunities by signal.
	DetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_arb_opportunities_detected_total",
			Help: "Total number of constraint violations emitted as opportunities",
		},
		[]string{"signal"},
	)

	// RejectedTotal tracks violations discarded before emission.
	RejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_arb_opportunities_rejected_total",
			Help: "Total number of violations rejected by the fee or score gate",
		},
		[]string{"reason"},
	)

	// MagnitudeDollars tracks emitted violation sizes.
	MagnitudeDollars = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_arb_opportunity_magnitude_dollars",
		Help:    "Magnitude of emitted opportunities in dollars per contract",
		Buckets: []float64{0.02, 0.04, 0.08, 0.12, 0.20, 0.30, 0.50},
	})

	// MembersMissing tracks partitions skipped for an absent member.
	MembersMissing = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_partition_members_missing_total",
		Help: "Total number of partition checks skipped because a member market was missing",
	})

	// ScanDuration tracks detection cycle latency.
	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_arb_detection_duration_seconds",
		Help:    "Duration of detection cycles",
		Buckets: prometheus.DefBuckets,
	})
)
