package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sent tracks successfully delivered notifications.
	Sent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_notify_sent_total",
		Help: "Total number of notifications delivered",
	})

	// Dropped tracks notifications shed by the client-side rate limit.
	Dropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_notify_dropped_total",
		Help: "Total number of notifications dropped by the rate limit",
	})

	// Failed tracks delivery failures after retry.
	Failed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_notify_failed_total",
		Help: "Total number of notification delivery failures",
	})
)
