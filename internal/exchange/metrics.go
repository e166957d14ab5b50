package exchange

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks API request latency by method.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kalshi_arb_exchange_request_duration_seconds",
			Help:    "Duration of exchange API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// RequestErrors tracks failed API requests by status.
	RequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_arb_exchange_request_errors_total",
			Help: "Total number of failed exchange API requests",
		},
		[]string{"status"},
	)

	// OrdersPlaced tracks orders submitted to the exchange.
	OrdersPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_arb_exchange_orders_placed_total",
			Help: "Total number of orders placed",
		},
		[]string{"action", "side"},
	)

	// OrdersCanceled tracks orders canceled before filling.
	OrdersCanceled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_exchange_orders_canceled_total",
		Help: "Total number of orders canceled",
	})
)
