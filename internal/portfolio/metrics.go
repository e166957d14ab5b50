package portfolio

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BalanceDollars tracks the last synced cash balance.
	BalanceDollars = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_arb_portfolio_balance_dollars",
		Help: "Last synced exchange cash balance in dollars",
	})

	// OpenPositions tracks the last synced open position count.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_arb_portfolio_open_positions",
		Help: "Last synced number of open positions",
	})

	// DailyPnL tracks realized profit and loss since UTC midnight.
	DailyPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_arb_portfolio_daily_pnl_dollars",
		Help: "Realized profit and loss since UTC midnight in dollars",
	})

	// TradesRefused tracks safety-gate refusals by reason.
	TradesRefused = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_arb_portfolio_trades_refused_total",
			Help: "Total number of trades refused by the risk gate",
		},
		[]string{"reason"},
	)
)
