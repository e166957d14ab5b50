package types

import "time"

// PortfolioState is the persisted risk singleton (one row, last writer
// wins under the portfolio guard's single-writer discipline).
type PortfolioState struct {
	Balance       float64   `json:"balance"`
	DailyPnL      float64   `json:"daily_pnl"`
	OpenPositions int       `json:"open_positions"`
	KillSwitch    bool      `json:"kill_switch"`
	LastUpdated   time.Time `json:"last_updated"`
}

// Position is one open exchange position as returned by the portfolio
// endpoint.
type Position struct {
	Ticker        string  `json:"ticker"`
	Quantity      int     `json:"position"`
	MarketExposed float64 `json:"market_exposure"`
}

// PortfolioSummary is the daily-report view of the guard's state.
type PortfolioSummary struct {
	Balance       float64 `json:"balance"`
	DailyPnL      float64 `json:"daily_pnl"`
	OpenPositions int     `json:"open_positions"`
	KillSwitch    bool    `json:"kill_switch"`
	MaxDailyLoss  float64 `json:"max_daily_loss"`
	CanTrade      bool    `json:"can_trade"`
}
