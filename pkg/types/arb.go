package types

import "time"

// ArbScan is one audit row of the YES+NO loop: a market whose two ask
// prices summed below a dollar by enough to act on.
type ArbScan struct {
	ID          string    `json:"id"`
	EventTicker string    `json:"event_ticker"`
	NumMarkets  int       `json:"num_markets"`
	TotalAsk    float64   `json:"total_ask"`
	TotalFees   float64   `json:"total_fees"`
	ProfitCents float64   `json:"profit_cents"`
	Acted       bool      `json:"acted"`
	ScannedAt   time.Time `json:"scanned_at"`
}

// ArbTrade is one leg placed by the YES+NO loop.
type ArbTrade struct {
	ID          string    `json:"id"`
	ScanID      string    `json:"scan_id"`
	EventTicker string    `json:"event_ticker"`
	Ticker      string    `json:"ticker"`
	Side        string    `json:"side"`
	Price       float64   `json:"price"`
	Count       int       `json:"count"`
	OrderID     string    `json:"order_id"`
	OrderStatus string    `json:"order_status"`
	Fees        float64   `json:"fees"`
	CreatedAt   time.Time `json:"created_at"`
}
