package types

import "time"

// Market status values as reported by the exchange.
const (
	MarketStatusOpen    = "open"
	MarketStatusActive  = "active"
	MarketStatusClosed  = "closed"
	MarketStatusSettled = "settled"
)

// Market is one binary YES/NO contract on the exchange.
// Prices are dollars on the [0, 1] scale; zero means the side is currently
// unquoted. A quoted market satisfies yes_ask + no_bid ≈ 1 (complementary
// sides); deviations are exactly what the detector trades.
type Market struct {
	Ticker       string    `json:"ticker"`
	EventTicker  string    `json:"event_ticker"`
	Title        string    `json:"title"`
	Subtitle     string    `json:"subtitle,omitempty"`
	Category     string    `json:"category,omitempty"`
	Status       string    `json:"status"`
	YesAsk       float64   `json:"yes_ask"`
	YesBid       float64   `json:"yes_bid"`
	NoAsk        float64   `json:"no_ask"`
	NoBid        float64   `json:"no_bid"`
	Volume       int64     `json:"volume"`
	OpenInterest int64     `json:"open_interest"`
	CloseTime    time.Time `json:"close_time"`
	RulesPrimary string    `json:"rules_primary,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsOpen reports whether the market still accepts orders.
func (m *Market) IsOpen() bool {
	return m.Status == MarketStatusOpen || m.Status == MarketStatusActive
}

// Event groups the markets that settle against one underlying question.
type Event struct {
	EventTicker   string   `json:"event_ticker"`
	Title         string   `json:"title"`
	Category      string   `json:"category,omitempty"`
	MarketTickers []string `json:"market_tickers"`
}

// PriceSnapshot is one append-only price observation for the audit log.
type PriceSnapshot struct {
	MarketTicker string    `json:"market_ticker"`
	YesAsk       float64   `json:"yes_ask"`
	YesBid       float64   `json:"yes_bid"`
	Timestamp    time.Time `json:"timestamp"`
}
