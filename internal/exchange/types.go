package exchange

import (
	"time"

	"github.com/quantfold/kalshi-arb/pkg/types"
)

// Order sides and actions on the wire.
const (
	SideYes    = "yes"
	SideNo     = "no"
	ActionBuy  = "buy"
	ActionSell = "sell"

	OrderTypeLimit = "limit"
)

// Market is the wire representation of one contract. Prices are integer
// cents.
type Market struct {
	Ticker         string    `json:"ticker"`
	EventTicker    string    `json:"event_ticker"`
	Title          string    `json:"title"`
	Subtitle       string    `json:"subtitle"`
	Category       string    `json:"category"`
	Status         string    `json:"status"`
	YesAsk         int       `json:"yes_ask"`
	YesBid         int       `json:"yes_bid"`
	NoAsk          int       `json:"no_ask"`
	NoBid          int       `json:"no_bid"`
	Volume         int64     `json:"volume"`
	OpenInterest   int64     `json:"open_interest"`
	CloseTime      time.Time `json:"close_time"`
	ExpirationTime time.Time `json:"expiration_time"`
	RulesPrimary   string    `json:"rules_primary"`
}

// Event is the wire representation of an event, optionally with nested
// markets.
type Event struct {
	EventTicker string   `json:"event_ticker"`
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	Markets     []Market `json:"markets"`
}

// OrderbookLevel is one [price_cents, contracts] pair.
type OrderbookLevel [2]int

// Orderbook carries resting liquidity per side, best levels last.
type Orderbook struct {
	Yes []OrderbookLevel `json:"yes"`
	No  []OrderbookLevel `json:"no"`
}

// Order is the exchange's view of one placed order.
type Order struct {
	OrderID        string  `json:"order_id"`
	ClientOrderID  string  `json:"client_order_id"`
	Ticker         string  `json:"ticker"`
	Side           string  `json:"side"`
	Action         string  `json:"action"`
	Type           string  `json:"type"`
	Status         string  `json:"status"`
	YesPrice       int     `json:"yes_price"`
	Count          int     `json:"count"`
	RemainingCount int     `json:"remaining_count"`
	FilledCount    int     `json:"filled_count"`
	FilledAvgPrice float64 `json:"filled_avg_price"`
	CreatedAt      string  `json:"created_at"`
}

// Filled reports whether the order is completely filled.
func (o *Order) Filled() bool {
	return o.Status == "executed" || o.Status == "filled" ||
		(o.Count > 0 && o.FilledCount >= o.Count)
}

// OrderRequest is the body of an order placement.
type OrderRequest struct {
	Ticker        string `json:"ticker"`
	Side          string `json:"side"`
	Action        string `json:"action"`
	Type          string `json:"type"`
	Count         int    `json:"count"`
	YesPrice      int    `json:"yes_price,omitempty"`
	NoPrice       int    `json:"no_price,omitempty"`
	Expiration    int64  `json:"expiration_ts,omitempty"`
	ClientOrderID string `json:"client_order_id"`
}

// Fill is one execution report.
type Fill struct {
	TradeID   string    `json:"trade_id"`
	OrderID   string    `json:"order_id"`
	Ticker    string    `json:"ticker"`
	Side      string    `json:"side"`
	Action    string    `json:"action"`
	Count     int       `json:"count"`
	YesPrice  int       `json:"yes_price"`
	NoPrice   int       `json:"no_price"`
	IsTaker   bool      `json:"is_taker"`
	CreatedAt time.Time `json:"created_time"`
}

// Position is one open market position.
type Position struct {
	Ticker         string `json:"ticker"`
	Position       int    `json:"position"` // signed contracts, + long YES
	MarketExposure int    `json:"market_exposure"`
	TotalTraded    int    `json:"total_traded"`
	RestingOrders  int    `json:"resting_orders_count"`
	Fees           int    `json:"fees_paid"`
}

// CentsToDollars converts a wire price to the [0, 1] dollar scale used
// everywhere above this package.
func CentsToDollars(cents int) float64 {
	return float64(cents) / 100
}

// DollarsToCents converts a [0, 1] price to wire cents.
func DollarsToCents(price float64) int {
	return int(price*100 + 0.5)
}

// YesPriceForNoBuy is the only place the NO-side price inversion lives:
// buying NO at noCents is expressed on the wire as a yes_price of
// 100 - noCents.
func YesPriceForNoBuy(noCents int) int {
	return 100 - noCents
}

// Normalize converts a wire market to the domain representation. A zero
// close time falls back to the expiration time.
func (m *Market) Normalize(now time.Time) types.Market {
	closeTime := m.CloseTime
	if closeTime.IsZero() {
		closeTime = m.ExpirationTime
	}
	return types.Market{
		Ticker:       m.Ticker,
		EventTicker:  m.EventTicker,
		Title:        m.Title,
		Subtitle:     m.Subtitle,
		Category:     m.Category,
		Status:       m.Status,
		YesAsk:       CentsToDollars(m.YesAsk),
		YesBid:       CentsToDollars(m.YesBid),
		NoAsk:        CentsToDollars(m.NoAsk),
		NoBid:        CentsToDollars(m.NoBid),
		Volume:       m.Volume,
		OpenInterest: m.OpenInterest,
		CloseTime:    closeTime,
		RulesPrimary: m.RulesPrimary,
		UpdatedAt:    now,
	}
}

// Normalize converts a wire event to the domain representation.
func (e *Event) Normalize() types.Event {
	tickers := make([]string, 0, len(e.Markets))
	for _, m := range e.Markets {
		tickers = append(tickers, m.Ticker)
	}
	return types.Event{
		EventTicker:   e.EventTicker,
		Title:         e.Title,
		Category:      e.Category,
		MarketTickers: tickers,
	}
}

// TotalDepth sums contracts across all levels of one side.
func TotalDepth(levels []OrderbookLevel) int {
	total := 0
	for _, lvl := range levels {
		total += lvl[1]
	}
	return total
}
