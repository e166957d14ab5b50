package types

import "time"

// Opportunity lifecycle states. The detector writes DETECTED rows; every
// later transition belongs to the executor.
const (
	OppDetected  = "DETECTED"
	OppExecuting = "EXECUTING"
	OppFilled    = "FILLED"
	OppFailed    = "FAILED"
	OppExpired   = "EXPIRED"
)

// Order sides and contract sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"

	ContractYes = "yes"
	ContractNo  = "no"
)

// Signal tags for the fixed-shape violations.
const (
	SignalBuySupersetSellSubset = "BUY_SUPERSET_SELL_SUBSET"
	SignalBuyAllPartition       = "BUY_ALL_PARTITION"
	SignalSellAllPartition      = "SELL_ALL_PARTITION"
	SignalBuyThenSellIf         = "BUY_THEN_SELL_IF"
)

// ThresholdSignal names a violation between one adjacent pair of a
// threshold family.
func ThresholdSignal(lower, higher string) string {
	return "BUY_" + lower + "_SELL_" + higher
}

// Leg is one order of an opportunity's plan. Price is the limit price in
// dollars. Contract defaults to the YES side; only the degenerate
// one-market partition trades the NO side directly.
type Leg struct {
	Ticker   string  `json:"ticker"`
	Side     string  `json:"side"`
	Contract string  `json:"contract,omitempty"`
	Price    float64 `json:"price"`
	Depth    int64   `json:"depth"`
}

// ContractSide returns the side of the binary contract this leg trades.
func (l Leg) ContractSide() string {
	if l.Contract == ContractNo {
		return ContractNo
	}
	return ContractYes
}

// Opportunity is a scored constraint violation emitted by the detector.
type Opportunity struct {
	ID             string    `json:"id"`
	RelationshipID string    `json:"relationship_id"`
	Signal         string    `json:"signal"`
	Magnitude      float64   `json:"magnitude"`
	Confidence     float64   `json:"confidence"`
	Score          float64   `json:"score"`
	Legs           []Leg     `json:"legs"`
	Status         string    `json:"status"`
	DetectedAt     time.Time `json:"detected_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// LegPrices returns the limit prices of all legs, in leg order.
func (o *Opportunity) LegPrices() []float64 {
	prices := make([]float64, len(o.Legs))
	for i, leg := range o.Legs {
		prices[i] = leg.Price
	}
	return prices
}

// MinDepth returns the shallowest leg depth, or def when no leg carries one.
func (o *Opportunity) MinDepth(def int64) int64 {
	depth := int64(0)
	for _, leg := range o.Legs {
		if leg.Depth > 0 && (depth == 0 || leg.Depth < depth) {
			depth = leg.Depth
		}
	}
	if depth == 0 {
		return def
	}
	return depth
}
