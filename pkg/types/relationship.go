package types

import (
	"sort"
	"time"

	json "github.com/goccy/go-json"
)

// Relationship variants. Ticker order carries the variant semantics:
// SUBSET is [subset, superset], THRESHOLD is ascending cutoffs,
// IMPLICATION is [if, then]. PARTITION order is not significant.
const (
	RelSubset      = "SUBSET"
	RelThreshold   = "THRESHOLD"
	RelPartition   = "PARTITION"
	RelImplication = "IMPLICATION"
)

// Relationship is a durable logical constraint relating market tickers.
// Rows are inserted by the relationship mapper, re-validated in place on
// rediscovery, and removed once no participating market remains open.
type Relationship struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Tickers       []string  `json:"tickers"`
	Description   string    `json:"constraint_description"`
	Formula       string    `json:"constraint_formula"`
	Confidence    float64   `json:"confidence"`
	Reasoning     string    `json:"reasoning,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastValidated time.Time `json:"last_validated"`
}

// TickerKey returns the dedup key for a relationship's members: the tickers
// sorted and serialized as a JSON array. (Type, TickerKey) is unique in
// persistence regardless of the semantic order kept in Tickers.
func TickerKey(tickers []string) string {
	sorted := make([]string, len(tickers))
	copy(sorted, tickers)
	sort.Strings(sorted)

	b, err := json.Marshal(sorted)
	if err != nil {
		return ""
	}
	return string(b)
}
