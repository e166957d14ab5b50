package testutil

import (
	"time"

	"github.com/quantfold/kalshi-arb/internal/exchange"
	"github.com/quantfold/kalshi-arb/pkg/types"
)

// WireMarket builds an open wire market with sane two-sided quotes.
// Prices are integer cents.
func WireMarket(ticker, eventTicker, category string, yesAsk, yesBid int) exchange.Market {
	return exchange.Market{
		Ticker:       ticker,
		EventTicker:  eventTicker,
		Title:        "Will " + ticker + " resolve YES?",
		Category:     category,
		Status:       types.MarketStatusOpen,
		YesAsk:       yesAsk,
		YesBid:       yesBid,
		NoAsk:        100 - yesBid,
		NoBid:        100 - yesAsk,
		Volume:       5000,
		OpenInterest: 1000,
		CloseTime:    time.Now().UTC().Add(30 * 24 * time.Hour),
		RulesPrimary: "Resolves YES if the underlying condition is met.",
	}
}

// Market builds a normalized domain market. Prices are dollars.
func Market(ticker, eventTicker string, yesAsk, yesBid float64) types.Market {
	return types.Market{
		Ticker:       ticker,
		EventTicker:  eventTicker,
		Title:        "Will " + ticker + " resolve YES?",
		Category:     "Politics",
		Status:       types.MarketStatusOpen,
		YesAsk:       yesAsk,
		YesBid:       yesBid,
		NoAsk:        1 - yesBid,
		NoBid:        1 - yesAsk,
		Volume:       5000,
		OpenInterest: 1000,
		CloseTime:    time.Now().UTC().Add(30 * 24 * time.Hour),
		UpdatedAt:    time.Now().UTC(),
	}
}

// SubsetRelationship builds a SUBSET constraint: P(subset) <= P(superset).
func SubsetRelationship(id, subset, superset string) *types.Relationship {
	now := time.Now().UTC()
	return &types.Relationship{
		ID:            id,
		Type:          types.RelSubset,
		Tickers:       []string{subset, superset},
		Description:   "P(" + subset + ") <= P(" + superset + ")",
		Formula:       "P(" + subset + ") <= P(" + superset + ")",
		Confidence:    0.95,
		CreatedAt:     now,
		LastValidated: now,
	}
}

// PartitionRelationship builds a PARTITION constraint over the tickers.
func PartitionRelationship(id string, tickers ...string) *types.Relationship {
	now := time.Now().UTC()
	return &types.Relationship{
		ID:            id,
		Type:          types.RelPartition,
		Tickers:       tickers,
		Description:   "SUM(P(...)) ≈ 1.00",
		Formula:       "SUM_EQUALS_1",
		Confidence:    0.9,
		CreatedAt:     now,
		LastValidated: now,
	}
}
