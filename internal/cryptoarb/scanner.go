// Package cryptoarb runs the auxiliary YES+NO loop over crypto price
// markets: when a market's two ask prices sum below a dollar by more than
// the round-trip taker fees, buying both sides locks in the difference at
// settlement regardless of outcome.
package cryptoarb

import (
	"math"
	"sort"

	"github.com/quantfold/kalshi-arb/internal/fees"
	"github.com/quantfold/kalshi-arb/internal/marketcache"
	"github.com/quantfold/kalshi-arb/pkg/types"
)

// Arb is one market flagged by the scanner.
type Arb struct {
	Market      types.Market
	TotalAsk    float64
	TotalFees   float64
	ProfitCents float64
}

// Scan walks the snapshot and returns every market whose YES+NO ask sum
// leaves at least minProfitCents after taker fees on both legs, most
// profitable first.
func Scan(snap *marketcache.Snapshot, minProfitCents int) []Arb {
	var found []Arb
	for _, m := range snap.Markets {
		arb, ok := evaluate(m, minProfitCents)
		if !ok {
			continue
		}
		found = append(found, arb)
	}
	sort.Slice(found, func(i, j int) bool {
		return found[i].ProfitCents > found[j].ProfitCents
	})
	return found
}

func evaluate(m types.Market, minProfitCents int) (Arb, bool) {
	if m.YesAsk <= 0 || m.YesAsk >= 1 || m.NoAsk <= 0 || m.NoAsk >= 1 {
		return Arb{}, false
	}
	totalAsk := m.YesAsk + m.NoAsk
	// Fees are per contract, so one contract prices the hurdle.
	totalFees := fees.TakerFee(1, m.YesAsk) + fees.TakerFee(1, m.NoAsk)
	// Round at a hundredth of a cent so float drift in the ask sum cannot
	// push a borderline arb under the integer threshold.
	profitCents := math.Round((1.0-totalAsk-totalFees)*1e4) / 100
	if profitCents < float64(minProfitCents) {
		return Arb{}, false
	}
	return Arb{
		Market:      m,
		TotalAsk:    totalAsk,
		TotalFees:   totalFees,
		ProfitCents: profitCents,
	}, true
}
