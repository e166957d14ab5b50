// Package detector evaluates every active relationship against current
// prices and emits scored, fee-checked opportunities. The detector is
// stateless across cycles: a mispricing that survives in the book simply
// re-emits until the executor takes it or it closes.
package detector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/internal/fees"
	"github.com/quantfold/kalshi-arb/pkg/types"
)

const (
	// minMagnitude is the smallest edge (dollars per contract) even
	// considered.
	minMagnitude = 0.02
	// softMagnitude is the higher bar for the soft IMPLICATION variant.
	softMagnitude = 0.08
	// minImplicationConfidence gates trading on inferred implications.
	minImplicationConfidence = 0.7

	// defaultDepth stands in when no leg market carries open interest.
	defaultDepth = 20
	// depthNorm is the open interest treated as full liquidity.
	depthNorm = 50

	// opportunityTTL bounds how long an emitted opportunity stays
	// executable.
	opportunityTTL = 5 * time.Minute
)

// Store is the slice of the storage layer the detector uses.
type Store interface {
	ListActiveRelationships(ctx context.Context) ([]types.Relationship, error)
	InsertOpportunity(ctx context.Context, opp *types.Opportunity) error
}

// MarketReader resolves tickers to current market rows. The production
// reader serves from a cache in front of storage.
type MarketReader interface {
	Market(ctx context.Context, ticker string) (*types.Market, error)
}

// Config holds detector configuration.
type Config struct {
	Store             Store
	Markets           MarketReader
	MinScoreThreshold float64
	FeeSafety         float64
	Logger            *zap.Logger
}

// Detector scans relationships for violations.
type Detector struct {
	store     Store
	markets   MarketReader
	minScore  float64
	feeSafety float64
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a Detector.
func New(cfg *Config) *Detector {
	feeSafety := cfg.FeeSafety
	if feeSafety < 1 {
		feeSafety = 2.0
	}
	return &Detector{
		store:     cfg.Store,
		markets:   cfg.Markets,
		minScore:  cfg.MinScoreThreshold,
		feeSafety: feeSafety,
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

// Scan evaluates every active relationship and returns surviving
// opportunities sorted by descending score. Each is persisted with status
// DETECTED before being returned.
func (d *Detector) Scan(ctx context.Context) ([]types.Opportunity, error) {
	start := d.now()

	rels, err := d.store.ListActiveRelationships(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active relationships: %w", err)
	}

	var opps []types.Opportunity
	for i := range rels {
		found, err := d.check(ctx, &rels[i])
		if err != nil {
			d.logger.Warn("relationship-check-failed",
				zap.String("relationship_id", rels[i].ID),
				zap.String("type", rels[i].Type),
				zap.Error(err))
			continue
		}
		opps = append(opps, found...)
	}

	sort.SliceStable(opps, func(a, b int) bool {
		return opps[a].Score > opps[b].Score
	})

	for i := range opps {
		if err := d.store.InsertOpportunity(ctx, &opps[i]); err != nil {
			d.logger.Error("opportunity-insert-failed",
				zap.String("id", opps[i].ID), zap.Error(err))
		}
	}

	ScanDuration.Observe(d.now().Sub(start).Seconds())
	if len(opps) > 0 {
		d.logger.Info("violations-detected",
			zap.Int("count", len(opps)),
			zap.Int("relationships", len(rels)))
	}
	return opps, nil
}

// check dispatches on the relationship variant.
func (d *Detector) check(ctx context.Context, rel *types.Relationship) ([]types.Opportunity, error) {
	switch rel.Type {
	case types.RelSubset:
		return d.checkSubset(ctx, rel)
	case types.RelThreshold:
		return d.checkThreshold(ctx, rel)
	case types.RelPartition:
		return d.checkPartition(ctx, rel)
	case types.RelImplication:
		return d.checkImplication(ctx, rel)
	default:
		return nil, fmt.Errorf("unknown relationship type %q", rel.Type)
	}
}

// checkSubset enforces P(subset) <= P(superset). A subset asking above
// the superset's bid is sold against a superset buy.
func (d *Detector) checkSubset(ctx context.Context, rel *types.Relationship) ([]types.Opportunity, error) {
	if len(rel.Tickers) != 2 {
		return nil, fmt.Errorf("subset relationship has %d tickers", len(rel.Tickers))
	}
	sub, err := d.market(ctx, rel.Tickers[0])
	if err != nil || sub == nil {
		return nil, err
	}
	sup, err := d.market(ctx, rel.Tickers[1])
	if err != nil || sup == nil {
		return nil, err
	}
	if !quoted(sub.YesAsk) || !quoted(sup.YesBid) {
		return nil, nil
	}

	magnitude := sub.YesAsk - sup.YesBid
	if magnitude <= minMagnitude {
		return nil, nil
	}

	legs := []types.Leg{
		{Ticker: sup.Ticker, Side: types.SideBuy, Price: sup.YesBid, Depth: sup.OpenInterest},
		{Ticker: sub.Ticker, Side: types.SideSell, Price: sub.YesAsk, Depth: sub.OpenInterest},
	}
	return d.emit(rel, types.SignalBuySupersetSellSubset, magnitude, legs), nil
}

// checkThreshold walks adjacent cutoff pairs; probability must be
// non-increasing as the cutoff rises.
func (d *Detector) checkThreshold(ctx context.Context, rel *types.Relationship) ([]types.Opportunity, error) {
	if len(rel.Tickers) < 2 {
		return nil, fmt.Errorf("threshold relationship has %d tickers", len(rel.Tickers))
	}

	var opps []types.Opportunity
	for i := 0; i+1 < len(rel.Tickers); i++ {
		lower, err := d.market(ctx, rel.Tickers[i])
		if err != nil {
			return nil, err
		}
		higher, err := d.market(ctx, rel.Tickers[i+1])
		if err != nil {
			return nil, err
		}
		if lower == nil || higher == nil {
			continue
		}
		if !quoted(higher.YesAsk) || !quoted(lower.YesBid) {
			continue
		}

		magnitude := higher.YesAsk - lower.YesBid
		if magnitude <= minMagnitude {
			continue
		}

		legs := []types.Leg{
			{Ticker: lower.Ticker, Side: types.SideBuy, Price: lower.YesBid, Depth: lower.OpenInterest},
			{Ticker: higher.Ticker, Side: types.SideSell, Price: higher.YesAsk, Depth: higher.OpenInterest},
		}
		opps = append(opps, d.emit(rel, types.ThresholdSignal(lower.Ticker, higher.Ticker), magnitude, legs)...)
	}
	return opps, nil
}

// checkPartition requires every member: a partition with a missing market
// is invalid, not partially tradable. The single-member degenerate case is
// the YES and NO sides of one market.
func (d *Detector) checkPartition(ctx context.Context, rel *types.Relationship) ([]types.Opportunity, error) {
	if len(rel.Tickers) == 0 {
		return nil, fmt.Errorf("partition relationship has no tickers")
	}

	members := make([]*types.Market, 0, len(rel.Tickers))
	for _, ticker := range rel.Tickers {
		m, err := d.market(ctx, ticker)
		if err != nil {
			return nil, err
		}
		if m == nil {
			MembersMissing.Inc()
			return nil, nil
		}
		members = append(members, m)
	}

	if len(members) == 1 {
		return d.checkSinglePartition(rel, members[0]), nil
	}

	sumAsk, sumBid := 0.0, 0.0
	allAsks, allBids := true, true
	for _, m := range members {
		if quoted(m.YesAsk) {
			sumAsk += m.YesAsk
		} else {
			allAsks = false
		}
		if quoted(m.YesBid) {
			sumBid += m.YesBid
		} else {
			allBids = false
		}
	}

	var opps []types.Opportunity
	if allAsks {
		if magnitude := 1 - sumAsk; magnitude > minMagnitude {
			legs := make([]types.Leg, len(members))
			for i, m := range members {
				legs[i] = types.Leg{Ticker: m.Ticker, Side: types.SideBuy, Price: m.YesAsk, Depth: m.OpenInterest}
			}
			opps = append(opps, d.emit(rel, types.SignalBuyAllPartition, magnitude, legs)...)
		}
	}
	if allBids {
		if magnitude := sumBid - 1; magnitude > minMagnitude {
			legs := make([]types.Leg, len(members))
			for i, m := range members {
				legs[i] = types.Leg{Ticker: m.Ticker, Side: types.SideSell, Price: m.YesBid, Depth: m.OpenInterest}
			}
			opps = append(opps, d.emit(rel, types.SignalSellAllPartition, magnitude, legs)...)
		}
	}
	return opps, nil
}

// checkSinglePartition treats one market's YES and NO sides as a two-way
// partition: asks summing below a dollar are bought, bids above sold.
func (d *Detector) checkSinglePartition(rel *types.Relationship, m *types.Market) []types.Opportunity {
	var opps []types.Opportunity

	if quoted(m.YesAsk) && quoted(m.NoAsk) {
		if magnitude := 1 - (m.YesAsk + m.NoAsk); magnitude > minMagnitude {
			legs := []types.Leg{
				{Ticker: m.Ticker, Side: types.SideBuy, Contract: types.ContractYes, Price: m.YesAsk, Depth: m.OpenInterest},
				{Ticker: m.Ticker, Side: types.SideBuy, Contract: types.ContractNo, Price: m.NoAsk, Depth: m.OpenInterest},
			}
			opps = append(opps, d.emit(rel, types.SignalBuyAllPartition, magnitude, legs)...)
		}
	}
	if quoted(m.YesBid) && quoted(m.NoBid) {
		if magnitude := (m.YesBid + m.NoBid) - 1; magnitude > minMagnitude {
			legs := []types.Leg{
				{Ticker: m.Ticker, Side: types.SideSell, Contract: types.ContractYes, Price: m.YesBid, Depth: m.OpenInterest},
				{Ticker: m.Ticker, Side: types.SideSell, Contract: types.ContractNo, Price: m.NoBid, Depth: m.OpenInterest},
			}
			opps = append(opps, d.emit(rel, types.SignalSellAllPartition, magnitude, legs)...)
		}
	}
	return opps
}

// checkImplication enforces the soft P(if) <= P(then) inequality with a
// wider magnitude bar and a confidence floor.
func (d *Detector) checkImplication(ctx context.Context, rel *types.Relationship) ([]types.Opportunity, error) {
	if len(rel.Tickers) != 2 {
		return nil, fmt.Errorf("implication relationship has %d tickers", len(rel.Tickers))
	}
	if rel.Confidence < minImplicationConfidence {
		return nil, nil
	}
	ifM, err := d.market(ctx, rel.Tickers[0])
	if err != nil || ifM == nil {
		return nil, err
	}
	thenM, err := d.market(ctx, rel.Tickers[1])
	if err != nil || thenM == nil {
		return nil, err
	}
	if !quoted(ifM.YesBid) || !quoted(thenM.YesAsk) {
		return nil, nil
	}

	magnitude := ifM.YesBid - thenM.YesAsk
	if magnitude <= softMagnitude {
		return nil, nil
	}

	legs := []types.Leg{
		{Ticker: thenM.Ticker, Side: types.SideBuy, Price: thenM.YesAsk, Depth: thenM.OpenInterest},
		{Ticker: ifM.Ticker, Side: types.SideSell, Price: ifM.YesBid, Depth: ifM.OpenInterest},
	}
	return d.emit(rel, types.SignalBuyThenSellIf, magnitude, legs), nil
}

// emit applies the fee hurdle and score gate, returning at most one
// opportunity.
func (d *Detector) emit(rel *types.Relationship, signal string, magnitude float64, legs []types.Leg) []types.Opportunity {
	prices := make([]float64, len(legs))
	for i, leg := range legs {
		prices[i] = leg.Price
	}
	if !fees.IsProfitable(magnitude, 1, prices, d.feeSafety) {
		RejectedTotal.WithLabelValues("fees").Inc()
		return nil
	}

	opp := types.Opportunity{
		ID:             uuid.NewString(),
		RelationshipID: rel.ID,
		Signal:         signal,
		Magnitude:      magnitude,
		Confidence:     rel.Confidence,
		Legs:           legs,
		Status:         types.OppDetected,
		DetectedAt:     d.now().UTC(),
	}
	opp.ExpiresAt = opp.DetectedAt.Add(opportunityTTL)

	liquidity := float64(opp.MinDepth(defaultDepth)) / depthNorm
	if liquidity > 1 {
		liquidity = 1
	}
	opp.Score = magnitude * rel.Confidence * liquidity
	if opp.Score < d.minScore {
		RejectedTotal.WithLabelValues("score").Inc()
		return nil
	}

	DetectedTotal.WithLabelValues(signal).Inc()
	MagnitudeDollars.Observe(magnitude)
	return []types.Opportunity{opp}
}

// market resolves a ticker, mapping "not found" to a nil market so callers
// can treat a missing member as a non-violation.
func (d *Detector) market(ctx context.Context, ticker string) (*types.Market, error) {
	m, err := d.markets.Market(ctx, ticker)
	if errors.Is(err, types.ErrMarketNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load market %s: %w", ticker, err)
	}
	return m, nil
}

func quoted(price float64) bool {
	return price > 0 && price < 1
}
