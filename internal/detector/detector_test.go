package detector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/pkg/types"
)

type fakeStore struct {
	rels     []types.Relationship
	inserted []types.Opportunity
}

func (f *fakeStore) ListActiveRelationships(ctx context.Context) ([]types.Relationship, error) {
	return f.rels, nil
}

func (f *fakeStore) InsertOpportunity(ctx context.Context, opp *types.Opportunity) error {
	f.inserted = append(f.inserted, *opp)
	return nil
}

type fakeReader map[string]*types.Market

func (f fakeReader) Market(ctx context.Context, ticker string) (*types.Market, error) {
	m, ok := f[ticker]
	if !ok {
		return nil, types.ErrMarketNotFound
	}
	return m, nil
}

func mk(ticker string, ask, bid float64, oi int64) *types.Market {
	return &types.Market{
		Ticker:       ticker,
		Status:       types.MarketStatusOpen,
		YesAsk:       ask,
		YesBid:       bid,
		OpenInterest: oi,
	}
}

func rel(relType string, confidence float64, tickers ...string) types.Relationship {
	return types.Relationship{
		ID:         "rel-" + relType,
		Type:       relType,
		Tickers:    tickers,
		Confidence: confidence,
	}
}

func newTestDetector(store *fakeStore, markets fakeReader) *Detector {
	return New(&Config{
		Store:             store,
		Markets:           markets,
		MinScoreThreshold: 0.05,
		FeeSafety:         2.0,
		Logger:            zap.NewNop(),
	})
}

func TestSubsetNoViolation(t *testing.T) {
	store := &fakeStore{rels: []types.Relationship{rel(types.RelSubset, 0.9, "SUB", "SUP")}}
	markets := fakeReader{
		"SUB": mk("SUB", 0.30, 0.28, 50),
		"SUP": mk("SUP", 0.60, 0.58, 50),
	}

	opps, err := newTestDetector(store, markets).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)
	assert.Empty(t, store.inserted)
}

func TestSubsetViolation(t *testing.T) {
	store := &fakeStore{rels: []types.Relationship{rel(types.RelSubset, 0.9, "SUB", "SUP")}}
	markets := fakeReader{
		"SUB": mk("SUB", 0.65, 0.63, 50),
		"SUP": mk("SUP", 0.52, 0.50, 50),
	}

	opps, err := newTestDetector(store, markets).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, types.SignalBuySupersetSellSubset, opp.Signal)
	assert.InDelta(t, 0.15, opp.Magnitude, 1e-9)
	require.Len(t, opp.Legs, 2)
	assert.Equal(t, types.Leg{Ticker: "SUP", Side: types.SideBuy, Price: 0.50, Depth: 50}, opp.Legs[0])
	assert.Equal(t, types.Leg{Ticker: "SUB", Side: types.SideSell, Price: 0.65, Depth: 50}, opp.Legs[1])
	assert.Equal(t, types.OppDetected, opp.Status)
	assert.Equal(t, 5*time.Minute, opp.ExpiresAt.Sub(opp.DetectedAt))
	assert.InDelta(t, 0.15*0.9, opp.Score, 1e-9)

	require.Len(t, store.inserted, 1, "violations are persisted as DETECTED")
}

func TestThresholdAdjacentPairs(t *testing.T) {
	store := &fakeStore{rels: []types.Relationship{rel(types.RelThreshold, 0.9, "T50", "T60", "T70")}}
	markets := fakeReader{
		// T60 asks above T50's bid: inverted pair.
		"T50": mk("T50", 0.52, 0.50, 50),
		"T60": mk("T60", 0.62, 0.58, 50),
		"T70": mk("T70", 0.30, 0.28, 50),
	}

	opps, err := newTestDetector(store, markets).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, types.ThresholdSignal("T50", "T60"), opps[0].Signal)
	assert.InDelta(t, 0.12, opps[0].Magnitude, 1e-9)
	assert.Equal(t, "T50", opps[0].Legs[0].Ticker)
	assert.Equal(t, types.SideBuy, opps[0].Legs[0].Side)
}

func TestPartitionBuyBranch(t *testing.T) {
	store := &fakeStore{rels: []types.Relationship{rel(types.RelPartition, 1.0, "P1", "P2", "P3")}}
	markets := fakeReader{
		"P1": mk("P1", 0.20, 0.18, 50),
		"P2": mk("P2", 0.20, 0.18, 50),
		"P3": mk("P3", 0.20, 0.18, 50),
	}

	opps, err := newTestDetector(store, markets).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, types.SignalBuyAllPartition, opps[0].Signal)
	assert.InDelta(t, 0.40, opps[0].Magnitude, 1e-9)
	require.Len(t, opps[0].Legs, 3)
	for _, leg := range opps[0].Legs {
		assert.Equal(t, types.SideBuy, leg.Side)
		assert.InDelta(t, 0.20, leg.Price, 1e-9)
	}
}

func TestPartitionSellBranch(t *testing.T) {
	store := &fakeStore{rels: []types.Relationship{rel(types.RelPartition, 1.0, "P1", "P2", "P3")}}
	markets := fakeReader{
		"P1": mk("P1", 0.45, 0.43, 50),
		"P2": mk("P2", 0.45, 0.43, 50),
		"P3": mk("P3", 0.45, 0.43, 50),
	}

	opps, err := newTestDetector(store, markets).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, types.SignalSellAllPartition, opps[0].Signal)
	assert.InDelta(t, 0.29, opps[0].Magnitude, 1e-9)
}

func TestPartitionMissingMemberSkipped(t *testing.T) {
	store := &fakeStore{rels: []types.Relationship{rel(types.RelPartition, 1.0, "P1", "P2", "GONE")}}
	markets := fakeReader{
		"P1": mk("P1", 0.20, 0.18, 50),
		"P2": mk("P2", 0.20, 0.18, 50),
	}

	opps, err := newTestDetector(store, markets).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps, "a partition without all members is invalid")
}

func TestSingleMarketPartition(t *testing.T) {
	store := &fakeStore{rels: []types.Relationship{rel(types.RelPartition, 1.0, "SOLO")}}
	solo := mk("SOLO", 0.40, 0.38, 50)
	solo.NoAsk = 0.45
	solo.NoBid = 0.43
	markets := fakeReader{"SOLO": solo}

	opps, err := newTestDetector(store, markets).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)

	// 1 - (0.40 + 0.45) = 0.15 on the buy branch.
	opp := opps[0]
	assert.Equal(t, types.SignalBuyAllPartition, opp.Signal)
	assert.InDelta(t, 0.15, opp.Magnitude, 1e-9)
	require.Len(t, opp.Legs, 2)
	assert.Equal(t, types.ContractYes, opp.Legs[0].ContractSide())
	assert.Equal(t, types.ContractNo, opp.Legs[1].ContractSide())
}

func TestImplicationConfidenceGate(t *testing.T) {
	markets := fakeReader{
		"IF":   mk("IF", 0.72, 0.70, 50),
		"THEN": mk("THEN", 0.55, 0.53, 50),
	}

	low := &fakeStore{rels: []types.Relationship{rel(types.RelImplication, 0.6, "IF", "THEN")}}
	opps, err := newTestDetector(low, markets).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps, "confidence below 0.7 never trades")

	high := &fakeStore{rels: []types.Relationship{rel(types.RelImplication, 0.8, "IF", "THEN")}}
	opps, err = newTestDetector(high, markets).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, types.SignalBuyThenSellIf, opps[0].Signal)
	assert.InDelta(t, 0.15, opps[0].Magnitude, 1e-9)
	assert.Equal(t, "THEN", opps[0].Legs[0].Ticker)
	assert.Equal(t, types.SideBuy, opps[0].Legs[0].Side)
}

func TestImplicationSoftMagnitudeGate(t *testing.T) {
	// 0.70 bid - 0.64 ask = 0.06: above the hard minimum, under the soft bar.
	store := &fakeStore{rels: []types.Relationship{rel(types.RelImplication, 0.9, "IF", "THEN")}}
	markets := fakeReader{
		"IF":   mk("IF", 0.72, 0.70, 50),
		"THEN": mk("THEN", 0.64, 0.62, 50),
	}

	opps, err := newTestDetector(store, markets).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestScoreGateAndLiquidityFactor(t *testing.T) {
	// Magnitude 0.15, confidence 0.9, but open interest 5 of 50 scales the
	// score to 0.15*0.9*0.1 ≈ 0.0135, under the 0.05 floor.
	store := &fakeStore{rels: []types.Relationship{rel(types.RelSubset, 0.9, "SUB", "SUP")}}
	markets := fakeReader{
		"SUB": mk("SUB", 0.65, 0.63, 5),
		"SUP": mk("SUP", 0.52, 0.50, 5),
	}

	opps, err := newTestDetector(store, markets).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestScanSortsByDescendingScore(t *testing.T) {
	store := &fakeStore{rels: []types.Relationship{
		rel(types.RelSubset, 0.7, "SMALL-SUB", "SMALL-SUP"),
		rel(types.RelSubset, 0.9, "BIG-SUB", "BIG-SUP"),
	}}
	markets := fakeReader{
		"SMALL-SUB": mk("SMALL-SUB", 0.60, 0.58, 50),
		"SMALL-SUP": mk("SMALL-SUP", 0.52, 0.50, 50),
		"BIG-SUB":   mk("BIG-SUB", 0.70, 0.68, 50),
		"BIG-SUP":   mk("BIG-SUP", 0.52, 0.50, 50),
	}

	opps, err := newTestDetector(store, markets).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 2)
	assert.Greater(t, opps[0].Score, opps[1].Score)
	assert.Equal(t, "rel-"+types.RelSubset, opps[0].RelationshipID)
	assert.InDelta(t, 0.20, opps[0].Magnitude, 1e-9)
}

func TestFeeHurdleRejectsThinEdge(t *testing.T) {
	// Magnitude 0.03 at mid prices: per-contract fees 0.02+0.02=0.04,
	// doubled by safety to 0.08, well above the edge.
	store := &fakeStore{rels: []types.Relationship{rel(types.RelSubset, 1.0, "SUB", "SUP")}}
	markets := fakeReader{
		"SUB": mk("SUB", 0.53, 0.51, 50),
		"SUP": mk("SUP", 0.52, 0.50, 50),
	}

	opps, err := newTestDetector(store, markets).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)
}
