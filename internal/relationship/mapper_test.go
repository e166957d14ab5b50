package relationship

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/pkg/types"
)

type fakeOracle struct {
	responses []string
	prompts   []string
	err       error
	calls     int
}

func (f *fakeOracle) Propose(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "[]", nil
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

type openBreaker struct{ open bool }

func (b *openBreaker) Allow() bool    { return !b.open }
func (b *openBreaker) RecordSuccess() {}
func (b *openBreaker) RecordFailure() {}

type mapperStore struct {
	markets []types.Market
	rels    map[string]*types.Relationship // keyed by type + ticker key
	byID    map[string]*types.Relationship
	deleted []string
}

func newMapperStore(markets ...types.Market) *mapperStore {
	return &mapperStore{
		markets: markets,
		rels:    make(map[string]*types.Relationship),
		byID:    make(map[string]*types.Relationship),
	}
}

func (s *mapperStore) ListOpenMarkets(ctx context.Context) ([]types.Market, error) {
	return s.markets, nil
}

func (s *mapperStore) FindRelationship(ctx context.Context, relType, tickerKey string) (*types.Relationship, error) {
	return s.rels[relType+tickerKey], nil
}

func (s *mapperStore) InsertRelationship(ctx context.Context, rel *types.Relationship) error {
	s.rels[rel.Type+types.TickerKey(rel.Tickers)] = rel
	s.byID[rel.ID] = rel
	return nil
}

func (s *mapperStore) RevalidateRelationship(ctx context.Context, id string, confidence float64, at time.Time) error {
	rel, ok := s.byID[id]
	if !ok {
		return errors.New("not found")
	}
	rel.Confidence = confidence
	rel.LastValidated = at
	return nil
}

func (s *mapperStore) ListRelationships(ctx context.Context) ([]types.Relationship, error) {
	out := make([]types.Relationship, 0, len(s.byID))
	for _, rel := range s.byID {
		out = append(out, *rel)
	}
	return out, nil
}

func (s *mapperStore) DeleteRelationship(ctx context.Context, id string) error {
	rel, ok := s.byID[id]
	if !ok {
		return errors.New("not found")
	}
	delete(s.rels, rel.Type+types.TickerKey(rel.Tickers))
	delete(s.byID, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func market(ticker, event, category string) types.Market {
	return types.Market{
		Ticker:      ticker,
		EventTicker: event,
		Category:    category,
		Title:       "Market " + ticker,
		Status:      types.MarketStatusOpen,
		YesAsk:      0.50,
		YesBid:      0.48,
	}
}

func newTestMapper(store Store, oracle Oracle) *Mapper {
	return New(&Config{
		Store:   store,
		Oracle:  oracle,
		Breaker: &openBreaker{},
		Logger:  zap.NewNop(),
	})
}

func TestEventPassInsertsProposals(t *testing.T) {
	store := newMapperStore(
		market("KXA-SUB", "KXA", "Politics"),
		market("KXA-SUP", "KXA", "Politics"),
		market("KXB-ONLY", "KXB", "Politics"), // singleton event, never batched
	)
	oracle := &fakeOracle{responses: []string{
		`[{"type": "SUBSET", "subset_ticker": "KXA-SUB", "superset_ticker": "KXA-SUP", "confidence": 0.9, "reasoning": "nested outcome"}]`,
	}}

	m := newTestMapper(store, oracle)
	stats, err := m.EventPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Batches, "singleton events are skipped")
	assert.Equal(t, 1, stats.Inserted)

	rel := store.rels[types.RelSubset+types.TickerKey([]string{"KXA-SUB", "KXA-SUP"})]
	require.NotNil(t, rel)
	assert.Equal(t, []string{"KXA-SUB", "KXA-SUP"}, rel.Tickers, "order is [subset, superset]")
	assert.Equal(t, "P(KXA-SUB) <= P(KXA-SUP)", rel.Formula)
}

func TestEventPassRefreshesDuplicates(t *testing.T) {
	store := newMapperStore(
		market("KXA-1", "KXA", "Politics"),
		market("KXA-2", "KXA", "Politics"),
	)
	resp := `[{"type": "PARTITION", "tickers": ["KXA-1", "KXA-2"], "confidence": 0.8}]`
	oracle := &fakeOracle{responses: []string{resp, resp}}

	m := newTestMapper(store, oracle)
	_, err := m.EventPass(context.Background())
	require.NoError(t, err)

	// Second discovery of the same constraint refreshes, never duplicates.
	oracle.responses = []string{`[{"type": "PARTITION", "tickers": ["KXA-2", "KXA-1"], "confidence": 0.95}]`}
	stats, err := m.EventPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 1, stats.Refreshed)
	require.Len(t, store.byID, 1)
	for _, rel := range store.byID {
		assert.InDelta(t, 0.95, rel.Confidence, 1e-9)
	}
}

func TestProposalRejectsHallucinatedTickers(t *testing.T) {
	store := newMapperStore(
		market("KXA-1", "KXA", "Politics"),
		market("KXA-2", "KXA", "Politics"),
	)
	oracle := &fakeOracle{responses: []string{
		`[{"type": "SUBSET", "subset_ticker": "KXA-1", "superset_ticker": "KXZ-MADEUP", "confidence": 0.9}]`,
	}}

	m := newTestMapper(store, oracle)
	stats, err := m.EventPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Dropped)
	assert.Empty(t, store.byID)
}

func TestCategoryPassHonorsAllowList(t *testing.T) {
	store := newMapperStore(
		market("KXNBA-1", "KXNBA", "Sports"),
		market("KXNBA-2", "KXNBA", "Sports"),
		market("KXFED-1", "KXFED", "Economics"),
		market("KXFED-2", "KXFED", "Economics"),
	)
	oracle := &fakeOracle{}

	m := newTestMapper(store, oracle)
	_, err := m.CategoryPass(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, oracle.calls, "sports markets never reach the oracle")
	assert.Contains(t, oracle.prompts[0], "KXFED-1")
	assert.NotContains(t, oracle.prompts[0], "KXNBA-1")
}

func TestCrossPassChunksLargeBatches(t *testing.T) {
	var markets []types.Market
	for i := 0; i < 90; i++ {
		markets = append(markets, market(fmt.Sprintf("KXM-%02d", i), "KXM", "Economics"))
	}
	store := newMapperStore(markets...)
	oracle := &fakeOracle{}

	m := newTestMapper(store, oracle)
	_, err := m.CrossPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, oracle.calls, "90 markets chunk into 40+40+10")
}

func TestOracleFailureDropsBatchAndContinues(t *testing.T) {
	store := newMapperStore(
		market("KXA-1", "KXA", "Politics"),
		market("KXA-2", "KXA", "Politics"),
		market("KXB-1", "KXB", "Politics"),
		market("KXB-2", "KXB", "Politics"),
	)
	oracle := &fakeOracle{err: errors.New("oracle down")}

	m := newTestMapper(store, oracle)
	stats, err := m.EventPass(context.Background())
	require.NoError(t, err, "batch failures do not fail the pass")
	assert.Equal(t, 2, oracle.calls, "the second event is still attempted")
	assert.Equal(t, 0, stats.Inserted)
}

func TestBreakerOpenSkipsBatches(t *testing.T) {
	store := newMapperStore(
		market("KXA-1", "KXA", "Politics"),
		market("KXA-2", "KXA", "Politics"),
	)
	oracle := &fakeOracle{}
	m := New(&Config{
		Store:   store,
		Oracle:  oracle,
		Breaker: &openBreaker{open: true},
		Logger:  zap.NewNop(),
	})

	_, err := m.EventPass(context.Background())
	require.NoError(t, err)
	assert.Zero(t, oracle.calls)
}

func TestCleanupStale(t *testing.T) {
	store := newMapperStore(market("KXA-1", "KXA", "Politics"))
	now := time.Now().UTC()

	live := &types.Relationship{
		ID: "live", Type: types.RelSubset,
		Tickers: []string{"KXA-1", "KXGONE-1"}, CreatedAt: now, LastValidated: now,
	}
	stale := &types.Relationship{
		ID: "stale", Type: types.RelPartition,
		Tickers: []string{"KXGONE-1", "KXGONE-2"}, CreatedAt: now, LastValidated: now,
	}
	require.NoError(t, store.InsertRelationship(context.Background(), live))
	require.NoError(t, store.InsertRelationship(context.Background(), stale))

	m := newTestMapper(store, &fakeOracle{})
	removed, err := m.CleanupStale(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"stale"}, store.deleted)
	assert.Contains(t, store.byID, "live", "one open member keeps the row")
}

func TestNormalizeVariants(t *testing.T) {
	known := map[string]bool{"A": true, "B": true, "C": true}
	now := time.Now().UTC()

	t.Run("threshold", func(t *testing.T) {
		p := proposal{Type: "THRESHOLD", TickersAscending: []string{"A", "B", "C"}, Confidence: 0.85}
		rel, err := p.normalize(known, now)
		require.NoError(t, err)
		assert.Equal(t, "P(A) >= P(B) >= P(C)", rel.Formula)
		assert.Equal(t, []string{"A", "B", "C"}, rel.Tickers)
	})

	t.Run("implication", func(t *testing.T) {
		p := proposal{Type: "IMPLICATION", IfTicker: "A", ThenTicker: "B", EstimatedConditionalProb: 0.92, Confidence: 0.8}
		rel, err := p.normalize(known, now)
		require.NoError(t, err)
		assert.Equal(t, "IMPLIES(A,B,0.92)", rel.Formula)
		assert.Equal(t, []string{"A", "B"}, rel.Tickers, "order is [if, then]")
	})

	t.Run("partition formula", func(t *testing.T) {
		p := proposal{Type: "PARTITION", Tickers: []string{"A", "B"}, Confidence: 0.9}
		rel, err := p.normalize(known, now)
		require.NoError(t, err)
		assert.Equal(t, "SUM_EQUALS_1", rel.Formula)
	})

	t.Run("rejections", func(t *testing.T) {
		cases := []proposal{
			{Type: "SUBSET", SubsetTicker: "A", SupersetTicker: "A", Confidence: 0.9},
			{Type: "THRESHOLD", TickersAscending: []string{"A"}, Confidence: 0.9},
			{Type: "PARTITION", Tickers: nil, Confidence: 0.9},
			{Type: "IMPLICATION", IfTicker: "A", ThenTicker: "B", EstimatedConditionalProb: 1.5, Confidence: 0.9},
			{Type: "CORRELATION", Tickers: []string{"A", "B"}, Confidence: 0.9},
			{Type: "SUBSET", SubsetTicker: "A", SupersetTicker: "B", Confidence: 1.2},
		}
		for _, p := range cases {
			_, err := p.normalize(known, now)
			assert.Error(t, err, "variant %s", p.Type)
		}
	})
}

func TestBuildPromptTruncatesRules(t *testing.T) {
	m := market("KXA-1", "KXA", "Politics")
	m.RulesPrimary = strings.Repeat("r", 2000)

	prompt := BuildPrompt([]types.Market{m})
	assert.Contains(t, prompt, "KXA-1")
	assert.Contains(t, prompt, strings.Repeat("r", maxRulesChars))
	assert.NotContains(t, prompt, strings.Repeat("r", maxRulesChars+1))
}
