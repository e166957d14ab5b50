package cryptoarb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/internal/exchange"
	"github.com/quantfold/kalshi-arb/internal/marketcache"
	"github.com/quantfold/kalshi-arb/pkg/types"
)

func snapOf(markets ...types.Market) *marketcache.Snapshot {
	m := make(map[string]types.Market, len(markets))
	for _, mk := range markets {
		m[mk.Ticker] = mk
	}
	return &marketcache.Snapshot{Markets: m, TakenAt: time.Now().UTC()}
}

func cryptoMarket(ticker string, yesAsk, noAsk float64) types.Market {
	return types.Market{
		Ticker:      ticker,
		EventTicker: "KXBTC-25AUG",
		Status:      types.MarketStatusOpen,
		YesAsk:      yesAsk,
		YesBid:      yesAsk - 0.02,
		NoAsk:       noAsk,
		NoBid:       noAsk - 0.02,
	}
}

func TestScanFindsProfitableMarket(t *testing.T) {
	// 1.00 - (0.45 + 0.48) = 0.07; taker fees are 2 cents per side, so
	// 3 cents survive.
	snap := snapOf(cryptoMarket("KXBTC-25AUG-T60", 0.45, 0.48))

	arbs := Scan(snap, 2)
	require.Len(t, arbs, 1)
	assert.InDelta(t, 0.93, arbs[0].TotalAsk, 1e-9)
	assert.InDelta(t, 0.04, arbs[0].TotalFees, 1e-9)
	assert.InDelta(t, 3.0, arbs[0].ProfitCents, 1e-9)
}

func TestScanSkipsUnprofitableAndUnquoted(t *testing.T) {
	snap := snapOf(
		cryptoMarket("FAIR", 0.50, 0.52),       // asks sum above a dollar
		cryptoMarket("THIN", 0.47, 0.48),       // 1 cent after fees, below min
		cryptoMarket("HALF", 0.45, 0),          // no NO quote
		cryptoMarket("GOOD", 0.45, 0.48),       // 3 cents after fees
		cryptoMarket("BEST", 0.40, 0.45),       // 11 cents after fees
	)

	arbs := Scan(snap, 2)
	require.Len(t, arbs, 2)
	assert.Equal(t, "BEST", arbs[0].Market.Ticker, "most profitable first")
	assert.Equal(t, "GOOD", arbs[1].Market.Ticker)
}

func TestScanBoundaryProfitIncluded(t *testing.T) {
	// 1.00 - (0.46 + 0.48) - 0.04 fees = exactly 2 cents.
	snap := snapOf(cryptoMarket("EDGE", 0.46, 0.48))

	arbs := Scan(snap, 2)
	require.Len(t, arbs, 1)
	assert.InDelta(t, 2.0, arbs[0].ProfitCents, 1e-9)
}

type memStore struct {
	mu     sync.Mutex
	scans  []types.ArbScan
	trades []types.ArbTrade
}

func (s *memStore) InsertArbScan(_ context.Context, scan *types.ArbScan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans = append(s.scans, *scan)
	return nil
}

func (s *memStore) InsertArbTrade(_ context.Context, trade *types.ArbTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, *trade)
	return nil
}

type scriptedExchange struct {
	reqs []*exchange.OrderRequest
	err  error
}

func (x *scriptedExchange) PlaceOrder(_ context.Context, req *exchange.OrderRequest) (*exchange.Order, error) {
	x.reqs = append(x.reqs, req)
	if x.err != nil {
		return nil, x.err
	}
	return &exchange.Order{
		OrderID: "ord-1",
		Status:  "resting",
		Count:   req.Count,
	}, nil
}

func TestExecuteDryRunWritesRowsWithoutExchange(t *testing.T) {
	store := &memStore{}
	xch := &scriptedExchange{}
	e := NewExecutor(&ExecutorConfig{
		Store:    store,
		Exchange: xch,
		Count:    10,
		DryRun:   true,
		Logger:   zap.NewNop(),
	})
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base }

	arb, ok := evaluate(cryptoMarket("KXBTC-25AUG-T60", 0.45, 0.48), 2)
	require.True(t, ok)

	scan, err := e.Execute(context.Background(), arb)
	require.NoError(t, err)
	assert.Empty(t, xch.reqs, "dry run must not touch the exchange")

	require.Len(t, store.scans, 1)
	assert.Equal(t, scan.ID, store.scans[0].ID)
	assert.True(t, store.scans[0].Acted)
	assert.InDelta(t, 3.0, store.scans[0].ProfitCents, 1e-9)

	require.Len(t, store.trades, 2)
	yes, no := store.trades[0], store.trades[1]
	assert.Equal(t, exchange.SideYes, yes.Side)
	assert.True(t, strings.HasPrefix(yes.OrderID, "DRY-YES-"), yes.OrderID)
	assert.Equal(t, types.OrderStatusDryRun, yes.OrderStatus)
	assert.Equal(t, 10, yes.Count)
	assert.InDelta(t, 0.45, yes.Price, 1e-9)
	assert.Equal(t, exchange.SideNo, no.Side)
	assert.True(t, strings.HasPrefix(no.OrderID, "DRY-NO-"), no.OrderID)
	assert.Equal(t, scan.ID, no.ScanID)
}

func TestExecuteLivePlacesBothLegs(t *testing.T) {
	store := &memStore{}
	xch := &scriptedExchange{}
	e := NewExecutor(&ExecutorConfig{
		Store:    store,
		Exchange: xch,
		Count:    10,
		Logger:   zap.NewNop(),
	})

	arb, ok := evaluate(cryptoMarket("KXBTC-25AUG-T60", 0.45, 0.48), 2)
	require.True(t, ok)

	_, err := e.Execute(context.Background(), arb)
	require.NoError(t, err)

	require.Len(t, xch.reqs, 2)
	assert.Equal(t, exchange.SideYes, xch.reqs[0].Side)
	assert.Equal(t, 45, xch.reqs[0].YesPrice)
	assert.Equal(t, exchange.SideNo, xch.reqs[1].Side)
	assert.Equal(t, 52, xch.reqs[1].YesPrice, "NO buy at 48 cents rides the wire as yes_price 52")
	assert.Equal(t, exchange.ActionBuy, xch.reqs[1].Action)

	require.Len(t, store.trades, 2)
	assert.Equal(t, "ord-1", store.trades[0].OrderID)
	assert.Equal(t, "resting", store.trades[0].OrderStatus)
}

func TestExecuteRecordsFailedLeg(t *testing.T) {
	store := &memStore{}
	xch := &scriptedExchange{err: errors.New("insufficient balance")}
	e := NewExecutor(&ExecutorConfig{Store: store, Exchange: xch, Count: 5, Logger: zap.NewNop()})

	arb, ok := evaluate(cryptoMarket("KXBTC-25AUG-T60", 0.45, 0.48), 2)
	require.True(t, ok)

	_, err := e.Execute(context.Background(), arb)
	require.Error(t, err)
	require.Len(t, store.trades, 1, "only the failed YES leg gets a row")
	assert.Equal(t, types.OrderStatusCanceled, store.trades[0].OrderStatus)
}

type fakeCache struct {
	snap *marketcache.Snapshot
	err  error
}

func (c *fakeCache) All() (*marketcache.Snapshot, error) { return c.snap, c.err }
func (c *fakeCache) Info() (int, time.Duration) {
	if c.snap == nil {
		return 0, 0
	}
	return len(c.snap.Markets), time.Second
}

type recordingNotifier struct {
	arbs      []*types.ArbScan
	summaries int
	errors    []string
}

func (n *recordingNotifier) ArbFound(_ context.Context, scan *types.ArbScan) {
	n.arbs = append(n.arbs, scan)
}

func (n *recordingNotifier) ScanSummary(_ context.Context, _, _, _ int) { n.summaries++ }

func (n *recordingNotifier) Error(_ context.Context, title string, _ error) {
	n.errors = append(n.errors, title)
}

func TestCycleExecutesAndNotifies(t *testing.T) {
	store := &memStore{}
	e := NewExecutor(&ExecutorConfig{Store: store, Count: 10, DryRun: true, Logger: zap.NewNop()})
	notifier := &recordingNotifier{}
	l := NewLoop(&LoopConfig{
		Cache:          &fakeCache{snap: snapOf(cryptoMarket("KXBTC-25AUG-T60", 0.45, 0.48))},
		Executor:       e,
		Notifier:       notifier,
		MinProfitCents: 2,
		Logger:         zap.NewNop(),
	})

	require.NoError(t, l.Cycle(context.Background()))
	require.Len(t, notifier.arbs, 1)
	assert.InDelta(t, 3.0, notifier.arbs[0].ProfitCents, 1e-9)
	assert.Len(t, store.trades, 2)
}

func TestCycleSummaryEveryHundred(t *testing.T) {
	notifier := &recordingNotifier{}
	l := NewLoop(&LoopConfig{
		Cache:          &fakeCache{snap: snapOf(cryptoMarket("FAIR", 0.50, 0.52))},
		Executor:       NewExecutor(&ExecutorConfig{Store: &memStore{}, DryRun: true}),
		Notifier:       notifier,
		MinProfitCents: 2,
		Logger:         zap.NewNop(),
	})

	for i := 0; i < 250; i++ {
		require.NoError(t, l.Cycle(context.Background()))
	}
	assert.Equal(t, 2, notifier.summaries)
}

func TestCycleSnapshotUnavailable(t *testing.T) {
	l := NewLoop(&LoopConfig{
		Cache:    &fakeCache{err: types.ErrSnapshotUnavailable},
		Executor: NewExecutor(&ExecutorConfig{Store: &memStore{}, DryRun: true}),
		Logger:   zap.NewNop(),
	})

	err := l.Cycle(context.Background())
	require.ErrorIs(t, err, types.ErrSnapshotUnavailable)
}
