package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/pkg/types"
)

func newMockStore(t *testing.T, driver string) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	logger, _ := zap.NewDevelopment()
	return &SQLStore{db: db, driver: driver, logger: logger}, mock
}

func TestRebind(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	pg := &SQLStore{driver: DriverPostgres, logger: logger}
	got := pg.rebind("UPDATE trades SET order_id = ?, order_status = ? WHERE id = ?")
	want := "UPDATE trades SET order_id = $1, order_status = $2 WHERE id = $3"
	if got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}

	lite := &SQLStore{driver: DriverSQLite, logger: logger}
	query := "SELECT COUNT(*) FROM trades WHERE created_at >= ?"
	if got := lite.rebind(query); got != query {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
}

func TestTimeEncodingOrdersLexically(t *testing.T) {
	base := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	times := []time.Time{
		base,
		base.Add(500 * time.Millisecond),
		base.Add(time.Second),
		base.Add(time.Minute),
	}
	for i := 1; i < len(times); i++ {
		prev, next := encodeTime(times[i-1]), encodeTime(times[i])
		if prev >= next {
			t.Errorf("encoded times out of order: %q >= %q", prev, next)
		}
	}
}

func TestTimeEncodingRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 678900000, time.UTC)
	got := decodeTime(encodeTime(now))
	if !got.Equal(now) {
		t.Errorf("round trip = %v, want %v", got, now)
	}

	if !decodeTime("").IsZero() {
		t.Error("empty string should decode to zero time")
	}
	if !decodeTime("not-a-time").IsZero() {
		t.Error("garbage should decode to zero time")
	}
}

func TestSQLStore_UpsertMarkets(t *testing.T) {
	store, mock := newMockStore(t, DriverSQLite)

	markets := []types.Market{
		{Ticker: "INXD-26AUG24-T5600", EventTicker: "INXD-26AUG24", Status: "open", YesAsk: 0.55, YesBid: 0.52},
		{Ticker: "INXD-26AUG24-T5700", EventTicker: "INXD-26AUG24", Status: "open", YesAsk: 0.30, YesBid: 0.28},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO markets")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.UpsertMarkets(context.Background(), markets); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSQLStore_GetMarket_NotFound(t *testing.T) {
	store, mock := newMockStore(t, DriverSQLite)

	mock.ExpectQuery("SELECT ticker, event_ticker").
		WithArgs("MISSING").
		WillReturnRows(sqlmock.NewRows([]string{"ticker"}))

	_, err := store.GetMarket(context.Background(), "MISSING")
	if !errors.Is(err, types.ErrMarketNotFound) {
		t.Errorf("expected ErrMarketNotFound, got %v", err)
	}
}

func TestSQLStore_InsertOpportunity(t *testing.T) {
	store, mock := newMockStore(t, DriverSQLite)

	opp := &types.Opportunity{
		ID:             "opp-1",
		RelationshipID: "rel-1",
		Signal:         types.SignalBuySupersetSellSubset,
		Magnitude:      0.13,
		Confidence:     0.9,
		Score:          0.0468,
		Legs: []types.Leg{
			{Ticker: "SUP", Side: types.SideBuy, Price: 0.50, Depth: 40},
			{Ticker: "SUB", Side: types.SideSell, Price: 0.65, Depth: 25},
		},
		Status:     types.OppDetected,
		DetectedAt: time.Now(),
		ExpiresAt:  time.Now().Add(5 * time.Minute),
	}

	mock.ExpectExec("INSERT INTO opportunities").
		WithArgs(
			opp.ID, opp.RelationshipID, opp.Signal, opp.Magnitude,
			opp.Confidence, opp.Score, sqlmock.AnyArg(), opp.Status,
			sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.InsertOpportunity(context.Background(), opp); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSQLStore_UpdateOpportunityStatus_NotFound(t *testing.T) {
	store, mock := newMockStore(t, DriverSQLite)

	mock.ExpectExec("UPDATE opportunities SET status").
		WithArgs(types.OppFilled, "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateOpportunityStatus(context.Background(), "ghost", types.OppFilled)
	if !errors.Is(err, types.ErrOpportunityNotFound) {
		t.Errorf("expected ErrOpportunityNotFound, got %v", err)
	}
}

func TestSQLStore_FindRelationship_Absent(t *testing.T) {
	store, mock := newMockStore(t, DriverSQLite)

	mock.ExpectQuery("SELECT id, type, tickers").
		WithArgs(types.RelSubset, `["A","B"]`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rel, err := store.FindRelationship(context.Background(), types.RelSubset, `["A","B"]`)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if rel != nil {
		t.Errorf("expected nil relationship, got %+v", rel)
	}
}

func TestSQLStore_InsertRelationship_PreservesOrder(t *testing.T) {
	store, mock := newMockStore(t, DriverSQLite)

	rel := &types.Relationship{
		ID:            "rel-1",
		Type:          types.RelSubset,
		Tickers:       []string{"ZSUB", "ASUP"},
		Description:   "P(ZSUB) <= P(ASUP)",
		Confidence:    0.9,
		CreatedAt:     time.Now(),
		LastValidated: time.Now(),
	}

	// Column 3 keeps proposal order, column 4 is the sorted dedup key.
	mock.ExpectExec("INSERT INTO relationships").
		WithArgs(
			rel.ID, rel.Type, `["ZSUB","ASUP"]`, `["ASUP","ZSUB"]`,
			rel.Description, rel.Formula, rel.Confidence, rel.Reasoning,
			sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.InsertRelationship(context.Background(), rel); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSQLStore_UpsertPortfolioState(t *testing.T) {
	store, mock := newMockStore(t, DriverSQLite)

	state := &types.PortfolioState{
		Balance:       1000.50,
		DailyPnL:      -12.25,
		OpenPositions: 3,
		KillSwitch:    false,
		LastUpdated:   time.Now(),
	}

	mock.ExpectExec("INSERT INTO portfolio_state").
		WithArgs(state.Balance, state.DailyPnL, state.OpenPositions, state.KillSwitch, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.UpsertPortfolioState(context.Background(), state); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestSQLStore_GetPortfolioState_Empty(t *testing.T) {
	store, mock := newMockStore(t, DriverSQLite)

	mock.ExpectQuery("SELECT balance, daily_pnl").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))

	state, err := store.GetPortfolioState(context.Background())
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if state != nil {
		t.Errorf("expected nil state, got %+v", state)
	}
}

func TestSQLStore_Close(t *testing.T) {
	store, mock := newMockStore(t, DriverPostgres)

	mock.ExpectClose()

	if err := store.Close(); err != nil {
		t.Errorf("expected no error on close, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	store, err := NewSQLiteStore(&Config{
		DSN:    filepath.Join(t.TempDir(), "test.db"),
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.InitSchema(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return store
}

func TestSQLiteListActiveRelationships_ExactTickerMatch(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	now := time.Now()

	// Only KXBTC-24 is open; "KXBTC" is a strict prefix of it and must
	// not keep a relationship on the retired KXBTC market alive.
	err := store.UpsertMarkets(ctx, []types.Market{
		{Ticker: "KXBTC-24", EventTicker: "EVT-BTC", Status: types.MarketStatusOpen, UpdatedAt: now},
	})
	if err != nil {
		t.Fatalf("upsert markets: %v", err)
	}

	dead := &types.Relationship{
		ID: "rel-dead", Type: types.RelSubset,
		Tickers:    []string{"KXBTC", "KXCRYPTO"},
		Confidence: 0.9, CreatedAt: now, LastValidated: now,
	}
	live := &types.Relationship{
		ID: "rel-live", Type: types.RelSubset,
		Tickers:    []string{"KXBTC-24", "KXCRYPTO"},
		Confidence: 0.9, CreatedAt: now, LastValidated: now,
	}
	if err := store.InsertRelationship(ctx, dead); err != nil {
		t.Fatalf("insert dead relationship: %v", err)
	}
	if err := store.InsertRelationship(ctx, live); err != nil {
		t.Fatalf("insert live relationship: %v", err)
	}

	active, err := store.ListActiveRelationships(ctx)
	if err != nil {
		t.Fatalf("list active relationships: %v", err)
	}
	if len(active) != 1 || active[0].ID != "rel-live" {
		t.Errorf("active = %+v, want only rel-live", active)
	}
}

func TestConsoleStore_MarketsRoundTrip(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	store := NewConsoleStore(logger)
	ctx := context.Background()

	markets := []types.Market{
		{Ticker: "AAA", Status: "open", YesAsk: 0.40},
		{Ticker: "BBB", Status: "closed", YesAsk: 0.60},
		{Ticker: "CCC", Status: "active", YesAsk: 0.10},
	}
	if err := store.UpsertMarkets(ctx, markets); err != nil {
		t.Fatalf("upsert markets: %v", err)
	}

	m, err := store.GetMarket(ctx, "AAA")
	if err != nil {
		t.Fatalf("get market: %v", err)
	}
	if m.YesAsk != 0.40 {
		t.Errorf("yes ask = %v, want 0.40", m.YesAsk)
	}

	open, err := store.ListOpenMarkets(ctx)
	if err != nil {
		t.Fatalf("list open markets: %v", err)
	}
	if len(open) != 2 {
		t.Errorf("open markets = %d, want 2 (open + active)", len(open))
	}

	if _, err := store.GetMarket(ctx, "MISSING"); !errors.Is(err, types.ErrMarketNotFound) {
		t.Errorf("expected ErrMarketNotFound, got %v", err)
	}
}

func TestConsoleStore_RelationshipDedup(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	store := NewConsoleStore(logger)
	ctx := context.Background()

	rel := &types.Relationship{
		ID:      "rel-1",
		Type:    types.RelSubset,
		Tickers: []string{"B", "A"},
	}
	if err := store.InsertRelationship(ctx, rel); err != nil {
		t.Fatalf("insert relationship: %v", err)
	}

	// Same pair in any order collides on the sorted key.
	dupe := &types.Relationship{ID: "rel-2", Type: types.RelSubset, Tickers: []string{"A", "B"}}
	if err := store.InsertRelationship(ctx, dupe); err == nil {
		t.Error("expected duplicate insert to fail")
	}

	found, err := store.FindRelationship(ctx, types.RelSubset, types.TickerKey([]string{"A", "B"}))
	if err != nil {
		t.Fatalf("find relationship: %v", err)
	}
	if found == nil || found.ID != "rel-1" {
		t.Errorf("found = %+v, want rel-1", found)
	}

	// A different type with the same tickers is a distinct relationship.
	other, err := store.FindRelationship(ctx, types.RelThreshold, types.TickerKey([]string{"A", "B"}))
	if err != nil {
		t.Fatalf("find relationship: %v", err)
	}
	if other != nil {
		t.Errorf("expected nil for different type, got %+v", other)
	}
}

func TestConsoleStore_OpportunityLifecycle(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	store := NewConsoleStore(logger)
	ctx := context.Background()

	opp := &types.Opportunity{
		ID:         "opp-1",
		Signal:     types.SignalBuyAllPartition,
		Status:     types.OppDetected,
		DetectedAt: time.Now(),
	}
	if err := store.InsertOpportunity(ctx, opp); err != nil {
		t.Fatalf("insert opportunity: %v", err)
	}

	if err := store.UpdateOpportunityStatus(ctx, "opp-1", types.OppExecuting); err != nil {
		t.Errorf("update status: %v", err)
	}
	if err := store.UpdateOpportunityStatus(ctx, "ghost", types.OppFilled); !errors.Is(err, types.ErrOpportunityNotFound) {
		t.Errorf("expected ErrOpportunityNotFound, got %v", err)
	}

	recent, err := store.ListRecentOpportunities(ctx, 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 1 || recent[0].Status != types.OppExecuting {
		t.Errorf("recent = %+v, want one executing opportunity", recent)
	}
}

func TestConsoleStore_TradeFillLifecycle(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	store := NewConsoleStore(logger)
	ctx := context.Background()

	trade := &types.Trade{
		ID:        "trade-1",
		Ticker:    "KXA-1",
		Side:      types.SideBuy,
		Count:     10,
		CreatedAt: time.Now(),
	}
	if err := store.InsertTrade(ctx, trade); err != nil {
		t.Fatalf("insert trade: %v", err)
	}
	if err := store.UpdateTradeOrder(ctx, "trade-1", "ord-1", types.OrderStatusPending); err != nil {
		t.Fatalf("update order: %v", err)
	}
	if err := store.UpdateTradeFill(ctx, "trade-1", "executed", trade.Count); err != nil {
		t.Fatalf("update fill: %v", err)
	}

	got := store.trades["trade-1"]
	if got.OrderID != "ord-1" || got.OrderStatus != "executed" {
		t.Errorf("trade = %+v, want order ord-1 executed", got)
	}
	if got.FilledCount != trade.Count {
		t.Errorf("FilledCount = %d, want %d", got.FilledCount, trade.Count)
	}
}

func TestStore_Interface(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	var _ Store = NewConsoleStore(logger)

	db, _, _ := sqlmock.New()
	defer db.Close()
	var _ Store = &SQLStore{db: db, driver: DriverSQLite, logger: logger}
}
