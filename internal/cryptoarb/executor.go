package cryptoarb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/internal/exchange"
	"github.com/quantfold/kalshi-arb/internal/fees"
	"github.com/quantfold/kalshi-arb/pkg/types"
)

const orderExpiry = 30 * time.Second

// Store is the storage slice the executor writes audit rows through.
type Store interface {
	InsertArbScan(ctx context.Context, scan *types.ArbScan) error
	InsertArbTrade(ctx context.Context, trade *types.ArbTrade) error
}

// Exchange places the two legs.
type Exchange interface {
	PlaceOrder(ctx context.Context, req *exchange.OrderRequest) (*exchange.Order, error)
}

// ExecutorConfig holds executor configuration.
type ExecutorConfig struct {
	Store    Store
	Exchange Exchange
	// Count is the contract count per leg.
	Count  int
	DryRun bool
	Logger *zap.Logger
}

// Executor buys both sides of a flagged market and records the scan and
// per-leg trade rows.
type Executor struct {
	store    Store
	exchange Exchange
	count    int
	dryRun   bool
	logger   *zap.Logger
	now      func() time.Time
}

// NewExecutor creates an Executor.
func NewExecutor(cfg *ExecutorConfig) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	count := cfg.Count
	if count <= 0 {
		count = 1
	}
	return &Executor{
		store:    cfg.Store,
		exchange: cfg.Exchange,
		count:    count,
		dryRun:   cfg.DryRun,
		logger:   logger,
		now:      time.Now,
	}
}

// Execute records the scan, then buys YES at the YES ask and NO at the NO
// ask as limit orders. Returns the persisted scan row.
func (e *Executor) Execute(ctx context.Context, arb Arb) (*types.ArbScan, error) {
	scan := &types.ArbScan{
		ID:          uuid.NewString(),
		EventTicker: arb.Market.EventTicker,
		NumMarkets:  1,
		TotalAsk:    arb.TotalAsk,
		TotalFees:   arb.TotalFees,
		ProfitCents: arb.ProfitCents,
		Acted:       true,
		ScannedAt:   e.now().UTC(),
	}
	if err := e.store.InsertArbScan(ctx, scan); err != nil {
		return nil, fmt.Errorf("insert arb scan: %w", err)
	}

	if err := e.placeLeg(ctx, scan, arb, exchange.SideYes, arb.Market.YesAsk); err != nil {
		return scan, err
	}
	if err := e.placeLeg(ctx, scan, arb, exchange.SideNo, arb.Market.NoAsk); err != nil {
		return scan, err
	}

	e.logger.Info("arb-executed",
		zap.String("ticker", arb.Market.Ticker),
		zap.Float64("profit_cents", arb.ProfitCents),
		zap.Int("count", e.count),
		zap.Bool("dry_run", e.dryRun))
	ArbsExecuted.Inc()
	return scan, nil
}

func (e *Executor) placeLeg(ctx context.Context, scan *types.ArbScan, arb Arb, side string, price float64) error {
	trade := &types.ArbTrade{
		ID:          uuid.NewString(),
		ScanID:      scan.ID,
		EventTicker: arb.Market.EventTicker,
		Ticker:      arb.Market.Ticker,
		Side:        side,
		Price:       price,
		Count:       e.count,
		Fees:        fees.TakerFee(e.count, price),
		CreatedAt:   e.now().UTC(),
	}

	if e.dryRun {
		ms := e.now().UnixMilli()
		if side == exchange.SideYes {
			trade.OrderID = fmt.Sprintf("DRY-YES-%d", ms)
		} else {
			trade.OrderID = fmt.Sprintf("DRY-NO-%d", ms)
		}
		trade.OrderStatus = types.OrderStatusDryRun
		return e.store.InsertArbTrade(ctx, trade)
	}

	req := &exchange.OrderRequest{
		Ticker:        arb.Market.Ticker,
		Side:          side,
		Action:        exchange.ActionBuy,
		Type:          exchange.OrderTypeLimit,
		Count:         e.count,
		Expiration:    e.now().Add(orderExpiry).Unix(),
		ClientOrderID: trade.ID,
	}
	yesCents := exchange.DollarsToCents(price)
	if side == exchange.SideNo {
		yesCents = exchange.YesPriceForNoBuy(exchange.DollarsToCents(price))
	}
	req.YesPrice = yesCents

	order, err := e.exchange.PlaceOrder(ctx, req)
	if err != nil {
		trade.OrderStatus = types.OrderStatusCanceled
		if insErr := e.store.InsertArbTrade(ctx, trade); insErr != nil {
			e.logger.Error("arb-trade-record-failed", zap.Error(insErr))
		}
		return fmt.Errorf("place %s leg for %s: %w", side, arb.Market.Ticker, err)
	}
	trade.OrderID = order.OrderID
	trade.OrderStatus = order.Status
	return e.store.InsertArbTrade(ctx, trade)
}
