// Package execution turns detected opportunities into exchange orders. It
// owns the opportunity state machine DETECTED -> EXECUTING -> {FILLED,
// FAILED, EXPIRED} and every Trade row. Opportunities run strictly
// sequentially; there is never more than one in-flight multi-leg trade.
package execution

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

const (
	// fillWait bounds how long a placed leg may rest before cancellation.
	fillWait = 30 * time.Second
	// pollInterval paces order-status checks during a fill-wait.
	pollInterval = time.Second
	// partitionSettle is the grace period after placing all partition legs.
	partitionSettle = 5 * time.Second
	// orderExpiry is set on the exchange side against silent stalls.
	orderExpiry = 30 * time.Second
	// aggressiveCents sharpens leg 2 by one cent in the trade direction.
	aggressiveCents = 0.01
)

// Store is the slice of the storage layer the executor writes.
type Store interface {
	UpdateOpportunityStatus(ctx context.Context, id, status string) error
	InsertTrade(ctx context.Context, trade *types.Trade) error
	UpdateTradeOrder(ctx context.Context, id, orderID, status string) error
	UpdateTradeFill(ctx context.Context, id, status string, filledCount int) error
}

// Exchange is the slice of the API client the executor uses.
type Exchange interface {
	PlaceOrder(ctx context.Context, req *exchange.OrderRequest) (*exchange.Order, error)
	GetOrder(ctx context.Context, orderID string) (*exchange.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// Guard gates and sizes every execution.
type Guard interface {
	CanTrade() bool
	PositionSize(opp *types.Opportunity) int
	RecordFill(ctx context.Context, side string, price float64, count int, feesPaid float64) error
}

// Config holds executor configuration.
type Config struct {
	Store    Store
	Exchange Exchange
	Guard    Guard
	DryRun   bool
	Logger   *zap.Logger
}

// Executor executes opportunities.
type Executor struct {
	store    Store
	exchange Exchange
	guard    Guard
	dryRun   bool
	logger   *zap.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates an Executor.
func New(cfg *Config) *Executor {
	return &Executor{
		store:    cfg.Store,
		exchange: cfg.Exchange,
		guard:    cfg.Guard,
		dryRun:   cfg.DryRun,
		logger:   cfg.Logger,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Execute runs one opportunity to a terminal state. It returns true only
// when every leg filled. Safety refusals and re-entry on a terminal
// opportunity return (false, nil) with no side effects.
func (e *Executor) Execute(ctx context.Context, opp *types.Opportunity) (bool, error) {
	if opp.Status == types.OppFilled {
		return false, nil
	}
	if len(opp.Legs) == 0 {
		return false, fmt.Errorf("opportunity %s has no legs", opp.ID)
	}

	if e.now().After(opp.ExpiresAt) {
		if err := e.transition(ctx, opp, types.OppExpired); err != nil {
			return false, err
		}
		return false, nil
	}

	if !e.guard.CanTrade() {
		e.logger.Info("execution-refused", zap.String("opportunity_id", opp.ID))
		return false, nil
	}
	count := e.guard.PositionSize(opp)
	if count <= 0 {
		e.logger.Info("execution-sized-to-zero", zap.String("opportunity_id", opp.ID))
		return false, nil
	}

	if err := e.transition(ctx, opp, types.OppExecuting); err != nil {
		return false, err
	}

	e.logger.Info("execution-start",
		zap.String("opportunity_id", opp.ID),
		zap.String("signal", opp.Signal),
		zap.Int("count", count),
		zap.Bool("dry_run", e.dryRun))

	var filled bool
	var err error
	start := e.now()
	switch opp.Signal {
	case types.SignalBuyAllPartition, types.SignalSellAllPartition:
		filled, err = e.executePartition(ctx, opp, count)
	default:
		filled, err = e.executeTwoLeg(ctx, opp, count)
	}
	ExecutionDuration.Observe(e.now().Sub(start).Seconds())

	final := types.OppFailed
	if filled {
		final = types.OppFilled
	}
	if terr := e.transition(ctx, opp, final); terr != nil && err == nil {
		err = terr
	}
	ExecutionsTotal.WithLabelValues(final).Inc()
	return filled, err
}

// executeTwoLeg places leg 1, waits for its fill, then chases with leg 2
// sized to the actual leg-1 quantity at a one-cent sharper price. A leg-2
// miss is cancelled and the directional residual accepted; no compensating
// third order is ever sent.
func (e *Executor) executeTwoLeg(ctx context.Context, opp *types.Opportunity, count int) (bool, error) {
	leg1, leg2 := opp.Legs[0], opp.Legs[1]

	trade1, order1, err := e.placeLeg(ctx, opp, leg1, leg1.Price, count)
	if err != nil {
		return false, fmt.Errorf("place leg 1: %w", err)
	}

	order1, err = e.awaitFill(ctx, trade1, order1)
	if err != nil {
		return false, err
	}
	if !order1.Filled() {
		e.cancel(ctx, trade1, order1)
		return false, nil
	}
	q := order1.FilledCount
	e.settle(ctx, trade1, leg1, order1)

	price2 := leg2.Price
	if leg2.Side == types.SideBuy {
		price2 += aggressiveCents
	} else {
		price2 -= aggressiveCents
	}

	trade2, order2, err := e.placeLeg(ctx, opp, leg2, price2, q)
	if err != nil {
		// Leg 1 already filled: the position stays open as a directional
		// residual.
		PartialFills.Inc()
		return false, fmt.Errorf("place leg 2 after leg 1 fill: %w", err)
	}

	order2, err = e.awaitFill(ctx, trade2, order2)
	if err != nil {
		return false, err
	}
	if !order2.Filled() {
		e.cancel(ctx, trade2, order2)
		PartialFills.Inc()
		e.logger.Warn("leg2-unfilled-residual-accepted",
			zap.String("opportunity_id", opp.ID),
			zap.String("ticker", leg2.Ticker),
			zap.Int("quantity", q))
		return false, nil
	}
	e.settle(ctx, trade2, leg2, order2)
	return true, nil
}

// executePartition places every leg at once, lets the book settle
// briefly, then cancels whatever has not filled. Success requires all
// legs.
func (e *Executor) executePartition(ctx context.Context, opp *types.Opportunity, count int) (bool, error) {
	type placed struct {
		trade *types.Trade
		order *exchange.Order
		leg   types.Leg
	}

	placedLegs := make([]placed, 0, len(opp.Legs))
	for _, leg := range opp.Legs {
		trade, order, err := e.placeLeg(ctx, opp, leg, leg.Price, count)
		if err != nil {
			for _, p := range placedLegs {
				e.cancel(ctx, p.trade, p.order)
			}
			return false, fmt.Errorf("place partition leg %s: %w", leg.Ticker, err)
		}
		placedLegs = append(placedLegs, placed{trade: trade, order: order, leg: leg})
	}

	if err := e.sleep(ctx, partitionSettle); err != nil {
		return false, err
	}

	allFilled := true
	for i := range placedLegs {
		p := &placedLegs[i]
		order := p.order
		if !order.Filled() && !e.dryRun {
			refreshed, err := e.exchange.GetOrder(ctx, order.OrderID)
			if err == nil {
				order = refreshed
				p.order = refreshed
			}
		}
		if !order.Filled() {
			allFilled = false
			e.cancel(ctx, p.trade, order)
		}
	}
	if !allFilled {
		PartialFills.Inc()
		return false, nil
	}
	for _, p := range placedLegs {
		e.settle(ctx, p.trade, p.leg, p.order)
	}
	return true, nil
}

// placeLeg writes a pending Trade row, then places the order (or its
// dry-run stand-in) and records the exchange's answer on the row.
func (e *Executor) placeLeg(ctx context.Context, opp *types.Opportunity, leg types.Leg, price float64, count int) (*types.Trade, *exchange.Order, error) {
	now := e.now().UTC()
	trade := &types.Trade{
		ID:            uuid.NewString(),
		OpportunityID: opp.ID,
		Ticker:        leg.Ticker,
		Side:          leg.ContractSide(),
		Action:        leg.Side,
		Price:         price,
		Count:         count,
		OrderStatus:   types.OrderStatusPending,
		Fees:          fees.TakerFee(count, price),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.store.InsertTrade(ctx, trade); err != nil {
		return nil, nil, fmt.Errorf("insert trade row: %w", err)
	}

	if e.dryRun {
		order := &exchange.Order{
			OrderID:     fmt.Sprintf("DRY-%d", now.UnixMilli()),
			Ticker:      leg.Ticker,
			Status:      types.OrderStatusDryRun,
			Count:       count,
			FilledCount: count,
		}
		if err := e.store.UpdateTradeOrder(ctx, trade.ID, order.OrderID, types.OrderStatusDryRun); err != nil {
			return nil, nil, err
		}
		trade.OrderID = order.OrderID
		trade.OrderStatus = types.OrderStatusDryRun
		return trade, order, nil
	}

	priceCents := exchange.DollarsToCents(price)
	req := &exchange.OrderRequest{
		Ticker:        leg.Ticker,
		Side:          leg.ContractSide(),
		Action:        leg.Side,
		Type:          exchange.OrderTypeLimit,
		Count:         count,
		Expiration:    now.Add(orderExpiry).Unix(),
		ClientOrderID: trade.ID,
	}
	if leg.ContractSide() == types.ContractNo {
		req.YesPrice = exchange.YesPriceForNoBuy(priceCents)
	} else {
		req.YesPrice = priceCents
	}

	order, err := e.exchange.PlaceOrder(ctx, req)
	if err != nil {
		if uerr := e.store.UpdateTradeOrder(ctx, trade.ID, "", types.OrderStatusCanceled); uerr != nil {
			e.logger.Error("trade-row-update-failed", zap.String("trade_id", trade.ID), zap.Error(uerr))
		}
		return nil, nil, err
	}

	status := order.Status
	if status == "" {
		status = types.OrderStatusResting
	}
	if err := e.store.UpdateTradeOrder(ctx, trade.ID, order.OrderID, status); err != nil {
		return nil, nil, err
	}
	trade.OrderID = order.OrderID
	trade.OrderStatus = status
	return trade, order, nil
}

// awaitFill polls the order until filled or the fill-wait lapses. Dry-run
// orders are born filled and return immediately.
func (e *Executor) awaitFill(ctx context.Context, trade *types.Trade, order *exchange.Order) (*exchange.Order, error) {
	if order.Filled() {
		return order, nil
	}
	deadline := e.now().Add(fillWait)
	for e.now().Before(deadline) {
		if err := e.sleep(ctx, pollInterval); err != nil {
			return nil, err
		}
		refreshed, err := e.exchange.GetOrder(ctx, order.OrderID)
		if err != nil {
			e.logger.Warn("order-poll-failed",
				zap.String("order_id", order.OrderID), zap.Error(err))
			continue
		}
		order = refreshed
		if order.Filled() {
			return order, nil
		}
	}
	return order, nil
}

// settle records the fill on the trade row and the portfolio guard.
func (e *Executor) settle(ctx context.Context, trade *types.Trade, leg types.Leg, order *exchange.Order) {
	status := types.OrderStatusFilled
	if e.dryRun {
		status = types.OrderStatusDryRun
	}
	if err := e.store.UpdateTradeFill(ctx, trade.ID, status, order.FilledCount); err != nil {
		e.logger.Error("trade-fill-update-failed", zap.String("trade_id", trade.ID), zap.Error(err))
	}
	if e.dryRun {
		return
	}
	if err := e.guard.RecordFill(ctx, leg.Side, trade.Price, order.FilledCount, fees.TakerFee(order.FilledCount, trade.Price)); err != nil {
		e.logger.Error("fill-record-failed", zap.String("trade_id", trade.ID), zap.Error(err))
	}
}

// cancel cancels an unfilled order and records the partial quantity.
func (e *Executor) cancel(ctx context.Context, trade *types.Trade, order *exchange.Order) {
	if !e.dryRun {
		if err := e.exchange.CancelOrder(ctx, order.OrderID); err != nil {
			e.logger.Warn("order-cancel-failed",
				zap.String("order_id", order.OrderID), zap.Error(err))
		}
	}
	if err := e.store.UpdateTradeFill(ctx, trade.ID, types.OrderStatusCanceled, order.FilledCount); err != nil {
		e.logger.Error("trade-fill-update-failed", zap.String("trade_id", trade.ID), zap.Error(err))
	}
}

// transition persists an opportunity status change and mirrors it on the
// in-memory copy.
func (e *Executor) transition(ctx context.Context, opp *types.Opportunity, status string) error {
	if err := e.store.UpdateOpportunityStatus(ctx, opp.ID, status); err != nil {
		return fmt.Errorf("transition opportunity %s to %s: %w", opp.ID, status, err)
	}
	opp.Status = status
	return nil
}
