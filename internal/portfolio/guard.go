// Package portfolio is the authoritative risk gate. Every trade passes
// through CanTrade and PositionSize; fills and settlements report back so
// the daily loss limit tracks reality. State survives restarts through
// the persisted singleton row.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/internal/exchange"
	"github.com/quantfold/kalshi-arb/pkg/types"
)

// Store is the slice of the storage layer the guard uses.
type Store interface {
	GetPortfolioState(ctx context.Context) (*types.PortfolioState, error)
	UpsertPortfolioState(ctx context.Context, state *types.PortfolioState) error
}

// Exchange is the slice of the API client the guard reads on sync.
type Exchange interface {
	GetBalance(ctx context.Context) (int64, error)
	GetPositions(ctx context.Context) ([]exchange.Position, error)
}

// Notifier receives kill-switch alerts. Optional.
type Notifier interface {
	Error(ctx context.Context, title string, err error)
}

// Limits are the configured risk bounds.
type Limits struct {
	MaxRiskPerTradePct   float64
	MaxDailyLoss         float64
	MaxOpenPositions     int
	MaxContractsPerTrade int
}

// Config holds guard configuration.
type Config struct {
	Store    Store
	Exchange Exchange
	Limits   Limits
	Notifier Notifier
	Logger   *zap.Logger
}

// Guard mediates every trade. All methods are safe for concurrent use;
// mutations serialize on one mutex so the persisted row never interleaves.
type Guard struct {
	store    Store
	exchange Exchange
	limits   Limits
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	state    types.PortfolioState
	pnlDate  string // UTC date the daily PnL belongs to
	restored bool
}

// New creates a Guard. Call Sync before trading to load persisted state
// and live balances.
func New(cfg *Config) *Guard {
	return &Guard{
		store:    cfg.Store,
		exchange: cfg.Exchange,
		limits:   cfg.Limits,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// Sync refreshes balance and positions from the exchange, restores the
// kill switch and daily PnL from persistence, resets the daily PnL when
// the UTC date has rolled over, and persists the merged state.
func (g *Guard) Sync(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	// The kill switch is reloaded every sync so an out-of-process flip
	// (CLI, another operator) takes effect within one cycle.
	persisted, err := g.store.GetPortfolioState(ctx)
	if err != nil {
		return fmt.Errorf("load portfolio state: %w", err)
	}
	if persisted != nil {
		if !g.restored {
			g.state = *persisted
			g.pnlDate = persisted.LastUpdated.UTC().Format("2006-01-02")
		} else {
			g.state.KillSwitch = persisted.KillSwitch
		}
	}
	g.restored = true

	balanceCents, err := g.exchange.GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("fetch balance: %w", err)
	}
	positions, err := g.exchange.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("fetch positions: %w", err)
	}

	open := 0
	for _, p := range positions {
		if p.Position != 0 {
			open++
		}
	}

	g.state.Balance = float64(balanceCents) / 100
	g.state.OpenPositions = open

	now := g.now().UTC()
	today := now.Format("2006-01-02")
	if g.pnlDate != "" && g.pnlDate != today {
		g.logger.Info("daily-pnl-reset",
			zap.String("previous_date", g.pnlDate),
			zap.Float64("previous_pnl", g.state.DailyPnL))
		g.state.DailyPnL = 0
	}
	g.pnlDate = today

	BalanceDollars.Set(g.state.Balance)
	OpenPositions.Set(float64(open))
	DailyPnL.Set(g.state.DailyPnL)

	return g.persistLocked(ctx, now)
}

// CanTrade is the conjunction of the three safety gates.
func (g *Guard) CanTrade() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case g.state.KillSwitch:
		TradesRefused.WithLabelValues("kill_switch").Inc()
		return false
	case g.state.DailyPnL <= -g.limits.MaxDailyLoss:
		TradesRefused.WithLabelValues("daily_loss").Inc()
		return false
	case g.state.OpenPositions >= g.limits.MaxOpenPositions:
		TradesRefused.WithLabelValues("position_cap").Inc()
		return false
	default:
		return true
	}
}

// PositionSize returns the contract count for an opportunity: the risk
// bound, the shallowest leg depth, and the hard cap, whichever binds
// first. Zero means refuse.
func (g *Guard) PositionSize(opp *types.Opportunity) int {
	if opp.Magnitude <= 0 {
		return 0
	}

	g.mu.Lock()
	balance := g.state.Balance
	g.mu.Unlock()

	riskBound := math.Floor(balance * g.limits.MaxRiskPerTradePct / opp.Magnitude)
	depthBound := float64(opp.MinDepth(20))
	hardCap := float64(g.limits.MaxContractsPerTrade)

	size := math.Min(riskBound, math.Min(depthBound, hardCap))
	if size < 0 {
		return 0
	}
	return int(size)
}

// RecordFill books the cash delta of one fill: buys spend price*count
// plus fees, sells collect price*count minus fees.
func (g *Guard) RecordFill(ctx context.Context, side string, price float64, count int, feesPaid float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delta := 0.0
	if side == types.SideBuy {
		delta = -(price*float64(count) + feesPaid)
	} else {
		delta = price*float64(count) - feesPaid
	}
	g.state.DailyPnL += delta
	g.state.Balance += delta
	DailyPnL.Set(g.state.DailyPnL)

	g.logger.Info("fill-recorded",
		zap.String("side", side),
		zap.Float64("price", price),
		zap.Int("count", count),
		zap.Float64("fees", feesPaid),
		zap.Float64("daily_pnl", g.state.DailyPnL))

	return g.persistLocked(ctx, g.now().UTC())
}

// RecordSettlement books a settlement payout or loss.
func (g *Guard) RecordSettlement(ctx context.Context, amount float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state.DailyPnL += amount
	g.state.Balance += amount
	DailyPnL.Set(g.state.DailyPnL)
	return g.persistLocked(ctx, g.now().UTC())
}

// ActivateKillSwitch stops all trading until deactivated. The flag is
// persisted so a restart cannot silently resume.
func (g *Guard) ActivateKillSwitch(ctx context.Context, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state.KillSwitch = true
	g.logger.Warn("kill-switch-activated", zap.String("reason", reason))
	if g.notifier != nil {
		g.notifier.Error(ctx, "Kill switch activated", errors.New(reason))
	}
	return g.persistLocked(ctx, g.now().UTC())
}

// DeactivateKillSwitch re-enables trading.
func (g *Guard) DeactivateKillSwitch(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state.KillSwitch = false
	g.logger.Info("kill-switch-deactivated")
	if g.notifier != nil {
		g.notifier.Error(ctx, "Kill switch deactivated", errors.New("trading re-enabled"))
	}
	return g.persistLocked(ctx, g.now().UTC())
}

// Summary returns the daily-report view of the guard.
func (g *Guard) Summary() types.PortfolioSummary {
	g.mu.Lock()
	defer g.mu.Unlock()

	return types.PortfolioSummary{
		Balance:       g.state.Balance,
		DailyPnL:      g.state.DailyPnL,
		OpenPositions: g.state.OpenPositions,
		KillSwitch:    g.state.KillSwitch,
		MaxDailyLoss:  g.limits.MaxDailyLoss,
		CanTrade:      g.canTradeLocked(),
	}
}

func (g *Guard) canTradeLocked() bool {
	return !g.state.KillSwitch &&
		g.state.DailyPnL > -g.limits.MaxDailyLoss &&
		g.state.OpenPositions < g.limits.MaxOpenPositions
}

// persistLocked writes the singleton row. Caller holds mu.
func (g *Guard) persistLocked(ctx context.Context, now time.Time) error {
	g.state.LastUpdated = now
	if err := g.store.UpsertPortfolioState(ctx, &g.state); err != nil {
		return fmt.Errorf("persist portfolio state: %w", err)
	}
	return nil
}
