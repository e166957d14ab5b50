package cryptoarb

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/internal/marketcache"
	"github.com/quantfold/kalshi-arb/pkg/types"
)

const summaryEvery = 100

// Snapshots is the market cache slice the loop scans.
type Snapshots interface {
	All() (*marketcache.Snapshot, error)
	Info() (int, time.Duration)
}

// Notifier receives loop alerts. Implementations are best effort.
type Notifier interface {
	ArbFound(ctx context.Context, scan *types.ArbScan)
	ScanSummary(ctx context.Context, cycles, scanned, found int)
	Error(ctx context.Context, title string, err error)
}

// LoopConfig holds loop configuration.
type LoopConfig struct {
	Cache          Snapshots
	Executor       *Executor
	Notifier       Notifier
	MinProfitCents int
	PollInterval   time.Duration
	Logger         *zap.Logger
}

// Loop polls the snapshot, executes every flagged market, and reports a
// summary every hundred cycles.
type Loop struct {
	cache     Snapshots
	executor  *Executor
	notifier  Notifier
	minProfit int
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time

	cycles  int
	scanned int
	found   int
}

// NewLoop creates a Loop.
func NewLoop(cfg *LoopConfig) *Loop {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	minProfit := cfg.MinProfitCents
	if minProfit <= 0 {
		minProfit = 2
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		cache:     cfg.Cache,
		executor:  cfg.Executor,
		notifier:  cfg.Notifier,
		minProfit: minProfit,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// Run cycles until the context is canceled. Cycle failures are reported
// and never abort the loop.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		if err := l.Cycle(ctx); err != nil {
			l.logger.Error("cycle-failed", zap.Error(err))
			if l.notifier != nil {
				l.notifier.Error(ctx, "Cryptoarb cycle failed", err)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cycle scans the current snapshot once and executes what it finds.
func (l *Loop) Cycle(ctx context.Context) error {
	start := l.now()
	snap, err := l.cache.All()
	if err != nil {
		return err
	}

	arbs := Scan(snap, l.minProfit)
	for _, arb := range arbs {
		scan, err := l.executor.Execute(ctx, arb)
		if err != nil {
			l.logger.Error("arb-execution-failed",
				zap.String("ticker", arb.Market.Ticker),
				zap.Error(err))
			if l.notifier != nil {
				l.notifier.Error(ctx, "Cryptoarb execution failed", err)
			}
			continue
		}
		ArbsFound.Inc()
		if l.notifier != nil {
			l.notifier.ArbFound(ctx, scan)
		}
	}

	l.cycles++
	l.scanned += len(snap.Markets)
	l.found += len(arbs)
	CyclesTotal.Inc()
	CycleDuration.Observe(l.now().Sub(start).Seconds())

	size, age := l.cache.Info()
	l.logger.Info("cycle-complete",
		zap.Int("cycle", l.cycles),
		zap.Int("markets", size),
		zap.Duration("cache_age", age),
		zap.Int("arbs_found", len(arbs)),
		zap.Duration("elapsed", l.now().Sub(start)))

	if l.cycles%summaryEvery == 0 && l.notifier != nil {
		l.notifier.ScanSummary(ctx, l.cycles, l.scanned, l.found)
	}
	return nil
}
