// Package orchestrator drives the engine: a one-second heartbeat fires
// each pipeline stage when its interval has elapsed, in a fixed order so
// fresh prices always precede detection and detection precedes execution.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/internal/ingestion"
	"github.com/quantfold/kalshi-arb/internal/relationship"
	"github.com/quantfold/kalshi-arb/pkg/types"
)

const tickPeriod = time.Second

// Ingestor refreshes markets and events from the exchange.
type Ingestor interface {
	IngestAll(ctx context.Context) (*ingestion.Stats, error)
}

// Mapper runs relationship discovery passes.
type Mapper interface {
	EventPass(ctx context.Context) (*relationship.PassStats, error)
	CategoryPass(ctx context.Context) (*relationship.PassStats, error)
	CrossPass(ctx context.Context) (*relationship.PassStats, error)
	CleanupStale(ctx context.Context) (int, error)
}

// Detector scans relationships for violations.
type Detector interface {
	Scan(ctx context.Context) ([]types.Opportunity, error)
}

// Executor trades one opportunity.
type Executor interface {
	Execute(ctx context.Context, opp *types.Opportunity) (bool, error)
}

// Guard syncs and summarizes portfolio state.
type Guard interface {
	Sync(ctx context.Context) error
	Summary() types.PortfolioSummary
}

// Store is the storage slice for summary counters and assessor vetoes.
type Store interface {
	CountOpportunitiesSince(ctx context.Context, since time.Time) (int, error)
	CountTradesSince(ctx context.Context, since time.Time) (int, error)
	UpdateOpportunityStatus(ctx context.Context, id, status string) error
}

// Notifier receives engine alerts. Implementations are best effort.
type Notifier interface {
	Opportunity(ctx context.Context, opp *types.Opportunity)
	Trade(ctx context.Context, opp *types.Opportunity, dryRun bool)
	DailySummary(ctx context.Context, s *types.PortfolioSummary, opportunities, trades int)
	Error(ctx context.Context, title string, err error)
}

// Assessor is an optional veto hook consulted between detection and
// execution. A false verdict expires the opportunity untraded.
type Assessor interface {
	Assess(ctx context.Context, opp *types.Opportunity) (bool, error)
}

// Config holds orchestrator configuration.
type Config struct {
	Ingestor Ingestor
	Mapper   Mapper
	Detector Detector
	Executor Executor
	Guard    Guard
	Store    Store
	Notifier Notifier
	Assessor Assessor

	IngestInterval       time.Duration
	DetectInterval       time.Duration
	EventPassInterval    time.Duration
	CategoryPassInterval time.Duration
	CrossPassInterval    time.Duration
	SummaryInterval      time.Duration

	DryRun bool
	Logger *zap.Logger
}

type task struct {
	name     string
	interval time.Duration
	lastRun  time.Time
	run      func(ctx context.Context) error
}

// Orchestrator owns the heartbeat loop.
type Orchestrator struct {
	cfg    *Config
	logger *zap.Logger
	tasks  []*task
	now    func() time.Time

	// summarySince anchors the daily counters; each summary resets it.
	summarySince time.Time
}

// New creates an Orchestrator. Zero intervals fall back to sane periods.
func New(cfg *Config) (*Orchestrator, error) {
	if cfg.Ingestor == nil || cfg.Detector == nil || cfg.Executor == nil ||
		cfg.Guard == nil || cfg.Store == nil {
		return nil, fmt.Errorf("orchestrator requires ingestor, detector, executor, guard and store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{cfg: cfg, logger: logger, now: time.Now}
	o.buildTasks()
	return o, nil
}

// buildTasks fixes the per-tick firing order: ingestion first so every
// later stage sees current prices, portfolio sync right after trading,
// summary last.
func (o *Orchestrator) buildTasks() {
	cfg := o.cfg
	o.tasks = []*task{
		{name: "ingest", interval: orDefault(cfg.IngestInterval, time.Minute), run: o.runIngest},
		{name: "event-pass", interval: orDefault(cfg.EventPassInterval, 24*time.Hour), run: o.runEventPass},
		{name: "category-pass", interval: orDefault(cfg.CategoryPassInterval, 72*time.Hour), run: o.runCategoryPass},
		{name: "cross-pass", interval: orDefault(cfg.CrossPassInterval, 216*time.Hour), run: o.runCrossPass},
		{name: "detect", interval: orDefault(cfg.DetectInterval, 15*time.Second), run: o.runDetect},
		{name: "portfolio-sync", interval: orDefault(cfg.IngestInterval, time.Minute), run: o.runPortfolioSync},
		{name: "daily-summary", interval: orDefault(cfg.SummaryInterval, 24*time.Hour), run: o.runSummary},
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// Run ticks until the context is canceled, finishing the tick in flight.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.summarySince = o.now().UTC()
	o.logger.Info("orchestrator-started", zap.Bool("dry_run", o.cfg.DryRun))

	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()

	o.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator-stopped")
			return ctx.Err()
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

// tick fires every task whose interval has elapsed, in declaration order.
// Failures are logged and counted; the loop never aborts.
func (o *Orchestrator) tick(ctx context.Context) {
	now := o.now()
	for _, t := range o.tasks {
		if !t.lastRun.IsZero() && now.Sub(t.lastRun) < t.interval {
			continue
		}
		t.lastRun = now
		o.runTask(ctx, t)
		if ctx.Err() != nil {
			return
		}
	}
}

func (o *Orchestrator) runTask(ctx context.Context, t *task) {
	defer func() {
		if r := recover(); r != nil {
			TaskErrors.WithLabelValues(t.name).Inc()
			o.logger.Error("task-panicked", zap.String("task", t.name), zap.Any("panic", r))
		}
	}()

	start := o.now()
	err := t.run(ctx)
	TaskDuration.WithLabelValues(t.name).Observe(o.now().Sub(start).Seconds())
	if err != nil {
		TaskErrors.WithLabelValues(t.name).Inc()
		o.logger.Error("task-failed", zap.String("task", t.name), zap.Error(err))
		if o.cfg.Notifier != nil {
			o.cfg.Notifier.Error(ctx, fmt.Sprintf("Task %s failed", t.name), err)
		}
	}
}

func (o *Orchestrator) runIngest(ctx context.Context) error {
	_, err := o.cfg.Ingestor.IngestAll(ctx)
	return err
}

func (o *Orchestrator) runEventPass(ctx context.Context) error {
	if o.cfg.Mapper == nil {
		return nil
	}
	if _, err := o.cfg.Mapper.EventPass(ctx); err != nil {
		return err
	}
	// Stale cleanup rides the event pass so dead relationships never
	// outlive a discovery cycle.
	removed, err := o.cfg.Mapper.CleanupStale(ctx)
	if err != nil {
		return fmt.Errorf("cleanup stale relationships: %w", err)
	}
	if removed > 0 {
		o.logger.Info("stale-relationships-removed", zap.Int("count", removed))
	}
	return nil
}

func (o *Orchestrator) runCategoryPass(ctx context.Context) error {
	if o.cfg.Mapper == nil {
		return nil
	}
	_, err := o.cfg.Mapper.CategoryPass(ctx)
	return err
}

func (o *Orchestrator) runCrossPass(ctx context.Context) error {
	if o.cfg.Mapper == nil {
		return nil
	}
	_, err := o.cfg.Mapper.CrossPass(ctx)
	return err
}

// runDetect scans once and trades every surviving opportunity, best score
// first.
func (o *Orchestrator) runDetect(ctx context.Context) error {
	opps, err := o.cfg.Detector.Scan(ctx)
	if err != nil {
		return fmt.Errorf("detection scan: %w", err)
	}

	for i := range opps {
		opp := &opps[i]
		if o.cfg.Notifier != nil {
			o.cfg.Notifier.Opportunity(ctx, opp)
		}

		if vetoed, err := o.assess(ctx, opp); err != nil {
			o.logger.Warn("assessment-failed", zap.String("opportunity", opp.ID), zap.Error(err))
		} else if vetoed {
			continue
		}

		filled, err := o.cfg.Executor.Execute(ctx, opp)
		if err != nil {
			o.logger.Error("execution-failed",
				zap.String("opportunity", opp.ID),
				zap.String("signal", opp.Signal),
				zap.Error(err))
			continue
		}
		if filled && o.cfg.Notifier != nil {
			o.cfg.Notifier.Trade(ctx, opp, o.cfg.DryRun)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

// assess consults the optional veto hook. A false verdict expires the
// opportunity before any order is placed.
func (o *Orchestrator) assess(ctx context.Context, opp *types.Opportunity) (bool, error) {
	if o.cfg.Assessor == nil {
		return false, nil
	}
	ok, err := o.cfg.Assessor.Assess(ctx, opp)
	if err != nil {
		// An unreachable assessor never blocks trading.
		return false, err
	}
	if ok {
		return false, nil
	}
	OpportunitiesVetoed.Inc()
	o.logger.Info("opportunity-vetoed", zap.String("opportunity", opp.ID), zap.String("signal", opp.Signal))
	if err := o.cfg.Store.UpdateOpportunityStatus(ctx, opp.ID, types.OppExpired); err != nil {
		return true, fmt.Errorf("expire vetoed opportunity: %w", err)
	}
	opp.Status = types.OppExpired
	return true, nil
}

func (o *Orchestrator) runPortfolioSync(ctx context.Context) error {
	return o.cfg.Guard.Sync(ctx)
}

func (o *Orchestrator) runSummary(ctx context.Context) error {
	now := o.now().UTC()
	opportunities, err := o.cfg.Store.CountOpportunitiesSince(ctx, o.summarySince)
	if err != nil {
		return fmt.Errorf("count opportunities: %w", err)
	}
	trades, err := o.cfg.Store.CountTradesSince(ctx, o.summarySince)
	if err != nil {
		return fmt.Errorf("count trades: %w", err)
	}

	summary := o.cfg.Guard.Summary()
	o.logger.Info("daily-summary",
		zap.Float64("balance", summary.Balance),
		zap.Float64("daily_pnl", summary.DailyPnL),
		zap.Int("open_positions", summary.OpenPositions),
		zap.Int("opportunities", opportunities),
		zap.Int("trades", trades))
	if o.cfg.Notifier != nil {
		o.cfg.Notifier.DailySummary(ctx, &summary, opportunities, trades)
	}

	o.summarySince = now
	return nil
}
