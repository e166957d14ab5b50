// Package ingestion polls the exchange for open markets and events and
// mirrors them into storage, appending a price snapshot for every quoted
// market.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/internal/exchange"
	"github.com/quantfold/kalshi-arb/pkg/types"
)

// Store is the slice of the storage layer ingestion writes to.
type Store interface {
	UpsertMarkets(ctx context.Context, markets []types.Market) error
	InsertPriceSnapshots(ctx context.Context, snaps []types.PriceSnapshot) error
	UpsertEvents(ctx context.Context, events []types.Event) error
}

// Exchange is the slice of the API client ingestion reads from.
type Exchange interface {
	GetAllMarkets(ctx context.Context, status string) ([]exchange.Market, error)
	GetAllEvents(ctx context.Context, status string) ([]exchange.Event, error)
}

// Config holds ingestion configuration.
type Config struct {
	Exchange Exchange
	Store    Store
	Logger   *zap.Logger
}

// Ingestor runs full market and event sweeps.
type Ingestor struct {
	exchange Exchange
	store    Store
	logger   *zap.Logger
	now      func() time.Time
}

// Stats summarizes one ingestion sweep.
type Stats struct {
	Markets   int
	Quoted    int
	Events    int
	Snapshots int
	Elapsed   time.Duration
}

// New creates an Ingestor.
func New(cfg *Config) *Ingestor {
	return &Ingestor{
		exchange: cfg.Exchange,
		store:    cfg.Store,
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// IngestAll fetches every open market and event, normalizes them and
// persists the result. A snapshot row is appended only for markets quoted
// on both sides of the YES book.
func (i *Ingestor) IngestAll(ctx context.Context) (*Stats, error) {
	start := i.now()

	wireMarkets, err := i.exchange.GetAllMarkets(ctx, types.MarketStatusOpen)
	if err != nil {
		IngestErrors.Inc()
		return nil, fmt.Errorf("fetch open markets: %w", err)
	}

	now := i.now().UTC()
	markets := make([]types.Market, 0, len(wireMarkets))
	snaps := make([]types.PriceSnapshot, 0, len(wireMarkets))
	for idx := range wireMarkets {
		m := wireMarkets[idx].Normalize(now)
		markets = append(markets, m)
		if m.YesAsk > 0 && m.YesBid > 0 {
			snaps = append(snaps, types.PriceSnapshot{
				MarketTicker: m.Ticker,
				YesAsk:       m.YesAsk,
				YesBid:       m.YesBid,
				Timestamp:    now,
			})
		}
	}

	if err := i.store.UpsertMarkets(ctx, markets); err != nil {
		IngestErrors.Inc()
		return nil, fmt.Errorf("upsert markets: %w", err)
	}
	if err := i.store.InsertPriceSnapshots(ctx, snaps); err != nil {
		IngestErrors.Inc()
		return nil, fmt.Errorf("insert snapshots: %w", err)
	}

	wireEvents, err := i.exchange.GetAllEvents(ctx, types.MarketStatusOpen)
	if err != nil {
		IngestErrors.Inc()
		return nil, fmt.Errorf("fetch open events: %w", err)
	}
	events := make([]types.Event, 0, len(wireEvents))
	for idx := range wireEvents {
		events = append(events, wireEvents[idx].Normalize())
	}
	if err := i.store.UpsertEvents(ctx, events); err != nil {
		IngestErrors.Inc()
		return nil, fmt.Errorf("upsert events: %w", err)
	}

	stats := &Stats{
		Markets:   len(markets),
		Quoted:    len(snaps),
		Events:    len(events),
		Snapshots: len(snaps),
		Elapsed:   i.now().Sub(start),
	}

	MarketsIngested.Set(float64(stats.Markets))
	EventsIngested.Set(float64(stats.Events))
	IngestDuration.Observe(stats.Elapsed.Seconds())

	i.logger.Info("ingestion-complete",
		zap.Int("markets", stats.Markets),
		zap.Int("quoted", stats.Quoted),
		zap.Int("events", stats.Events),
		zap.Duration("duration", stats.Elapsed))

	return stats, nil
}
