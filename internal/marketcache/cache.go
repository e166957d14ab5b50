// Package marketcache keeps an in-memory snapshot of a filtered slice of
// the market table for hot polling loops. One background refresher builds
// a complete replacement snapshot off to the side and publishes it with a
// single atomic pointer store, so readers see either the old snapshot or
// the new one, never a mix.
package marketcache

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/internal/exchange"
	"github.com/quantfold/kalshi-arb/pkg/types"
)

// Source provides the markets to snapshot.
type Source interface {
	GetAllMarkets(ctx context.Context, status string) ([]exchange.Market, error)
}

// Snapshot is one immutable view of the filtered markets. Never mutate a
// snapshot after publishing; build a new one.
type Snapshot struct {
	Markets map[string]types.Market
	TakenAt time.Time
}

// Config holds cache configuration.
type Config struct {
	Source Source
	// Prefixes restricts the snapshot to event tickers starting with any
	// of these. Empty means everything.
	Prefixes        []string
	RefreshInterval time.Duration
	Logger          *zap.Logger
}

// Cache is the atomically swapped market snapshot.
type Cache struct {
	source   Source
	prefixes []string
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	snapshot atomic.Pointer[Snapshot]
	done     chan struct{}
	stopped  chan struct{}
}

// New creates a Cache. Call Start to load the first snapshot and begin
// refreshing.
func New(cfg *Config) *Cache {
	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		source:   cfg.Source,
		prefixes: cfg.Prefixes,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start loads the first snapshot synchronously, then launches the
// background refresher. It returns once readers have a complete snapshot
// to work with.
func (c *Cache) Start(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		return fmt.Errorf("initial snapshot load: %w", err)
	}
	go c.refreshLoop(ctx)
	return nil
}

// Close stops the refresher and waits for it to exit.
func (c *Cache) Close() {
	close(c.done)
	<-c.stopped
}

func (c *Cache) refreshLoop(ctx context.Context) {
	defer close(c.stopped)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Error("snapshot-refresh-failed", zap.Error(err))
			}
		}
	}
}

// Refresh builds a new snapshot and publishes it.
func (c *Cache) Refresh(ctx context.Context) error {
	wire, err := c.source.GetAllMarkets(ctx, types.MarketStatusOpen)
	if err != nil {
		RefreshErrors.Inc()
		return fmt.Errorf("fetch markets: %w", err)
	}

	now := c.now().UTC()
	markets := make(map[string]types.Market)
	for i := range wire {
		if !c.match(wire[i].EventTicker) {
			continue
		}
		m := wire[i].Normalize(now)
		markets[m.Ticker] = m
	}

	c.snapshot.Store(&Snapshot{Markets: markets, TakenAt: now})
	SnapshotSize.Set(float64(len(markets)))
	c.logger.Debug("snapshot-refreshed", zap.Int("markets", len(markets)))
	return nil
}

func (c *Cache) match(eventTicker string) bool {
	if len(c.prefixes) == 0 {
		return true
	}
	for _, p := range c.prefixes {
		if strings.HasPrefix(eventTicker, p) {
			return true
		}
	}
	return false
}

// Get returns one market from the current snapshot.
func (c *Cache) Get(ticker string) (types.Market, bool) {
	snap := c.snapshot.Load()
	if snap == nil {
		return types.Market{}, false
	}
	m, ok := snap.Markets[ticker]
	return m, ok
}

// All returns the current snapshot. Callers must treat it as read-only.
func (c *Cache) All() (*Snapshot, error) {
	snap := c.snapshot.Load()
	if snap == nil {
		return nil, types.ErrSnapshotUnavailable
	}
	return snap, nil
}

// Info returns the snapshot size and age for cycle logging.
func (c *Cache) Info() (int, time.Duration) {
	snap := c.snapshot.Load()
	if snap == nil {
		return 0, 0
	}
	return len(snap.Markets), c.now().UTC().Sub(snap.TakenAt)
}
