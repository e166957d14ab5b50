// Package markets serves market rows to the hot detection path through a
// short-TTL cache in front of storage, so one detection cycle does not
// hammer the database with a query per relationship member.
package markets

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/pkg/cache"
	"github.com/quantfold/kalshi-arb/pkg/types"
)

// Store is the storage slice the reader falls back to on a miss.
type Store interface {
	GetMarket(ctx context.Context, ticker string) (*types.Market, error)
}

// Config holds reader configuration.
type Config struct {
	Store Store
	// TTL bounds staleness; it must stay under the detection interval so
	// consecutive cycles never share prices older than one sweep.
	TTL    time.Duration
	Logger *zap.Logger
}

// CachedReader resolves tickers through a ristretto cache.
type CachedReader struct {
	store  Store
	cache  *cache.TTL[*types.Market]
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedReader creates the reader with its own cache instance.
func NewCachedReader(cfg *Config) (*CachedReader, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c, err := cache.New[*types.Market](&cache.Config{
		MaxItems: 10_000,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create market cache: %w", err)
	}
	return &CachedReader{
		store:  cfg.Store,
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Market returns the market for ticker, from cache when fresh. Not-found
// results are not cached; a market can appear on the next ingestion sweep.
func (r *CachedReader) Market(ctx context.Context, ticker string) (*types.Market, error) {
	if m, ok := r.cache.Get(ticker); ok {
		return m, nil
	}

	m, err := r.store.GetMarket(ctx, ticker)
	if err != nil {
		return nil, err
	}
	r.cache.Set(ticker, m, r.ttl)
	return m, nil
}

// Invalidate drops one ticker, forcing the next read through storage.
func (r *CachedReader) Invalidate(ticker string) {
	r.cache.Delete(ticker)
}

// Flush empties the cache. Ingestion calls this after each sweep so the
// next detection cycle sees the new prices immediately.
func (r *CachedReader) Flush() {
	r.cache.Clear()
}

// Close releases the underlying cache.
func (r *CachedReader) Close() {
	r.cache.Close()
}
