// Package relationship discovers durable logical constraints between
// markets by batching them through an external inference oracle. Three
// scheduled passes work at increasing breadth: within one event, within
// one category, and across categories.
package relationship

import (
	"context"
	"fmt"
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/pkg/types"
)

const chunkSize = 40

// Categories worth the expensive category and cross passes. Partition
// heavy domains like sports produce thousands of within-event partitions
// and nothing across events, so they only get the event pass.
var allowedCategories = map[string]bool{
	"Politics":               true,
	"Economics":              true,
	"Financials":             true,
	"Companies":              true,
	"Crypto":                 true,
	"Science and Technology": true,
	"Climate and Weather":    true,
	"World":                  true,
	"Health":                 true,
}

// Store is the slice of the storage layer the mapper uses.
type Store interface {
	ListOpenMarkets(ctx context.Context) ([]types.Market, error)
	FindRelationship(ctx context.Context, relType, tickerKey string) (*types.Relationship, error)
	InsertRelationship(ctx context.Context, rel *types.Relationship) error
	RevalidateRelationship(ctx context.Context, id string, confidence float64, at time.Time) error
	ListRelationships(ctx context.Context) ([]types.Relationship, error)
	DeleteRelationship(ctx context.Context, id string) error
}

// Breaker guards the oracle. A streak of failures opens it and passes
// skip their batches until the cooldown lapses.
type Breaker interface {
	Allow() bool
	RecordSuccess()
	RecordFailure()
}

// Config holds mapper configuration.
type Config struct {
	Store   Store
	Oracle  Oracle
	Breaker Breaker
	Logger  *zap.Logger
}

// Mapper runs discovery passes and the staleness sweep.
type Mapper struct {
	store   Store
	oracle  Oracle
	breaker Breaker
	logger  *zap.Logger
	now     func() time.Time
}

// PassStats summarizes one discovery pass.
type PassStats struct {
	Batches   int
	Proposals int
	Inserted  int
	Refreshed int
	Dropped   int
}

// New creates a Mapper.
func New(cfg *Config) *Mapper {
	return &Mapper{
		store:   cfg.Store,
		oracle:  cfg.Oracle,
		breaker: cfg.Breaker,
		logger:  cfg.Logger,
		now:     time.Now,
	}
}

// EventPass batches the markets of each event with at least two open
// members.
func (m *Mapper) EventPass(ctx context.Context) (*PassStats, error) {
	markets, err := m.store.ListOpenMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open markets: %w", err)
	}

	byEvent := make(map[string][]types.Market)
	for _, mkt := range markets {
		byEvent[mkt.EventTicker] = append(byEvent[mkt.EventTicker], mkt)
	}

	stats := &PassStats{}
	for _, event := range sortedKeys(byEvent) {
		group := byEvent[event]
		if len(group) < 2 {
			continue
		}
		m.runChunks(ctx, "event", group, stats)
	}
	m.logPass("event", stats)
	return stats, nil
}

// CategoryPass batches all markets of each allow-listed category,
// chunked.
func (m *Mapper) CategoryPass(ctx context.Context) (*PassStats, error) {
	markets, err := m.store.ListOpenMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open markets: %w", err)
	}

	byCategory := make(map[string][]types.Market)
	for _, mkt := range markets {
		if !allowedCategories[mkt.Category] {
			continue
		}
		byCategory[mkt.Category] = append(byCategory[mkt.Category], mkt)
	}

	stats := &PassStats{}
	for _, cat := range sortedKeys(byCategory) {
		group := byCategory[cat]
		if len(group) < 2 {
			continue
		}
		m.runChunks(ctx, "category", group, stats)
	}
	m.logPass("category", stats)
	return stats, nil
}

// CrossPass batches markets across all allow-listed categories together,
// looking for constraints the narrower passes cannot see.
func (m *Mapper) CrossPass(ctx context.Context) (*PassStats, error) {
	markets, err := m.store.ListOpenMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open markets: %w", err)
	}

	var pool []types.Market
	for _, mkt := range markets {
		if allowedCategories[mkt.Category] {
			pool = append(pool, mkt)
		}
	}

	stats := &PassStats{}
	if len(pool) >= 2 {
		m.runChunks(ctx, "cross", pool, stats)
	}
	m.logPass("cross", stats)
	return stats, nil
}

// CleanupStale deletes every relationship none of whose markets remain
// open. Returns the number of rows removed.
func (m *Mapper) CleanupStale(ctx context.Context) (int, error) {
	markets, err := m.store.ListOpenMarkets(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open markets: %w", err)
	}
	open := make(map[string]bool, len(markets))
	for _, mkt := range markets {
		open[mkt.Ticker] = true
	}

	rels, err := m.store.ListRelationships(ctx)
	if err != nil {
		return 0, fmt.Errorf("list relationships: %w", err)
	}

	removed := 0
	for _, rel := range rels {
		anyOpen := false
		for _, t := range rel.Tickers {
			if open[t] {
				anyOpen = true
				break
			}
		}
		if anyOpen {
			continue
		}
		if err := m.store.DeleteRelationship(ctx, rel.ID); err != nil {
			m.logger.Error("stale-relationship-delete-failed",
				zap.String("id", rel.ID), zap.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		StaleRelationshipsRemoved.Add(float64(removed))
		m.logger.Info("stale-relationships-removed", zap.Int("count", removed))
	}
	return removed, nil
}

// runChunks splits a group into oracle-sized batches and processes each.
// Batch failures are logged and do not stop the pass.
func (m *Mapper) runChunks(ctx context.Context, pass string, group []types.Market, stats *PassStats) {
	for start := 0; start < len(group); start += chunkSize {
		end := start + chunkSize
		if end > len(group) {
			end = len(group)
		}
		chunk := group[start:end]
		if len(chunk) < 2 {
			continue
		}
		if err := m.processBatch(ctx, pass, chunk, stats); err != nil {
			m.logger.Warn("relationship-batch-failed",
				zap.String("pass", pass),
				zap.Int("markets", len(chunk)),
				zap.Error(err))
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (m *Mapper) processBatch(ctx context.Context, pass string, markets []types.Market, stats *PassStats) error {
	if !m.breaker.Allow() {
		return fmt.Errorf("oracle breaker open, skipping batch")
	}
	stats.Batches++
	BatchesAnalyzed.WithLabelValues(pass).Inc()

	text, err := m.oracle.Propose(ctx, BuildPrompt(markets))
	if err != nil {
		m.breaker.RecordFailure()
		return fmt.Errorf("oracle propose: %w", err)
	}
	m.breaker.RecordSuccess()

	raw, err := ExtractJSONArray(text)
	if err != nil {
		return fmt.Errorf("salvage oracle output: %w", err)
	}
	var proposals []proposal
	if err := json.Unmarshal(raw, &proposals); err != nil {
		return fmt.Errorf("decode proposals: %w", err)
	}

	known := make(map[string]bool, len(markets))
	for _, mkt := range markets {
		known[mkt.Ticker] = true
	}

	now := m.now().UTC()
	for i := range proposals {
		stats.Proposals++
		rel, err := proposals[i].normalize(known, now)
		if err != nil {
			stats.Dropped++
			ProposalsDropped.Inc()
			m.logger.Debug("proposal-dropped", zap.Error(err))
			continue
		}
		if err := m.upsert(ctx, rel, stats); err != nil {
			m.logger.Error("relationship-upsert-failed",
				zap.String("type", rel.Type), zap.Error(err))
		}
	}
	return nil
}

// upsert inserts a new relationship or refreshes an existing one found by
// the (type, sorted tickers) dedup key.
func (m *Mapper) upsert(ctx context.Context, rel *types.Relationship, stats *PassStats) error {
	existing, err := m.store.FindRelationship(ctx, rel.Type, types.TickerKey(rel.Tickers))
	if err != nil {
		return fmt.Errorf("find relationship: %w", err)
	}
	if existing != nil {
		if err := m.store.RevalidateRelationship(ctx, existing.ID, rel.Confidence, rel.LastValidated); err != nil {
			return fmt.Errorf("revalidate relationship: %w", err)
		}
		stats.Refreshed++
		return nil
	}
	if err := m.store.InsertRelationship(ctx, rel); err != nil {
		return fmt.Errorf("insert relationship: %w", err)
	}
	stats.Inserted++
	RelationshipsDiscovered.WithLabelValues(rel.Type).Inc()
	m.logger.Info("relationship-discovered",
		zap.String("type", rel.Type),
		zap.Strings("tickers", rel.Tickers),
		zap.Float64("confidence", rel.Confidence))
	return nil
}

func (m *Mapper) logPass(pass string, stats *PassStats) {
	m.logger.Info("relationship-pass-complete",
		zap.String("pass", pass),
		zap.Int("batches", stats.Batches),
		zap.Int("proposals", stats.Proposals),
		zap.Int("inserted", stats.Inserted),
		zap.Int("refreshed", stats.Refreshed),
		zap.Int("dropped", stats.Dropped))
}

func sortedKeys(m map[string][]types.Market) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
