package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/pkg/types"
)

// ConsoleStore implements Store in memory and pretty-prints detected
// opportunities to stdout. It lets the engine run end to end without a
// database, and doubles as a fake for package tests.
type ConsoleStore struct {
	logger *zap.Logger

	mu            sync.RWMutex
	markets       map[string]types.Market
	events        map[string]types.Event
	relationships map[string]types.Relationship
	opportunities map[string]types.Opportunity
	trades        map[string]types.Trade
	portfolio     *types.PortfolioState
	arbScans      []types.ArbScan
	arbTrades     []types.ArbTrade
	snapshots     []types.PriceSnapshot
}

// NewConsoleStore creates a new console store.
func NewConsoleStore(logger *zap.Logger) *ConsoleStore {
	logger.Info("console-storage-initialized")
	return &ConsoleStore{
		logger:        logger,
		markets:       make(map[string]types.Market),
		events:        make(map[string]types.Event),
		relationships: make(map[string]types.Relationship),
		opportunities: make(map[string]types.Opportunity),
		trades:        make(map[string]types.Trade),
	}
}

// InitSchema is a no-op for the console store.
func (c *ConsoleStore) InitSchema(ctx context.Context) error { return nil }

// UpsertMarkets stores markets in memory keyed by ticker.
func (c *ConsoleStore) UpsertMarkets(ctx context.Context, markets []types.Market) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range markets {
		c.markets[m.Ticker] = m
	}
	return nil
}

// GetMarket returns a market by ticker.
func (c *ConsoleStore) GetMarket(ctx context.Context, ticker string) (*types.Market, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.markets[ticker]
	if !ok {
		return nil, types.ErrMarketNotFound
	}
	return &m, nil
}

// ListMarketsByStatus returns markets with the given status.
func (c *ConsoleStore) ListMarketsByStatus(ctx context.Context, status string) ([]types.Market, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []types.Market
	for _, m := range c.markets {
		if m.Status == status {
			out = append(out, m)
		}
	}
	sortMarkets(out)
	return out, nil
}

// ListOpenMarkets returns markets still trading.
func (c *ConsoleStore) ListOpenMarkets(ctx context.Context) ([]types.Market, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []types.Market
	for _, m := range c.markets {
		if m.IsOpen() {
			out = append(out, m)
		}
	}
	sortMarkets(out)
	return out, nil
}

func sortMarkets(markets []types.Market) {
	sort.Slice(markets, func(i, j int) bool { return markets[i].Ticker < markets[j].Ticker })
}

// InsertPriceSnapshots appends snapshots in memory.
func (c *ConsoleStore) InsertPriceSnapshots(ctx context.Context, snaps []types.PriceSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots = append(c.snapshots, snaps...)
	return nil
}

// UpsertEvents stores events in memory keyed by event ticker.
func (c *ConsoleStore) UpsertEvents(ctx context.Context, events []types.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range events {
		c.events[e.EventTicker] = e
	}
	return nil
}

// InsertRelationship stores a relationship in memory.
func (c *ConsoleStore) InsertRelationship(ctx context.Context, rel *types.Relationship) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := rel.Type + "|" + types.TickerKey(rel.Tickers)
	for _, existing := range c.relationships {
		if existing.Type+"|"+types.TickerKey(existing.Tickers) == key {
			return fmt.Errorf("insert relationship: duplicate %s", key)
		}
	}
	c.relationships[rel.ID] = *rel
	return nil
}

// FindRelationship looks up a relationship by type and sorted ticker key.
func (c *ConsoleStore) FindRelationship(ctx context.Context, relType, tickerKey string) (*types.Relationship, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, rel := range c.relationships {
		if rel.Type == relType && types.TickerKey(rel.Tickers) == tickerKey {
			out := rel
			return &out, nil
		}
	}
	return nil, nil
}

// RevalidateRelationship refreshes confidence and last_validated.
func (c *ConsoleStore) RevalidateRelationship(ctx context.Context, id string, confidence float64, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rel, ok := c.relationships[id]
	if !ok {
		return nil
	}
	rel.Confidence = confidence
	rel.LastValidated = at
	c.relationships[id] = rel
	return nil
}

// ListActiveRelationships returns relationships referencing at least one
// open market.
func (c *ConsoleStore) ListActiveRelationships(ctx context.Context) ([]types.Relationship, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []types.Relationship
	for _, rel := range c.relationships {
		for _, ticker := range rel.Tickers {
			if m, ok := c.markets[ticker]; ok && m.IsOpen() {
				out = append(out, rel)
				break
			}
		}
	}
	sortRelationships(out)
	return out, nil
}

// ListRelationships returns every stored relationship.
func (c *ConsoleStore) ListRelationships(ctx context.Context) ([]types.Relationship, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Relationship, 0, len(c.relationships))
	for _, rel := range c.relationships {
		out = append(out, rel)
	}
	sortRelationships(out)
	return out, nil
}

func sortRelationships(rels []types.Relationship) {
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].CreatedAt.Equal(rels[j].CreatedAt) {
			return rels[i].ID < rels[j].ID
		}
		return rels[i].CreatedAt.Before(rels[j].CreatedAt)
	})
}

// DeleteRelationship removes a relationship by id.
func (c *ConsoleStore) DeleteRelationship(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.relationships, id)
	return nil
}

// InsertOpportunity stores an opportunity and pretty-prints it.
func (c *ConsoleStore) InsertOpportunity(ctx context.Context, opp *types.Opportunity) error {
	c.mu.Lock()
	c.opportunities[opp.ID] = *opp
	c.mu.Unlock()

	printOpportunity(opp)
	return nil
}

func printOpportunity(opp *types.Opportunity) {
	rule := strings.Repeat("━", 72)
	fmt.Println("\n" + rule)
	fmt.Printf("🎯 ARBITRAGE OPPORTUNITY DETECTED\n")
	fmt.Println(rule)
	fmt.Printf("ID:         %s\n", shortID(opp.ID))
	fmt.Printf("Signal:     %s\n", opp.Signal)
	fmt.Printf("Magnitude:  %.4f\n", opp.Magnitude)
	fmt.Printf("Confidence: %.2f\n", opp.Confidence)
	fmt.Printf("Score:      %.6f\n", opp.Score)
	fmt.Printf("Time:       %s\n", opp.DetectedAt.Format("2006-01-02 15:04:05"))
	fmt.Println(rule)
	fmt.Printf("📊 LEGS\n")
	for _, leg := range opp.Legs {
		fmt.Printf("  %-4s %s %s @ %.2f\n", strings.ToUpper(leg.Side), strings.ToUpper(leg.ContractSide()), leg.Ticker, leg.Price)
	}
	fmt.Println(rule)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// UpdateOpportunityStatus moves an opportunity through its lifecycle.
func (c *ConsoleStore) UpdateOpportunityStatus(ctx context.Context, id, status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	opp, ok := c.opportunities[id]
	if !ok {
		return types.ErrOpportunityNotFound
	}
	opp.Status = status
	c.opportunities[id] = opp
	return nil
}

// ListRecentOpportunities returns the newest opportunities up to limit.
func (c *ConsoleStore) ListRecentOpportunities(ctx context.Context, limit int) ([]types.Opportunity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Opportunity, 0, len(c.opportunities))
	for _, opp := range c.opportunities {
		out = append(out, opp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountOpportunitiesSince counts opportunities detected at or after since.
func (c *ConsoleStore) CountOpportunitiesSince(ctx context.Context, since time.Time) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, opp := range c.opportunities {
		if !opp.DetectedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// InsertTrade stores a trade in memory.
func (c *ConsoleStore) InsertTrade(ctx context.Context, trade *types.Trade) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trades[trade.ID] = *trade
	return nil
}

// UpdateTradeOrder sets the exchange order id and status.
func (c *ConsoleStore) UpdateTradeOrder(ctx context.Context, id, orderID, status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tr, ok := c.trades[id]
	if !ok {
		return nil
	}
	tr.OrderID = orderID
	tr.OrderStatus = status
	tr.UpdatedAt = time.Now()
	c.trades[id] = tr
	return nil
}

// UpdateTradeFill records the final status and filled count.
func (c *ConsoleStore) UpdateTradeFill(ctx context.Context, id, status string, filledCount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tr, ok := c.trades[id]
	if !ok {
		return nil
	}
	tr.OrderStatus = status
	tr.FilledCount = filledCount
	tr.UpdatedAt = time.Now()
	c.trades[id] = tr
	return nil
}

// CountTradesSince counts trades created at or after since.
func (c *ConsoleStore) CountTradesSince(ctx context.Context, since time.Time) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, tr := range c.trades {
		if !tr.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// GetPortfolioState returns the in-memory portfolio state.
func (c *ConsoleStore) GetPortfolioState(ctx context.Context) (*types.PortfolioState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.portfolio == nil {
		return nil, nil
	}
	out := *c.portfolio
	return &out, nil
}

// UpsertPortfolioState stores the portfolio state in memory.
func (c *ConsoleStore) UpsertPortfolioState(ctx context.Context, state *types.PortfolioState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := *state
	c.portfolio = &st
	return nil
}

// InsertArbScan appends a scan record in memory.
func (c *ConsoleStore) InsertArbScan(ctx context.Context, scan *types.ArbScan) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arbScans = append(c.arbScans, *scan)
	return nil
}

// InsertArbTrade appends an arb trade record in memory.
func (c *ConsoleStore) InsertArbTrade(ctx context.Context, trade *types.ArbTrade) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arbTrades = append(c.arbTrades, *trade)
	return nil
}

// Close is a no-op for the console store.
func (c *ConsoleStore) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
