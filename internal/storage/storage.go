// Package storage persists markets, relationships, opportunities, trades
// and portfolio state behind a backend-agnostic Store interface. Two SQL
// backends are supported (PostgreSQL via lib/pq and SQLite via modernc.org)
// plus a console backend for dry runs without a database.
package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/pkg/types"
)

// Driver names accepted by New.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverConsole  = "console"
)

// Store is the persistence interface used by every engine layer.
type Store interface {
	// InitSchema creates all tables and indexes if they do not exist.
	InitSchema(ctx context.Context) error

	// UpsertMarkets inserts or refreshes market rows keyed by ticker.
	UpsertMarkets(ctx context.Context, markets []types.Market) error

	// GetMarket returns a single market by ticker, or
	// types.ErrMarketNotFound.
	GetMarket(ctx context.Context, ticker string) (*types.Market, error)

	// ListMarketsByStatus returns all markets with the given status.
	ListMarketsByStatus(ctx context.Context, status string) ([]types.Market, error)

	// ListOpenMarkets returns all markets still trading ("open" or
	// "active").
	ListOpenMarkets(ctx context.Context) ([]types.Market, error)

	// InsertPriceSnapshots appends point-in-time price rows.
	InsertPriceSnapshots(ctx context.Context, snaps []types.PriceSnapshot) error

	// UpsertEvents inserts or refreshes event rows keyed by event ticker.
	UpsertEvents(ctx context.Context, events []types.Event) error

	// InsertRelationship stores a new relationship. Ticker order is
	// preserved as proposed.
	InsertRelationship(ctx context.Context, rel *types.Relationship) error

	// FindRelationship looks up a relationship by type and its sorted
	// ticker key. Returns (nil, nil) when absent.
	FindRelationship(ctx context.Context, relType, tickerKey string) (*types.Relationship, error)

	// RevalidateRelationship refreshes confidence and last_validated on
	// an existing relationship.
	RevalidateRelationship(ctx context.Context, id string, confidence float64, at time.Time) error

	// ListActiveRelationships returns relationships that reference at
	// least one currently open market.
	ListActiveRelationships(ctx context.Context) ([]types.Relationship, error)

	// ListRelationships returns every stored relationship.
	ListRelationships(ctx context.Context) ([]types.Relationship, error)

	// DeleteRelationship removes a relationship by id.
	DeleteRelationship(ctx context.Context, id string) error

	// InsertOpportunity stores a detected opportunity.
	InsertOpportunity(ctx context.Context, opp *types.Opportunity) error

	// UpdateOpportunityStatus moves an opportunity through its lifecycle.
	UpdateOpportunityStatus(ctx context.Context, id, status string) error

	// ListRecentOpportunities returns the newest opportunities up to
	// limit, newest first.
	ListRecentOpportunities(ctx context.Context, limit int) ([]types.Opportunity, error)

	// CountOpportunitiesSince counts opportunities detected at or after
	// the given time.
	CountOpportunitiesSince(ctx context.Context, since time.Time) (int, error)

	// InsertTrade stores a trade leg record.
	InsertTrade(ctx context.Context, trade *types.Trade) error

	// UpdateTradeOrder sets the exchange order id and status after
	// placement.
	UpdateTradeOrder(ctx context.Context, id, orderID, status string) error

	// UpdateTradeFill records the final status and filled count.
	UpdateTradeFill(ctx context.Context, id, status string, filledCount int) error

	// CountTradesSince counts trades created at or after the given time.
	CountTradesSince(ctx context.Context, since time.Time) (int, error)

	// GetPortfolioState loads the singleton portfolio row. Returns
	// (nil, nil) when no state has been persisted yet.
	GetPortfolioState(ctx context.Context) (*types.PortfolioState, error)

	// UpsertPortfolioState persists the singleton portfolio row.
	UpsertPortfolioState(ctx context.Context, state *types.PortfolioState) error

	// InsertArbScan records one cross-market scan result.
	InsertArbScan(ctx context.Context, scan *types.ArbScan) error

	// InsertArbTrade records one leg of a YES/NO arbitrage execution.
	InsertArbTrade(ctx context.Context, trade *types.ArbTrade) error

	// Close releases the underlying connection pool.
	Close() error
}

// Config holds storage backend configuration.
type Config struct {
	Driver string
	DSN    string
	Logger *zap.Logger
}

// New opens the configured backend and verifies connectivity.
func New(cfg *Config) (Store, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return NewPostgresStore(cfg)
	case DriverSQLite:
		return NewSQLiteStore(cfg)
	case DriverConsole:
		return NewConsoleStore(cfg.Logger), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
