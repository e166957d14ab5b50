package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/pkg/types"
)

// Timestamps are stored as fixed-width UTC text so that string
// comparison in SQL matches chronological order on both backends.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// upsertChunk bounds the number of rows written per transaction.
const upsertChunk = 1000

// SQLStore implements Store on top of database/sql. Queries are written
// with ? placeholders and rebound to $n for PostgreSQL.
type SQLStore struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func decodeTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodeJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeStrings(s string) []string {
	var out []string
	if s == "" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func decodeLegs(s string) []types.Leg {
	var out []types.Leg
	if s == "" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// InitSchema creates all tables and indexes if they do not exist.
func (s *SQLStore) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	s.logger.Info("schema-initialized", zap.Int("statements", len(schemaStatements)))
	return nil
}

const upsertMarketQuery = `
	INSERT INTO markets (
		ticker, event_ticker, title, subtitle, category, status,
		yes_ask, yes_bid, no_ask, no_bid, volume, open_interest,
		close_time, rules_primary, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (ticker) DO UPDATE SET
		event_ticker = excluded.event_ticker,
		title = excluded.title,
		subtitle = excluded.subtitle,
		category = excluded.category,
		status = excluded.status,
		yes_ask = excluded.yes_ask,
		yes_bid = excluded.yes_bid,
		no_ask = excluded.no_ask,
		no_bid = excluded.no_bid,
		volume = excluded.volume,
		open_interest = excluded.open_interest,
		close_time = excluded.close_time,
		rules_primary = excluded.rules_primary,
		updated_at = excluded.updated_at`

// UpsertMarkets inserts or refreshes market rows keyed by ticker.
func (s *SQLStore) UpsertMarkets(ctx context.Context, markets []types.Market) error {
	query := s.rebind(upsertMarketQuery)
	for start := 0; start < len(markets); start += upsertChunk {
		end := min(start+upsertChunk, len(markets))
		if err := s.upsertMarketChunk(ctx, query, markets[start:end]); err != nil {
			return err
		}
	}
	s.logger.Debug("markets-upserted", zap.Int("count", len(markets)))
	return nil
}

func (s *SQLStore) upsertMarketChunk(ctx context.Context, query string, markets []types.Market) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin market upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare market upsert: %w", err)
	}
	defer stmt.Close()

	for i := range markets {
		m := &markets[i]
		_, err = stmt.ExecContext(ctx,
			m.Ticker, m.EventTicker, m.Title, m.Subtitle, m.Category, m.Status,
			m.YesAsk, m.YesBid, m.NoAsk, m.NoBid, m.Volume, m.OpenInterest,
			encodeTime(m.CloseTime), m.RulesPrimary, encodeTime(m.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("upsert market %s: %w", m.Ticker, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit market upsert: %w", err)
	}
	return nil
}

const selectMarketColumns = `
	SELECT ticker, event_ticker, title, subtitle, category, status,
		yes_ask, yes_bid, no_ask, no_bid, volume, open_interest,
		close_time, rules_primary, updated_at
	FROM markets`

func scanMarket(row interface{ Scan(...any) error }) (*types.Market, error) {
	var m types.Market
	var closeTime, updatedAt string
	err := row.Scan(
		&m.Ticker, &m.EventTicker, &m.Title, &m.Subtitle, &m.Category, &m.Status,
		&m.YesAsk, &m.YesBid, &m.NoAsk, &m.NoBid, &m.Volume, &m.OpenInterest,
		&closeTime, &m.RulesPrimary, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.CloseTime = decodeTime(closeTime)
	m.UpdatedAt = decodeTime(updatedAt)
	return &m, nil
}

// GetMarket returns a single market by ticker.
func (s *SQLStore) GetMarket(ctx context.Context, ticker string) (*types.Market, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(selectMarketColumns+` WHERE ticker = ?`), ticker)
	m, err := scanMarket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrMarketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get market %s: %w", ticker, err)
	}
	return m, nil
}

// ListMarketsByStatus returns all markets with the given status.
func (s *SQLStore) ListMarketsByStatus(ctx context.Context, status string) ([]types.Market, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(selectMarketColumns+` WHERE status = ? ORDER BY ticker`), status)
	if err != nil {
		return nil, fmt.Errorf("list markets by status: %w", err)
	}
	return collectMarkets(rows)
}

// ListOpenMarkets returns all markets still trading. Both "open" and
// "active" count as trading.
func (s *SQLStore) ListOpenMarkets(ctx context.Context) ([]types.Market, error) {
	rows, err := s.db.QueryContext(ctx, selectMarketColumns+` WHERE status IN ('open', 'active') ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("list open markets: %w", err)
	}
	return collectMarkets(rows)
}

func collectMarkets(rows *sql.Rows) ([]types.Market, error) {
	defer rows.Close()
	var out []types.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan market: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// InsertPriceSnapshots appends point-in-time price rows.
func (s *SQLStore) InsertPriceSnapshots(ctx context.Context, snaps []types.PriceSnapshot) error {
	query := s.rebind(`INSERT INTO price_snapshots (ticker, yes_ask, yes_bid, snapshot_time) VALUES (?, ?, ?, ?)`)
	for start := 0; start < len(snaps); start += upsertChunk {
		end := min(start+upsertChunk, len(snaps))
		if err := s.insertSnapshotChunk(ctx, query, snaps[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) insertSnapshotChunk(ctx context.Context, query string, snaps []types.PriceSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for i := range snaps {
		sn := &snaps[i]
		if _, err := stmt.ExecContext(ctx, sn.MarketTicker, sn.YesAsk, sn.YesBid, encodeTime(sn.Timestamp)); err != nil {
			return fmt.Errorf("insert snapshot %s: %w", sn.MarketTicker, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot insert: %w", err)
	}
	return nil
}

// UpsertEvents inserts or refreshes event rows keyed by event ticker.
func (s *SQLStore) UpsertEvents(ctx context.Context, events []types.Event) error {
	query := s.rebind(`
		INSERT INTO events (event_ticker, title, category, market_tickers)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (event_ticker) DO UPDATE SET
			title = excluded.title,
			category = excluded.category,
			market_tickers = excluded.market_tickers`)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare event upsert: %w", err)
	}
	defer stmt.Close()

	for i := range events {
		e := &events[i]
		if _, err := stmt.ExecContext(ctx, e.EventTicker, e.Title, e.Category, encodeJSON(e.MarketTickers)); err != nil {
			return fmt.Errorf("upsert event %s: %w", e.EventTicker, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event upsert: %w", err)
	}
	s.logger.Debug("events-upserted", zap.Int("count", len(events)))
	return nil
}

// InsertRelationship stores a new relationship. The tickers column keeps
// the proposed order; tickers_key holds the sorted form used for
// duplicate detection.
func (s *SQLStore) InsertRelationship(ctx context.Context, rel *types.Relationship) error {
	query := s.rebind(`
		INSERT INTO relationships (
			id, type, tickers, tickers_key, description, formula,
			confidence, reasoning, created_at, last_validated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		rel.ID, rel.Type, encodeJSON(rel.Tickers), types.TickerKey(rel.Tickers),
		rel.Description, rel.Formula, rel.Confidence, rel.Reasoning,
		encodeTime(rel.CreatedAt), encodeTime(rel.LastValidated),
	)
	if err != nil {
		return fmt.Errorf("insert relationship: %w", err)
	}
	s.logger.Debug("relationship-stored",
		zap.String("relationship-id", rel.ID),
		zap.String("type", rel.Type))
	return nil
}

const selectRelationshipColumns = `
	SELECT id, type, tickers, description, formula, confidence,
		reasoning, created_at, last_validated
	FROM relationships`

func scanRelationship(row interface{ Scan(...any) error }) (*types.Relationship, error) {
	var rel types.Relationship
	var tickers, createdAt, lastValidated string
	err := row.Scan(
		&rel.ID, &rel.Type, &tickers, &rel.Description, &rel.Formula,
		&rel.Confidence, &rel.Reasoning, &createdAt, &lastValidated,
	)
	if err != nil {
		return nil, err
	}
	rel.Tickers = decodeStrings(tickers)
	rel.CreatedAt = decodeTime(createdAt)
	rel.LastValidated = decodeTime(lastValidated)
	return &rel, nil
}

// FindRelationship looks up a relationship by type and sorted ticker key.
func (s *SQLStore) FindRelationship(ctx context.Context, relType, tickerKey string) (*types.Relationship, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(selectRelationshipColumns+` WHERE type = ? AND tickers_key = ?`),
		relType, tickerKey)
	rel, err := scanRelationship(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find relationship: %w", err)
	}
	return rel, nil
}

// RevalidateRelationship refreshes confidence and last_validated.
func (s *SQLStore) RevalidateRelationship(ctx context.Context, id string, confidence float64, at time.Time) error {
	query := s.rebind(`UPDATE relationships SET confidence = ?, last_validated = ? WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query, confidence, encodeTime(at), id); err != nil {
		return fmt.Errorf("revalidate relationship: %w", err)
	}
	return nil
}

// ListActiveRelationships returns relationships referencing at least one
// open market. Tickers are stored as a JSON array; matching the quoted
// element keeps a ticker from matching inside a longer ticker.
func (s *SQLStore) ListActiveRelationships(ctx context.Context) ([]types.Relationship, error) {
	query := selectRelationshipColumns + `
		WHERE EXISTS (
			SELECT 1 FROM markets m
			WHERE m.status IN ('open', 'active')
			AND relationships.tickers LIKE '%"' || m.ticker || '"%'
		)
		ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active relationships: %w", err)
	}
	return collectRelationships(rows)
}

// ListRelationships returns every stored relationship.
func (s *SQLStore) ListRelationships(ctx context.Context) ([]types.Relationship, error) {
	rows, err := s.db.QueryContext(ctx, selectRelationshipColumns+` ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	return collectRelationships(rows)
}

func collectRelationships(rows *sql.Rows) ([]types.Relationship, error) {
	defer rows.Close()
	var out []types.Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		out = append(out, *rel)
	}
	return out, rows.Err()
}

// DeleteRelationship removes a relationship by id.
func (s *SQLStore) DeleteRelationship(ctx context.Context, id string) error {
	query := s.rebind(`DELETE FROM relationships WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete relationship: %w", err)
	}
	return nil
}

// InsertOpportunity stores a detected opportunity.
func (s *SQLStore) InsertOpportunity(ctx context.Context, opp *types.Opportunity) error {
	query := s.rebind(`
		INSERT INTO opportunities (
			id, relationship_id, signal, magnitude, confidence, score,
			legs, status, detected_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		opp.ID, opp.RelationshipID, opp.Signal, opp.Magnitude, opp.Confidence,
		opp.Score, encodeJSON(opp.Legs), opp.Status,
		encodeTime(opp.DetectedAt), encodeTime(opp.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}
	s.logger.Debug("opportunity-stored",
		zap.String("opportunity-id", opp.ID),
		zap.String("signal", opp.Signal),
		zap.Float64("score", opp.Score))
	return nil
}

// UpdateOpportunityStatus moves an opportunity through its lifecycle.
func (s *SQLStore) UpdateOpportunityStatus(ctx context.Context, id, status string) error {
	query := s.rebind(`UPDATE opportunities SET status = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update opportunity status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return types.ErrOpportunityNotFound
	}
	return nil
}

const selectOpportunityColumns = `
	SELECT id, relationship_id, signal, magnitude, confidence, score,
		legs, status, detected_at, expires_at
	FROM opportunities`

func scanOpportunity(row interface{ Scan(...any) error }) (*types.Opportunity, error) {
	var opp types.Opportunity
	var legs, detectedAt, expiresAt string
	err := row.Scan(
		&opp.ID, &opp.RelationshipID, &opp.Signal, &opp.Magnitude,
		&opp.Confidence, &opp.Score, &legs, &opp.Status, &detectedAt, &expiresAt,
	)
	if err != nil {
		return nil, err
	}
	opp.Legs = decodeLegs(legs)
	opp.DetectedAt = decodeTime(detectedAt)
	opp.ExpiresAt = decodeTime(expiresAt)
	return &opp, nil
}

// ListRecentOpportunities returns the newest opportunities up to limit.
func (s *SQLStore) ListRecentOpportunities(ctx context.Context, limit int) ([]types.Opportunity, error) {
	query := s.rebind(selectOpportunityColumns + ` ORDER BY detected_at DESC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent opportunities: %w", err)
	}
	defer rows.Close()
	var out []types.Opportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		out = append(out, *opp)
	}
	return out, rows.Err()
}

// CountOpportunitiesSince counts opportunities detected at or after since.
func (s *SQLStore) CountOpportunitiesSince(ctx context.Context, since time.Time) (int, error) {
	query := s.rebind(`SELECT COUNT(*) FROM opportunities WHERE detected_at >= ?`)
	var n int
	if err := s.db.QueryRowContext(ctx, query, encodeTime(since)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count opportunities: %w", err)
	}
	return n, nil
}

// InsertTrade stores a trade leg record.
func (s *SQLStore) InsertTrade(ctx context.Context, trade *types.Trade) error {
	query := s.rebind(`
		INSERT INTO trades (
			id, opportunity_id, ticker, side, action, price, count,
			order_id, order_status, filled_count, fees, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		trade.ID, trade.OpportunityID, trade.Ticker, trade.Side, trade.Action,
		trade.Price, trade.Count, trade.OrderID, trade.OrderStatus,
		trade.FilledCount, trade.Fees, encodeTime(trade.CreatedAt), encodeTime(trade.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// UpdateTradeOrder sets the exchange order id and status after placement.
func (s *SQLStore) UpdateTradeOrder(ctx context.Context, id, orderID, status string) error {
	query := s.rebind(`UPDATE trades SET order_id = ?, order_status = ?, updated_at = ? WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query, orderID, status, encodeTime(time.Now()), id); err != nil {
		return fmt.Errorf("update trade order: %w", err)
	}
	return nil
}

// UpdateTradeFill records the final status and filled count.
func (s *SQLStore) UpdateTradeFill(ctx context.Context, id, status string, filledCount int) error {
	query := s.rebind(`UPDATE trades SET order_status = ?, filled_count = ?, updated_at = ? WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query, status, filledCount, encodeTime(time.Now()), id); err != nil {
		return fmt.Errorf("update trade fill: %w", err)
	}
	return nil
}

// CountTradesSince counts trades created at or after since.
func (s *SQLStore) CountTradesSince(ctx context.Context, since time.Time) (int, error) {
	query := s.rebind(`SELECT COUNT(*) FROM trades WHERE created_at >= ?`)
	var n int
	if err := s.db.QueryRowContext(ctx, query, encodeTime(since)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count trades: %w", err)
	}
	return n, nil
}

// GetPortfolioState loads the singleton portfolio row.
func (s *SQLStore) GetPortfolioState(ctx context.Context) (*types.PortfolioState, error) {
	query := `SELECT balance, daily_pnl, open_positions, kill_switch, last_updated FROM portfolio_state WHERE id = 1`
	var st types.PortfolioState
	var lastUpdated string
	err := s.db.QueryRowContext(ctx, query).Scan(
		&st.Balance, &st.DailyPnL, &st.OpenPositions, &st.KillSwitch, &lastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get portfolio state: %w", err)
	}
	st.LastUpdated = decodeTime(lastUpdated)
	return &st, nil
}

// UpsertPortfolioState persists the singleton portfolio row.
func (s *SQLStore) UpsertPortfolioState(ctx context.Context, state *types.PortfolioState) error {
	query := s.rebind(`
		INSERT INTO portfolio_state (id, balance, daily_pnl, open_positions, kill_switch, last_updated)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			balance = excluded.balance,
			daily_pnl = excluded.daily_pnl,
			open_positions = excluded.open_positions,
			kill_switch = excluded.kill_switch,
			last_updated = excluded.last_updated`)
	_, err := s.db.ExecContext(ctx, query,
		state.Balance, state.DailyPnL, state.OpenPositions, state.KillSwitch,
		encodeTime(state.LastUpdated),
	)
	if err != nil {
		return fmt.Errorf("upsert portfolio state: %w", err)
	}
	return nil
}

// InsertArbScan records one cross-market scan result.
func (s *SQLStore) InsertArbScan(ctx context.Context, scan *types.ArbScan) error {
	query := s.rebind(`
		INSERT INTO arb_scans (
			id, event_ticker, num_markets, total_ask, total_fees,
			profit_cents, acted, scanned_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		scan.ID, scan.EventTicker, scan.NumMarkets, scan.TotalAsk,
		scan.TotalFees, scan.ProfitCents, scan.Acted, encodeTime(scan.ScannedAt),
	)
	if err != nil {
		return fmt.Errorf("insert arb scan: %w", err)
	}
	return nil
}

// InsertArbTrade records one leg of a YES/NO arbitrage execution.
func (s *SQLStore) InsertArbTrade(ctx context.Context, trade *types.ArbTrade) error {
	query := s.rebind(`
		INSERT INTO arb_trades (
			id, scan_id, event_ticker, ticker, side, price, count,
			order_id, order_status, fees, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		trade.ID, trade.ScanID, trade.EventTicker, trade.Ticker, trade.Side,
		trade.Price, trade.Count, trade.OrderID, trade.OrderStatus,
		trade.Fees, encodeTime(trade.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert arb trade: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	s.logger.Info("closing-sql-storage", zap.String("driver", s.driver))
	return s.db.Close()
}
