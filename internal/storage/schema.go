package storage

// Schema statements are written in the dialect subset shared by
// PostgreSQL and SQLite: TEXT primary keys, RFC3339 timestamps stored
// as TEXT, and ON CONFLICT upserts. Executed in order by InitSchema.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS markets (
		ticker TEXT PRIMARY KEY,
		event_ticker TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		subtitle TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		yes_ask DOUBLE PRECISION NOT NULL DEFAULT 0,
		yes_bid DOUBLE PRECISION NOT NULL DEFAULT 0,
		no_ask DOUBLE PRECISION NOT NULL DEFAULT 0,
		no_bid DOUBLE PRECISION NOT NULL DEFAULT 0,
		volume INTEGER NOT NULL DEFAULT 0,
		open_interest INTEGER NOT NULL DEFAULT 0,
		close_time TEXT NOT NULL DEFAULT '',
		rules_primary TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_markets_status ON markets (status)`,
	`CREATE INDEX IF NOT EXISTS idx_markets_event ON markets (event_ticker)`,

	`CREATE TABLE IF NOT EXISTS price_snapshots (
		ticker TEXT NOT NULL,
		yes_ask DOUBLE PRECISION NOT NULL DEFAULT 0,
		yes_bid DOUBLE PRECISION NOT NULL DEFAULT 0,
		snapshot_time TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_ticker ON price_snapshots (ticker, snapshot_time)`,

	`CREATE TABLE IF NOT EXISTS events (
		event_ticker TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		market_tickers TEXT NOT NULL DEFAULT '[]'
	)`,

	`CREATE TABLE IF NOT EXISTS relationships (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		tickers TEXT NOT NULL,
		tickers_key TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		formula TEXT NOT NULL DEFAULT '',
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		reasoning TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		last_validated TEXT NOT NULL,
		UNIQUE (type, tickers_key)
	)`,

	`CREATE TABLE IF NOT EXISTS opportunities (
		id TEXT PRIMARY KEY,
		relationship_id TEXT NOT NULL DEFAULT '',
		signal TEXT NOT NULL,
		magnitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		score DOUBLE PRECISION NOT NULL DEFAULT 0,
		legs TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL,
		detected_at TEXT NOT NULL,
		expires_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_opportunities_status ON opportunities (status)`,
	`CREATE INDEX IF NOT EXISTS idx_opportunities_detected ON opportunities (detected_at)`,

	`CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		opportunity_id TEXT NOT NULL DEFAULT '',
		ticker TEXT NOT NULL,
		side TEXT NOT NULL,
		action TEXT NOT NULL,
		price DOUBLE PRECISION NOT NULL DEFAULT 0,
		count INTEGER NOT NULL DEFAULT 0,
		order_id TEXT NOT NULL DEFAULT '',
		order_status TEXT NOT NULL DEFAULT '',
		filled_count INTEGER NOT NULL DEFAULT 0,
		fees DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_opportunity ON trades (opportunity_id)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_created ON trades (created_at)`,

	`CREATE TABLE IF NOT EXISTS portfolio_state (
		id INTEGER PRIMARY KEY,
		balance DOUBLE PRECISION NOT NULL DEFAULT 0,
		daily_pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
		open_positions INTEGER NOT NULL DEFAULT 0,
		kill_switch BOOLEAN NOT NULL DEFAULT FALSE,
		last_updated TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS arb_scans (
		id TEXT PRIMARY KEY,
		event_ticker TEXT NOT NULL,
		num_markets INTEGER NOT NULL DEFAULT 0,
		total_ask DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_fees DOUBLE PRECISION NOT NULL DEFAULT 0,
		profit_cents DOUBLE PRECISION NOT NULL DEFAULT 0,
		acted BOOLEAN NOT NULL DEFAULT FALSE,
		scanned_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS arb_trades (
		id TEXT PRIMARY KEY,
		scan_id TEXT NOT NULL DEFAULT '',
		event_ticker TEXT NOT NULL,
		ticker TEXT NOT NULL,
		side TEXT NOT NULL,
		price DOUBLE PRECISION NOT NULL DEFAULT 0,
		count INTEGER NOT NULL DEFAULT 0,
		order_id TEXT NOT NULL DEFAULT '',
		order_status TEXT NOT NULL DEFAULT '',
		fees DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
}
