package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// NewSQLiteStore opens a SQLite-backed store at the given file path,
// creating parent directories as needed. WAL mode keeps the reader
// goroutines from blocking the ingestion writer.
func NewSQLiteStore(cfg *Config) (*SQLStore, error) {
	if dir := filepath.Dir(cfg.DSN); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DSN+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	cfg.Logger.Info("sqlite-storage-connected", zap.String("path", cfg.DSN))

	return &SQLStore{
		db:     db,
		driver: DriverSQLite,
		logger: cfg.Logger,
	}, nil
}
