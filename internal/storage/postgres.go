package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// NewPostgresStore opens a PostgreSQL-backed store. The DSN is a
// standard postgres:// URL or key=value connection string.
func NewPostgresStore(cfg *Config) (*SQLStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected")

	return &SQLStore{
		db:     db,
		driver: DriverPostgres,
		logger: cfg.Logger,
	}, nil
}
