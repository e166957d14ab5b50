package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfold/kalshi-arb/internal/ingestion"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion sweep and exit",
	Long: `Fetches every open market and event from the exchange, normalizes
them and persists the result to storage. Useful for seeding a fresh
database before starting the engine.`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := newClient(cfg, logger, false)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	ingestor := ingestion.New(&ingestion.Config{
		Exchange: client,
		Store:    store,
		Logger:   logger,
	})

	stats, err := ingestor.IngestAll(ctx)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	fmt.Printf("Ingested %d markets (%d quoted) across %d events, %d snapshots, in %s\n",
		stats.Markets, stats.Quoted, stats.Events, stats.Snapshots, stats.Elapsed.Round(time.Millisecond))
	return nil
}
