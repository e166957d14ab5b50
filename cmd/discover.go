package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfold/kalshi-arb/internal/circuitbreaker"
	"github.com/quantfold/kalshi-arb/internal/relationship"
)

var discoverPass string

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run relationship discovery passes once and exit",
	Long: `Runs the LLM-backed relationship discovery passes over the persisted
market universe and upserts the proposed relationships. Requires
ANTHROPIC_API_KEY and an already-ingested database (see "ingest").

Passes:
  event     markets grouped by event ticker
  category  markets grouped by category
  cross     cross-category sample
  all       every pass in order, then stale-relationship cleanup`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().StringVarP(&discoverPass, "pass", "p", "all", "Which pass to run: event, category, cross or all")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Oracle.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY not set")
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

	oracle, err := relationship.NewOracle(&relationship.OracleConfig{
		BaseURL:   cfg.Oracle.BaseURL,
		APIKey:    cfg.Oracle.APIKey,
		Model:     cfg.Oracle.Model,
		MaxTokens: cfg.Oracle.MaxTokens,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("create oracle: %w", err)
	}

	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		Name:             "oracle",
		FailureThreshold: 5,
		Cooldown:         5 * time.Minute,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("create breaker: %w", err)
	}

	mapper := relationship.New(&relationship.Config{
		Store:   store,
		Oracle:  oracle,
		Breaker: breaker,
		Logger:  logger,
	})

	ctx := context.Background()

	type pass struct {
		name string
		run  func(context.Context) (*relationship.PassStats, error)
	}
	var passes []pass
	switch discoverPass {
	case "event":
		passes = []pass{{"event", mapper.EventPass}}
	case "category":
		passes = []pass{{"category", mapper.CategoryPass}}
	case "cross":
		passes = []pass{{"cross", mapper.CrossPass}}
	case "all":
		passes = []pass{
			{"event", mapper.EventPass},
			{"category", mapper.CategoryPass},
			{"cross", mapper.CrossPass},
		}
	default:
		return fmt.Errorf("unknown pass %q", discoverPass)
	}

	for _, p := range passes {
		stats, err := p.run(ctx)
		if err != nil {
			return fmt.Errorf("%s pass: %w", p.name, err)
		}
		fmt.Printf("%s pass: %d batches, %d proposals, %d inserted, %d refreshed, %d dropped\n",
			p.name, stats.Batches, stats.Proposals, stats.Inserted, stats.Refreshed, stats.Dropped)
	}

	if discoverPass == "all" {
		removed, err := mapper.CleanupStale(ctx)
		if err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		fmt.Printf("cleanup: %d stale relationship(s) deactivated\n", removed)
	}
	return nil
}
