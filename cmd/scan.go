package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/quantfold/kalshi-arb/internal/detector"
	"github.com/quantfold/kalshi-arb/internal/markets"
	"github.com/quantfold/kalshi-arb/pkg/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one detection sweep over persisted relationships",
	Long: `Checks every active relationship in storage against current market
prices and prints the violations found. Nothing is executed; detected
opportunities are persisted for inspection.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
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

	reader, err := markets.NewCachedReader(&markets.Config{
		Store:  store,
		TTL:    10 * time.Second,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("create market reader: %w", err)
	}
	defer reader.Close()

	det := detector.New(&detector.Config{
		Store:             store,
		Markets:           reader,
		MinScoreThreshold: cfg.Trading.MinScoreThreshold,
		FeeSafety:         cfg.Trading.FeeSafetyMultiplier,
		Logger:            logger,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	opps, err := det.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	if len(opps) == 0 {
		fmt.Println("No violations found")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Signal", "Magnitude", "Score", "Legs", "Expires")
	for _, opp := range opps {
		table.Append(
			opp.Signal,
			fmt.Sprintf("$%.2f", opp.Magnitude),
			fmt.Sprintf("%.3f", opp.Score),
			legSummary(opp.Legs),
			opp.ExpiresAt.Format(time.RFC3339),
		)
	}
	table.Render()

	fmt.Printf("\n%d violation(s) found\n", len(opps))
	return nil
}

func legSummary(legs []types.Leg) string {
	parts := make([]string, 0, len(legs))
	for _, leg := range legs {
		parts = append(parts, fmt.Sprintf("%s %s %s @ $%.2f",
			strings.ToUpper(leg.Side), leg.ContractSide(), leg.Ticker, leg.Price))
	}
	return strings.Join(parts, ", ")
}
