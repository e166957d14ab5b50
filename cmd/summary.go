package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfold/kalshi-arb/internal/portfolio"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the current portfolio risk summary",
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
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

	client, err := newClient(cfg, logger, true)
	if err != nil {
		return err
	}

	guard := portfolio.New(&portfolio.Config{
		Store:    store,
		Exchange: client,
		Limits: portfolio.Limits{
			MaxRiskPerTradePct:   cfg.Trading.MaxRiskPerTradePct,
			MaxDailyLoss:         cfg.Trading.MaxDailyLoss,
			MaxOpenPositions:     cfg.Trading.MaxOpenPositions,
			MaxContractsPerTrade: cfg.Trading.MaxContractsPerTrade,
		},
		Logger: logger,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := guard.Sync(ctx); err != nil {
		return fmt.Errorf("sync portfolio: %w", err)
	}

	s := guard.Summary()
	fmt.Printf("Balance:        $%.2f\n", s.Balance)
	fmt.Printf("Daily P&L:      $%.2f (limit -$%.2f)\n", s.DailyPnL, s.MaxDailyLoss)
	fmt.Printf("Open positions: %d\n", s.OpenPositions)
	fmt.Printf("Kill switch:    %v\n", s.KillSwitch)
	fmt.Printf("Can trade:      %v\n", s.CanTrade)
	return nil
}
