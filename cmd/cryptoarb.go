package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantfold/kalshi-arb/internal/app"
)

//nolint:gochecknoglobals // Cobra boilerplate
var cryptoarbCmd = &cobra.Command{
	Use:   "cryptoarb",
	Short: "Run the auxiliary YES+NO crypto arbitrage loop",
	Long: `Runs the standalone crypto arbitrage loop, which holds an in-memory
snapshot of the crypto price-range markets and buys YES and NO on the same
market whenever the combined asks plus fees come in under $1.

This loop is independent of the relationship engine and keeps no state
between restarts beyond the trade log.`,
	RunE: runCryptoArb,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(cryptoarbCmd)
}

func runCryptoArb(cmd *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return app.RunCryptoArb(ctx, cfg, logger)
}
