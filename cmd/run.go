package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantfold/kalshi-arb/internal/app"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the arbitrage engine",
	Long: `Starts the full arbitrage engine, which will:
1. Ingest the open market universe on a fixed cadence
2. Run relationship discovery passes against the inference oracle
3. Detect constraint violations and score them
4. Execute multi-leg trades, gated by the portfolio risk guard

Trading is simulated unless trading.dry_run is false in the config.`,
	RunE: runEngine,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
}

func runEngine(cmd *cobra.Command, args []string) error {
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

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	return application.Run()
}
