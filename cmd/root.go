package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var cfgFile string

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "kalshi-arb",
	Short: "Kalshi relationship arbitrage engine",
	Long: `Kalshi relationship arbitrage engine that ingests the full market
universe, maps logical relationships between markets (subset, threshold,
partition, implication), detects price-constraint violations and executes
multi-leg trades against them.

Run "kalshi-arb run" to start the engine, or use the operational
subcommands (ingest, scan, balance, positions, ...) for one-off work.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "Path to the YAML config file")
}
