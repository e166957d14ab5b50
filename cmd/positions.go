package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List open exchange positions",
	RunE:  runPositions,
}

func init() {
	rootCmd.AddCommand(positionsCmd)
}

func runPositions(cmd *cobra.Command, args []string) error {
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

	client, err := newClient(cfg, logger, true)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	positions, err := client.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("get positions: %w", err)
	}

	if len(positions) == 0 {
		fmt.Println("No open positions")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Ticker", "Contracts", "Exposure", "Traded", "Resting", "Fees")
	for _, pos := range positions {
		table.Append(
			pos.Ticker,
			fmt.Sprintf("%d", pos.Position),
			fmt.Sprintf("$%.2f", float64(pos.MarketExposure)/100),
			fmt.Sprintf("$%.2f", float64(pos.TotalTraded)/100),
			fmt.Sprintf("%d", pos.RestingOrders),
			fmt.Sprintf("$%.2f", float64(pos.Fees)/100),
		)
	}
	table.Render()
	return nil
}
