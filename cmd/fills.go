package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var fillsTicker string

var fillsCmd = &cobra.Command{
	Use:   "fills",
	Short: "List recent order fills",
	RunE:  runFills,
}

func init() {
	rootCmd.AddCommand(fillsCmd)
	fillsCmd.Flags().StringVarP(&fillsTicker, "ticker", "t", "", "Limit fills to one market ticker")
}

func runFills(cmd *cobra.Command, args []string) error {
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

	fills, err := client.GetFills(ctx, fillsTicker)
	if err != nil {
		return fmt.Errorf("get fills: %w", err)
	}

	if len(fills) == 0 {
		fmt.Println("No fills")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Time", "Ticker", "Action", "Side", "Count", "Yes Price", "Taker")
	for _, fill := range fills {
		table.Append(
			fill.CreatedAt.Format(time.RFC3339),
			fill.Ticker,
			fill.Action,
			fill.Side,
			fmt.Sprintf("%d", fill.Count),
			fmt.Sprintf("%d¢", fill.YesPrice),
			fmt.Sprintf("%v", fill.IsTaker),
		)
	}
	table.Render()
	return nil
}
