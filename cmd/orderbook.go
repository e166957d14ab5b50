package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/quantfold/kalshi-arb/internal/exchange"
)

var orderbookDepth int

var orderbookCmd = &cobra.Command{
	Use:   "orderbook <ticker>",
	Short: "Print the resting orderbook for one market",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrderbook,
}

func init() {
	rootCmd.AddCommand(orderbookCmd)
	orderbookCmd.Flags().IntVarP(&orderbookDepth, "depth", "d", 10, "Levels per side")
}

func runOrderbook(cmd *cobra.Command, args []string) error {
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

	client, err := newClient(cfg, logger, false)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	ticker := args[0]
	book, err := client.GetOrderbook(ctx, ticker, orderbookDepth)
	if err != nil {
		return fmt.Errorf("get orderbook %s: %w", ticker, err)
	}

	fmt.Printf("Orderbook %s (%d YES contracts, %d NO contracts resting)\n\n",
		ticker, exchange.TotalDepth(book.Yes), exchange.TotalDepth(book.No))

	printSide := func(name string, levels []exchange.OrderbookLevel) {
		fmt.Println(name)
		if len(levels) == 0 {
			fmt.Println("  (empty)")
			return
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Price", "Contracts")
		// Best levels come last on the wire; print best first.
		for i := len(levels) - 1; i >= 0; i-- {
			table.Append(fmt.Sprintf("%d¢", levels[i][0]), fmt.Sprintf("%d", levels[i][1]))
		}
		table.Render()
	}

	printSide("YES bids", book.Yes)
	fmt.Println()
	printSide("NO bids", book.No)
	return nil
}
