package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	marketsEvent string
	marketsLimit int
)

var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "List open markets",
	RunE:  runMarkets,
}

func init() {
	rootCmd.AddCommand(marketsCmd)
	marketsCmd.Flags().StringVarP(&marketsEvent, "event", "e", "", "Limit to one event ticker")
	marketsCmd.Flags().IntVarP(&marketsLimit, "limit", "n", 50, "Maximum rows to print")
}

func runMarkets(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	markets, err := client.GetAllMarkets(ctx, "open")
	if err != nil {
		return fmt.Errorf("get markets: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Ticker", "Event", "Yes Bid", "Yes Ask", "Volume", "OI", "Closes")
	rows := 0
	for _, m := range markets {
		if marketsEvent != "" && !strings.EqualFold(m.EventTicker, marketsEvent) {
			continue
		}
		if rows >= marketsLimit {
			break
		}
		table.Append(
			m.Ticker,
			m.EventTicker,
			fmt.Sprintf("%d¢", m.YesBid),
			fmt.Sprintf("%d¢", m.YesAsk),
			fmt.Sprintf("%d", m.Volume),
			fmt.Sprintf("%d", m.OpenInterest),
			m.CloseTime.Format("2006-01-02"),
		)
		rows++
	}
	table.Render()

	fmt.Printf("\n%d of %d open markets shown\n", rows, len(markets))
	return nil
}
