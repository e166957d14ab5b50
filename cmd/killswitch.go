package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantfold/kalshi-arb/internal/app"
)

var killswitchCmd = &cobra.Command{
	Use:   "killswitch on|off",
	Short: "Flip the trading kill switch",
	Long: `Flips the persisted kill switch. A running engine picks the change
up on its next portfolio sync; until then detection continues but no
trades are placed.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runKillswitch,
}

func init() {
	rootCmd.AddCommand(killswitchCmd)
}

func runKillswitch(cmd *cobra.Command, args []string) error {
	var on bool
	switch args[0] {
	case "on":
		on = true
	case "off":
		on = false
	default:
		return fmt.Errorf("argument must be on or off, got %q", args[0])
	}

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

	if err := app.KillSwitch(context.Background(), store, on); err != nil {
		return fmt.Errorf("flip kill switch: %w", err)
	}

	if on {
		fmt.Println("Kill switch ON: trading halted")
	} else {
		fmt.Println("Kill switch OFF: trading enabled")
	}
	return nil
}
