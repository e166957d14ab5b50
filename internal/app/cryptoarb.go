package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/internal/cryptoarb"
	"github.com/quantfold/kalshi-arb/internal/marketcache"
	"github.com/quantfold/kalshi-arb/internal/notify"
	"github.com/quantfold/kalshi-arb/internal/storage"
	"github.com/quantfold/kalshi-arb/pkg/config"
)

// RunCryptoArb assembles and runs the auxiliary YES+NO loop until the
// context is canceled.
func RunCryptoArb(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, err := storage.New(&storage.Config{
		Driver: cfg.Storage.Driver,
		DSN:    cfg.Storage.DSN,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("setup storage: %w", err)
	}
	defer store.Close()

	client, err := setupExchange(cfg, cfg.CryptoArb.DryRun, logger)
	if err != nil {
		return err
	}

	cache := marketcache.New(&marketcache.Config{
		Source:          client,
		Prefixes:        cfg.CryptoArb.EventPrefixes,
		RefreshInterval: cfg.CryptoArb.CacheRefresh(),
		Logger:          logger,
	})
	if err := cache.Start(ctx); err != nil {
		return fmt.Errorf("start market cache: %w", err)
	}
	defer cache.Close()

	notifier := notify.New(&notify.Config{
		WebhookURL:   cfg.Notifier.WebhookURL,
		MaxPerMinute: cfg.Notifier.MaxPerMinute,
		Logger:       logger,
	})

	executor := cryptoarb.NewExecutor(&cryptoarb.ExecutorConfig{
		Store:    store,
		Exchange: client,
		Count:    cfg.CryptoArb.MaxContractsPerLeg,
		DryRun:   cfg.CryptoArb.DryRun,
		Logger:   logger,
	})

	loop := cryptoarb.NewLoop(&cryptoarb.LoopConfig{
		Cache:          cache,
		Executor:       executor,
		Notifier:       notifier,
		MinProfitCents: cfg.CryptoArb.MinProfitCents,
		PollInterval:   cfg.CryptoArb.PollInterval(),
		Logger:         logger,
	})

	mode := "live"
	if cfg.CryptoArb.DryRun {
		mode = "dry-run"
	}
	logger.Info("cryptoarb-starting",
		zap.String("mode", mode),
		zap.Strings("prefixes", cfg.CryptoArb.EventPrefixes),
		zap.Int("min_profit_cents", cfg.CryptoArb.MinProfitCents))
	notifier.Startup(ctx, "cryptoarb "+mode)

	err = loop.Run(ctx)
	notifier.Shutdown(context.Background(), "cryptoarb loop stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
