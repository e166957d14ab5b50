package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/internal/exchange"
	"github.com/quantfold/kalshi-arb/internal/storage"
	"github.com/quantfold/kalshi-arb/pkg/config"
)

// loadConfig reads the config file named by --config and applies env
// overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

func openStore(cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	store, err := storage.New(&storage.Config{
		Driver: cfg.Storage.Driver,
		DSN:    cfg.Storage.DSN,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return store, nil
}

// newClient builds the exchange client. Commands that touch portfolio
// endpoints pass needAuth; public market-data commands work unsigned.
func newClient(cfg *config.Config, logger *zap.Logger, needAuth bool) (*exchange.Client, error) {
	var signer *exchange.Signer
	if err := cfg.RequireExchangeCredentials(); err != nil {
		if needAuth {
			return nil, fmt.Errorf("exchange credentials required: %w", err)
		}
	} else if cfg.Exchange.PrivateKeyPEM != "" {
		s, err := exchange.NewSigner(cfg.Exchange.KeyID, cfg.Exchange.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("create signer: %w", err)
		}
		signer = s
	} else {
		s, err := exchange.NewSignerFromFile(cfg.Exchange.KeyID, cfg.Exchange.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("create signer: %w", err)
		}
		signer = s
	}

	return exchange.New(&exchange.Config{
		BaseURL: cfg.Exchange.BaseURL,
		Signer:  signer,
		Logger:  logger,
	}), nil
}
