package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/internal/circuitbreaker"
	"github.com/quantfold/kalshi-arb/internal/detector"
	"github.com/quantfold/kalshi-arb/internal/exchange"
	"github.com/quantfold/kalshi-arb/internal/execution"
	"github.com/quantfold/kalshi-arb/internal/ingestion"
	"github.com/quantfold/kalshi-arb/internal/markets"
	"github.com/quantfold/kalshi-arb/internal/notify"
	"github.com/quantfold/kalshi-arb/internal/orchestrator"
	"github.com/quantfold/kalshi-arb/internal/portfolio"
	"github.com/quantfold/kalshi-arb/internal/relationship"
	"github.com/quantfold/kalshi-arb/internal/storage"
	"github.com/quantfold/kalshi-arb/pkg/config"
	"github.com/quantfold/kalshi-arb/pkg/healthprobe"
	"github.com/quantfold/kalshi-arb/pkg/httpserver"
)

const (
	oracleFailureThreshold = 5
	oracleCooldown         = 5 * time.Minute
	marketReaderTTL        = 10 * time.Second
	storagePingTimeout     = 2 * time.Second
)

// New assembles the engine from configuration.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	store, err := storage.New(&storage.Config{
		Driver: cfg.Storage.Driver,
		DSN:    cfg.Storage.DSN,
		Logger: logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	client, err := setupExchange(cfg, cfg.Trading.DryRun, logger)
	if err != nil {
		cancel()
		_ = store.Close()
		return nil, err
	}

	reader, err := markets.NewCachedReader(&markets.Config{
		Store:  store,
		TTL:    marketReaderTTL,
		Logger: logger,
	})
	if err != nil {
		cancel()
		_ = store.Close()
		return nil, fmt.Errorf("setup market reader: %w", err)
	}

	notifier := notify.New(&notify.Config{
		WebhookURL:   cfg.Notifier.WebhookURL,
		MaxPerMinute: cfg.Notifier.MaxPerMinute,
		Logger:       logger,
	})

	guard := portfolio.New(&portfolio.Config{
		Store:    store,
		Exchange: client,
		Limits: portfolio.Limits{
			MaxRiskPerTradePct:   cfg.Trading.MaxRiskPerTradePct,
			MaxDailyLoss:         cfg.Trading.MaxDailyLoss,
			MaxOpenPositions:     cfg.Trading.MaxOpenPositions,
			MaxContractsPerTrade: cfg.Trading.MaxContractsPerTrade,
		},
		Notifier: notifier,
		Logger:   logger,
	})

	ingestor := ingestion.New(&ingestion.Config{
		Exchange: client,
		Store:    store,
		Logger:   logger,
	})

	det := detector.New(&detector.Config{
		Store:             store,
		Markets:           reader,
		MinScoreThreshold: cfg.Trading.MinScoreThreshold,
		FeeSafety:         cfg.Trading.FeeSafetyMultiplier,
		Logger:            logger,
	})

	exec := execution.New(&execution.Config{
		Store:    store,
		Exchange: client,
		Guard:    guard,
		DryRun:   cfg.Trading.DryRun,
		Logger:   logger,
	})

	mapper, err := setupMapper(cfg, store, logger)
	if err != nil {
		cancel()
		_ = store.Close()
		return nil, err
	}

	orchCfg := &orchestrator.Config{
		Ingestor: ingestor,
		Detector: det,
		Executor: exec,
		Guard:    guard,
		Store:    store,
		Notifier: notifier,

		IngestInterval:       cfg.Scanning.FullScanInterval(),
		DetectInterval:       cfg.Scanning.RecheckInterval(),
		EventPassInterval:    cfg.Scanning.EventPassInterval(),
		CategoryPassInterval: cfg.Scanning.CategoryPassInterval(),
		CrossPassInterval:    cfg.Scanning.CrossPassInterval(),
		SummaryInterval:      24 * time.Hour,

		DryRun: cfg.Trading.DryRun,
		Logger: logger,
	}
	if mapper != nil {
		orchCfg.Mapper = mapper
	}
	orch, err := orchestrator.New(orchCfg)
	if err != nil {
		cancel()
		_ = store.Close()
		return nil, fmt.Errorf("setup orchestrator: %w", err)
	}

	healthChecker := healthprobe.New()
	healthChecker.Register("storage", func() error {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), storagePingTimeout)
		defer pingCancel()
		_, err := store.GetPortfolioState(pingCtx)
		return err
	})

	httpServer := httpserver.New(&httpserver.Config{
		Port:          cfg.Server.Port,
		Logger:        logger,
		HealthChecker: healthChecker,
		Opportunities: store,
		Portfolio:     guard,
	})

	return &App{
		cfg:           cfg,
		logger:        logger,
		store:         store,
		exchange:      client,
		reader:        reader,
		ingestor:      ingestor,
		mapper:        mapper,
		detector:      det,
		executor:      exec,
		guard:         guard,
		notifier:      notifier,
		orchestrator:  orch,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// setupExchange builds the API client, signed when credentials are
// present. Dry-run mode tolerates missing credentials; live mode does not.
func setupExchange(cfg *config.Config, dryRun bool, logger *zap.Logger) (*exchange.Client, error) {
	signer, err := setupSigner(cfg)
	if err != nil {
		return nil, err
	}
	if signer == nil {
		if !dryRun {
			return nil, fmt.Errorf("live trading requires exchange credentials: %w", cfg.RequireExchangeCredentials())
		}
		logger.Warn("exchange-unauthenticated",
			zap.String("note", "no signing credentials, public endpoints only"))
	}
	return exchange.New(&exchange.Config{
		BaseURL: cfg.Exchange.BaseURL,
		Signer:  signer,
		Logger:  logger,
	}), nil
}

func setupSigner(cfg *config.Config) (*exchange.Signer, error) {
	if cfg.RequireExchangeCredentials() != nil {
		return nil, nil
	}
	if cfg.Exchange.PrivateKeyPEM != "" {
		signer, err := exchange.NewSigner(cfg.Exchange.KeyID, cfg.Exchange.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("setup signer: %w", err)
		}
		return signer, nil
	}
	signer, err := exchange.NewSignerFromFile(cfg.Exchange.KeyID, cfg.Exchange.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("setup signer: %w", err)
	}
	return signer, nil
}

// setupMapper builds relationship discovery when an oracle key is
// configured. Without one the engine still detects and trades whatever
// relationships are already persisted.
func setupMapper(cfg *config.Config, store storage.Store, logger *zap.Logger) (*relationship.Mapper, error) {
	if cfg.Oracle.APIKey == "" {
		logger.Warn("relationship-discovery-disabled",
			zap.String("note", "ANTHROPIC_API_KEY not set, discovery passes will not run"))
		return nil, nil
	}

	oracle, err := relationship.NewOracle(&relationship.OracleConfig{
		BaseURL:   cfg.Oracle.BaseURL,
		APIKey:    cfg.Oracle.APIKey,
		Model:     cfg.Oracle.Model,
		MaxTokens: cfg.Oracle.MaxTokens,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("setup oracle: %w", err)
	}

	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		Name:             "oracle",
		FailureThreshold: oracleFailureThreshold,
		Cooldown:         oracleCooldown,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("setup oracle breaker: %w", err)
	}

	return relationship.New(&relationship.Config{
		Store:   store,
		Oracle:  oracle,
		Breaker: breaker,
		Logger:  logger,
	}), nil
}
