// Package app wires the engine together: storage, exchange client,
// relationship mapper, detector, executor, portfolio guard, orchestrator
// and the ops HTTP server.
package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

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

// App is the assembled engine.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	store         storage.Store
	exchange      *exchange.Client
	reader        *markets.CachedReader
	ingestor      *ingestion.Ingestor
	mapper        *relationship.Mapper
	detector      *detector.Detector
	executor      *execution.Executor
	guard         *portfolio.Guard
	notifier      *notify.Notifier
	orchestrator  *orchestrator.Orchestrator
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Mode names the trading mode for logs and notifications.
func (a *App) Mode() string {
	if a.cfg.Trading.DryRun {
		return "dry-run"
	}
	return "live"
}
