package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/pkg/types"
)

// Run starts the engine and blocks until a shutdown signal arrives.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("mode", a.Mode()),
		zap.String("storage", a.cfg.Storage.Driver),
		zap.Bool("discovery", a.mapper != nil))

	// Load persisted risk state before the first trade can happen.
	if err := a.guard.Sync(a.ctx); err != nil {
		a.logger.Warn("initial-portfolio-sync-failed", zap.Error(err))
	}

	a.wg.Add(1)
	go a.runHTTPServer()

	a.wg.Add(1)
	go a.runOrchestrator()

	a.healthChecker.SetReady(true)
	a.notifier.Startup(a.ctx, a.Mode())

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.Server.Port))

	return a.waitForShutdown()
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) runOrchestrator() {
	defer a.wg.Done()
	err := a.orchestrator.Run(a.ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("orchestrator-error", zap.Error(err))
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}

// KillSwitch flips the stored kill switch out of band. The running engine
// picks the change up on its next portfolio sync.
func KillSwitch(ctx context.Context, store killSwitchStore, on bool) error {
	state, err := store.GetPortfolioState(ctx)
	if err != nil {
		return err
	}
	if state == nil {
		state = &types.PortfolioState{}
	}
	state.KillSwitch = on
	return store.UpsertPortfolioState(ctx, state)
}

type killSwitchStore interface {
	GetPortfolioState(ctx context.Context) (*types.PortfolioState, error)
	UpsertPortfolioState(ctx context.Context, state *types.PortfolioState) error
}
