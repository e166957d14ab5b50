// Package httpserver exposes the ops surface: Prometheus metrics, health
// probes, and a pair of read-only JSON endpoints for eyeballing the
// engine's state.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/pkg/healthprobe"
	"github.com/quantfold/kalshi-arb/pkg/types"
)

// OpportunityLister is the storage slice behind /api/opportunities.
type OpportunityLister interface {
	ListRecentOpportunities(ctx context.Context, limit int) ([]types.Opportunity, error)
}

// PortfolioSource is the guard slice behind /api/portfolio.
type PortfolioSource interface {
	Summary() types.PortfolioSummary
}

// Server provides HTTP endpoints for metrics, health checks and the
// read-only API.
type Server struct {
	server        *http.Server
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
}

// Config holds server configuration.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker
	Opportunities OpportunityLister
	Portfolio     PortfolioSource
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Routes
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.HealthChecker.Health())
	r.Get("/ready", cfg.HealthChecker.Ready())

	api := newAPIHandler(cfg.Opportunities, cfg.Portfolio, cfg.Logger)
	if cfg.Opportunities != nil {
		r.Get("/api/opportunities", api.handleOpportunities)
	}
	if cfg.Portfolio != nil {
		r.Get("/api/portfolio", api.handlePortfolio)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server:        server,
		logger:        cfg.Logger,
		healthChecker: cfg.HealthChecker,
	}
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}
