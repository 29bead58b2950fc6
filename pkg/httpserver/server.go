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

	"github.com/quietridge/boxmaker/internal/discovery"
	"github.com/quietridge/boxmaker/internal/state"
	"github.com/quietridge/boxmaker/pkg/healthprobe"
)

// Server provides the bot's dashboard HTTP API alongside metrics/health.
type Server struct {
	server        *http.Server
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
}

// Config holds server configuration.
type Config struct {
	Port             string
	Logger           *zap.Logger
	HealthChecker    *healthprobe.HealthChecker
	StateManager     *state.Manager
	DiscoveryService *discovery.Service
}

// New creates a new HTTP server exposing the dashboard API, grounded on the
// original bot's DashboardAPI (stats/fills/positions/markets), built the
// way the teacher's chi-router server is, minus CORS (dropped per the
// supplemented-features decision — no browser dashboard ships with this repo).
func New(cfg *Config) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.HealthChecker.Health())
	r.Get("/ready", cfg.HealthChecker.Ready())

	if cfg.StateManager != nil && cfg.DiscoveryService != nil {
		dash := NewDashboardHandler(cfg.StateManager, cfg.DiscoveryService, cfg.Logger)
		r.Get("/api/stats", dash.HandleStats)
		r.Get("/api/fills", dash.HandleFills)
		r.Get("/api/positions", dash.HandlePositions)
		r.Get("/api/markets", dash.HandleMarkets)
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
