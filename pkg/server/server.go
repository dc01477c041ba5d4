// Package server provides the HTTP ingest and admin server for the engine.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"aegis-hq/sentinel/pkg/config"
	"aegis-hq/sentinel/pkg/controller"
	"aegis-hq/sentinel/pkg/evidence/ledger"
	"aegis-hq/sentinel/pkg/incident"
	"aegis-hq/sentinel/pkg/policy/bundle"
	"aegis-hq/sentinel/pkg/remediation"
)

// Deps bundles the components the server exposes over HTTP.
type Deps struct {
	Controller *controller.Controller
	Tracker    *incident.Tracker
	Ledger     *ledger.Ledger
	Registry   *remediation.Registry
	Dispatcher *remediation.Dispatcher
	Store      *bundle.Store

	// Watcher, if set, backs the bundle reload endpoint.
	Watcher *bundle.DeliveryWatcher

	// Metrics, if set, is mounted at /metrics.
	Metrics http.Handler
}

// Server is the HTTP ingest and admin server.
type Server struct {
	config       *config.ServerConfig
	deps         *Deps
	httpServer   *http.Server
	logger       *slog.Logger
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a new server.
func NewServer(cfg *config.ServerConfig, deps *Deps) *Server {
	return &Server{
		config: cfg,
		deps:   deps,
		logger: slog.Default().With("component", "server"),
	}
}

// Start starts the HTTP server and blocks until the context is cancelled or
// the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/events", s.handleEvent)
	mux.HandleFunc("GET /v1/incidents", s.handleListIncidents)
	mux.HandleFunc("GET /v1/incidents/{key}", s.handleGetIncident)
	mux.HandleFunc("POST /v1/incidents/{key}/ack", s.handleAckIncident)
	mux.HandleFunc("GET /v1/bundle", s.handleBundleInfo)
	mux.HandleFunc("POST /v1/bundle/reload", s.handleBundleReload)
	mux.HandleFunc("GET /v1/ledger/records", s.handleLedgerQuery)
	mux.HandleFunc("POST /v1/ledger/verify", s.handleLedgerVerify)
	mux.HandleFunc("GET /v1/ledger/export", s.handleLedgerExport)
	mux.HandleFunc("GET /v1/actions", s.handleActionCatalog)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics)
	}

	var handler http.Handler = mux
	handler = s.loggingMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	return handler
}
