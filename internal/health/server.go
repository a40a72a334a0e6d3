package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"oddsline-core/internal/observability/tracing"
)

// Server is the HTTP health surface. It answers three questions an
// orchestrator or operator asks, on three routes:
//
//   - GET /health        is the process responsive? (liveness, always 200)
//   - GET /health/ready  can it take traffic? (200 once ready, 503 otherwise)
//   - GET /health/deps   how are the backends? (latest monitor snapshot)
//
// The daemon flips readiness on after its first probe cycle and off
// again at shutdown; /health/deps serves whatever snapshot the monitor
// produced last.
type Server struct {
	addr    string
	logger  *slog.Logger
	monitor *Monitor
	isReady *atomic.Bool
	server  *http.Server
}

// statusResponse is the body of the liveness and readiness routes.
type statusResponse struct {
	Status string `json:"status"`
}

// NewServer returns an unstarted health server listening on addr once
// Start is called. The monitor supplies snapshots for /health/deps.
// Readiness starts false; the owner calls SetReady once wiring is done.
func NewServer(addr string, monitor *Monitor, logger *slog.Logger) *Server {
	isReady := &atomic.Bool{}

	return &Server{
		addr:    addr,
		logger:  logger,
		monitor: monitor,
		isReady: isReady,
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully with
// a 5-second drain. It blocks, returning http.ErrServerClosed on a
// clean shutdown and the listener's error otherwise.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      tracing.Middleware(s.Handler()),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("health server starting", slog.String("addr", s.addr))
		if err := s.server.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("health server shutting down")
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("health server shutdown failed", slog.Any("error", err))
			return err
		}
		s.logger.Info("health server stopped")
		return http.ErrServerClosed

	case err := <-errChan:
		if err == http.ErrServerClosed {
			return err
		}
		s.logger.Error("health server failed", slog.Any("error", err))
		return err
	}
}

// Handler returns the route mux without the server lifecycle, for
// embedding in tests or another server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleLiveness)
	mux.HandleFunc("/health/ready", s.handleReadiness)
	mux.HandleFunc("/health/deps", s.handleDependencies)
	return mux
}

// SetReady flips the state behind /health/ready.
func (s *Server) SetReady(ready bool) {
	s.isReady.Store(ready)
	s.logger.Info("health server readiness changed", slog.Bool("ready", ready))
}

// handleLiveness always answers 200 with {"status":"ok"}.
//
// Liveness only says the process is responsive; a process serving
// entirely from fallbacks is still alive. Dependency trouble surfaces
// on /health/deps instead, so an orchestrator never restart-loops a
// process because Redis is down.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(statusResponse{Status: "ok"}); err != nil {
		s.logger.Error("failed to encode liveness response", slog.Any("error", err))
	}
}

// handleReadiness answers 200 while ready and 503 otherwise.
//
// Readiness flips on after startup wiring completes and off again
// during shutdown, so load balancers drain before the listeners close.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.isReady.Load() {
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(statusResponse{Status: "ok"}); err != nil {
			s.logger.Error("failed to encode readiness response", slog.Any("error", err))
		}
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		if err := json.NewEncoder(w).Encode(statusResponse{Status: "not ready"}); err != nil {
			s.logger.Error("failed to encode not ready response", slog.Any("error", err))
		}
	}
}

// handleDependencies handles the /health/deps endpoint. It serves the
// latest snapshot from the monitor: 200 while overall status is
// healthy or degraded, 503 when unhealthy or before the first cycle
// completes. The body always carries the full per-dependency detail.
func (s *Server) handleDependencies(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	snap := s.monitor.Current()
	if snap == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		if err := json.NewEncoder(w).Encode(statusResponse{Status: "no health cycle completed yet"}); err != nil {
			s.logger.Error("failed to encode pending response", slog.Any("error", err))
		}
		return
	}

	if snap.Overall == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.logger.Error("failed to encode dependencies response", slog.Any("error", err))
	}
}
