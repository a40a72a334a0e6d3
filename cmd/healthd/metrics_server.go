package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"oddsline-core/pkg/metrics"
	"oddsline-core/pkg/resilience"
)

// breakerStatus is the JSON shape of one circuit breaker's stats on
// the debug endpoint.
type breakerStatus struct {
	State         string     `json:"state"`
	FailureCount  int        `json:"failure_count"`
	WindowStart   *time.Time `json:"window_start,omitempty"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	OpenedAt      *time.Time `json:"opened_at,omitempty"`
	TrialInFlight bool       `json:"trial_in_flight"`
}

// runMetricsServer serves the Prometheus scrape endpoint and the
// breaker debug surface, blocking until the context is cancelled or
// serving fails.
//
// Endpoints:
//   - GET /metrics - Prometheus exposition of the resilience registry
//   - GET /debug/breakers - per-dependency circuit breaker stats
//   - POST /debug/breakers/reset - force every breaker closed
//
// Graceful shutdown:
//   - When ctx is cancelled the server drains in-flight requests for
//     up to 5 seconds, then returns nil.
func runMetricsServer(ctx context.Context, logger *slog.Logger, registry *metrics.Registry, breakers *resilience.Registry, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/breakers", breakersHandler(breakers))
	mux.HandleFunc("/debug/breakers/reset", resetBreakersHandler(breakers, logger))

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("metrics server starting", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("metrics server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		} else {
			logger.Info("metrics server stopped")
		}
		return nil

	case err := <-errChan:
		return err
	}
}

// breakersHandler serves GET /debug/breakers: the stats of every
// breaker the registry has created, keyed by dependency.
func breakersHandler(breakers *resilience.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := breakers.Stats()

		response := make(map[string]breakerStatus, len(stats))
		for name, s := range stats {
			response[name] = breakerStatus{
				State:         s.State.String(),
				FailureCount:  s.FailureCount,
				WindowStart:   timeOrNil(s.WindowStart),
				LastFailureAt: timeOrNil(s.LastFailureAt),
				OpenedAt:      timeOrNil(s.OpenedAt),
				TrialInFlight: s.TrialInFlight,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// resetBreakersHandler serves POST /debug/breakers/reset. Forcing
// breakers closed against a still-failing dependency just reopens them
// after the next threshold breach, so the reset is safe to expose; it
// is still logged loudly.
func resetBreakersHandler(breakers *resilience.Registry, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		breakers.ResetAll()
		logger.Warn("all circuit breakers reset via debug endpoint",
			slog.String("remote_addr", r.RemoteAddr))
		w.WriteHeader(http.StatusNoContent)
	}
}

// timeOrNil maps the zero time to nil so untouched fields are omitted
// from the JSON instead of rendering as year one.
func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
