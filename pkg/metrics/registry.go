// Package metrics provides the process-wide metrics registry for the
// resilience layer. Counters, gauges, and timers emitted by the retry
// executor, circuit breakers, cache manager, and health monitor land
// here and are exposed both as a Prometheus gatherer and as a pull-style
// sample snapshot.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry records resilience events using Prometheus collectors.
//
// It implements resilience.Metrics plus the cache and health metric
// surfaces, so one instance is shared by every component:
// - attempt, retry and short-circuit counters by dependency
// - circuit breaker state gauges
// - operation and probe duration histograms
// - cache hit/miss/fallback counters and local store gauges
// - dependency health status gauges
//
// Collectors register on a registry owned by this type, not the
// process-global default one.
type Registry struct {
	registry *prometheus.Registry

	// attemptsTotal tracks executor attempts by dependency and outcome.
	// Labels:
	//   - dependency: "db", "cache", "sports_api", ...
	//   - outcome: "success" or the failure kind ("transient", "unavailable", ...)
	attemptsTotal *prometheus.CounterVec

	// retriesTotal counts attempts that failed and were rescheduled.
	retriesTotal *prometheus.CounterVec

	// shortCircuitsTotal counts calls rejected by an open breaker without
	// reaching the dependency.
	shortCircuitsTotal *prometheus.CounterVec

	// circuitState tracks the circuit breaker state per dependency.
	//
	// Values:
	//   - 0: Closed (normal operation)
	//   - 1: Open (rejecting calls)
	//   - 2: Half-Open (testing recovery)
	circuitState *prometheus.GaugeVec

	// operationDuration tracks wall-clock time of whole executor
	// operations, including retries and backoff sleeps.
	operationDuration *prometheus.HistogramVec

	// cacheRequestsTotal tracks cache manager operations.
	// Labels:
	//   - operation: "get", "set", "invalidate"
	//   - outcome: "hit", "miss", "ok", "error"
	cacheRequestsTotal *prometheus.CounterVec

	// cacheFallbacksTotal counts activations of the local fallback store.
	// Every increment means the distributed cache was unreachable and a
	// request was served (or absorbed) locally, the documented staleness
	// flag operators alert on.
	cacheFallbacksTotal *prometheus.CounterVec

	// cacheEvictionsTotal counts local store evictions (capacity + TTL).
	cacheEvictionsTotal prometheus.Counter

	// cacheLocalEntries / cachePendingEntries track local store size and
	// the subset written while degraded (pending reconciliation).
	cacheLocalEntries   prometheus.Gauge
	cachePendingEntries prometheus.Gauge

	// dependencyStatus tracks the latest health snapshot per dependency.
	//
	// Values:
	//   - 0: Healthy
	//   - 1: Degraded
	//   - 2: Unhealthy
	dependencyStatus *prometheus.GaugeVec

	// probeDuration tracks health probe latency per dependency.
	probeDuration *prometheus.HistogramVec

	// healthCyclesTotal counts completed probe cycles.
	healthCyclesTotal prometheus.Counter
}

// NewRegistry creates a Registry with its own Prometheus registry, so
// two instances in one process (a daemon and a test, say) never fight
// over collector registration. Expose it with promhttp.HandlerFor on
// Registry().
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()

	attemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_attempts_total",
			Help: "Total executor attempts by dependency and outcome",
		},
		[]string{"dependency", "outcome"},
	)

	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_retries_total",
			Help: "Total retries scheduled after failed attempts",
		},
		[]string{"dependency"},
	)

	shortCircuitsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_short_circuits_total",
			Help: "Total calls rejected by an open circuit breaker",
		},
		[]string{"dependency"},
	)

	circuitState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "resilience_circuit_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"dependency"},
	)

	operationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resilience_operation_duration_seconds",
			Help:    "Wall-clock duration of executor operations including retries",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"dependency"},
	)

	cacheRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Total cache manager operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	cacheFallbacksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_fallbacks_total",
			Help: "Total local fallback store activations by operation",
		},
		[]string{"operation"},
	)

	cacheEvictionsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_local_evictions_total",
			Help: "Total entries evicted from the local fallback store",
		},
	)

	cacheLocalEntries := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_local_entries",
			Help: "Current number of entries in the local fallback store",
		},
	)

	cachePendingEntries := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_local_pending_entries",
			Help: "Local entries written while the distributed cache was unreachable",
		},
	)

	dependencyStatus := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "health_dependency_status",
			Help: "Latest health status per dependency (0=healthy, 1=degraded, 2=unhealthy)",
		},
		[]string{"dependency"},
	)

	probeDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "health_probe_duration_seconds",
			Help:    "Health probe latency per dependency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"dependency"},
	)

	healthCyclesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "health_cycles_total",
			Help: "Total completed health probe cycles",
		},
	)

	// Register all metrics with the custom registry
	registry.MustRegister(
		attemptsTotal,
		retriesTotal,
		shortCircuitsTotal,
		circuitState,
		operationDuration,
		cacheRequestsTotal,
		cacheFallbacksTotal,
		cacheEvictionsTotal,
		cacheLocalEntries,
		cachePendingEntries,
		dependencyStatus,
		probeDuration,
		healthCyclesTotal,
	)

	return &Registry{
		registry:            registry,
		attemptsTotal:       attemptsTotal,
		retriesTotal:        retriesTotal,
		shortCircuitsTotal:  shortCircuitsTotal,
		circuitState:        circuitState,
		operationDuration:   operationDuration,
		cacheRequestsTotal:  cacheRequestsTotal,
		cacheFallbacksTotal: cacheFallbacksTotal,
		cacheEvictionsTotal: cacheEvictionsTotal,
		cacheLocalEntries:   cacheLocalEntries,
		cachePendingEntries: cachePendingEntries,
		dependencyStatus:    dependencyStatus,
		probeDuration:       probeDuration,
		healthCyclesTotal:   healthCyclesTotal,
	}
}

// Registry returns the underlying Prometheus registry, for serving:
//
//	reg := metrics.NewRegistry()
//	http.Handle("/metrics", promhttp.HandlerFor(reg.Registry(), promhttp.HandlerOpts{}))
//
// It also serves as the Registerer for collaborating packages that
// register their own collectors (e.g. config fallback metrics).
func (r *Registry) Registry() *prometheus.Registry {
	return r.registry
}

// RecordAttempt records one executor attempt and its outcome
// ("success" or a failure kind).
func (r *Registry) RecordAttempt(dependency, outcome string) {
	r.attemptsTotal.WithLabelValues(dependency, outcome).Inc()
}

// RecordRetry records that an attempt failed and a retry was scheduled.
func (r *Registry) RecordRetry(dependency string) {
	r.retriesTotal.WithLabelValues(dependency).Inc()
}

// RecordShortCircuit records a call rejected by an open circuit breaker.
func (r *Registry) RecordShortCircuit(dependency string) {
	r.shortCircuitsTotal.WithLabelValues(dependency).Inc()
}

// RecordCircuitState records the current state of a dependency's
// breaker as a numeric gauge: 0 closed, 1 open, 2 half-open. Alert
// rules fire on the gauge holding 1.
func (r *Registry) RecordCircuitState(dependency, state string) {
	var stateValue float64
	switch state {
	case "closed":
		stateValue = 0
	case "open":
		stateValue = 1
	case "half-open":
		stateValue = 2
	default:
		stateValue = 0
	}
	r.circuitState.WithLabelValues(dependency).Set(stateValue)
}

// RecordOperationDuration records the wall-clock time of one executor
// operation, including retries and sleeps.
func (r *Registry) RecordOperationDuration(dependency string, duration time.Duration) {
	r.operationDuration.WithLabelValues(dependency).Observe(duration.Seconds())
}

// RecordCacheRequest records one cache manager operation and its
// outcome ("hit", "miss", "ok", or "error").
func (r *Registry) RecordCacheRequest(operation, outcome string) {
	r.cacheRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordCacheFallback records that an operation was served by the local
// fallback store because the distributed cache was unreachable.
func (r *Registry) RecordCacheFallback(operation string) {
	r.cacheFallbacksTotal.WithLabelValues(operation).Inc()
}

// RecordCacheEvictions adds evicted-entry counts from the local store.
func (r *Registry) RecordCacheEvictions(count int) {
	r.cacheEvictionsTotal.Add(float64(count))
}

// SetCacheEntries records the local store size and how many of its
// entries were written while degraded.
func (r *Registry) SetCacheEntries(total, pending int) {
	r.cacheLocalEntries.Set(float64(total))
	r.cachePendingEntries.Set(float64(pending))
}

// RecordDependencyStatus records the latest probe status for a
// dependency.
//
// Statuses map to gauge values:
//   - "healthy" = 0
//   - "degraded" = 1
//   - "unhealthy" = 2
func (r *Registry) RecordDependencyStatus(dependency, status string) {
	var statusValue float64
	switch status {
	case "healthy":
		statusValue = 0
	case "degraded":
		statusValue = 1
	case "unhealthy":
		statusValue = 2
	default:
		statusValue = 2
	}
	r.dependencyStatus.WithLabelValues(dependency).Set(statusValue)
}

// RecordProbeDuration records the latency of one health probe.
func (r *Registry) RecordProbeDuration(dependency string, duration time.Duration) {
	r.probeDuration.WithLabelValues(dependency).Observe(duration.Seconds())
}

// RecordHealthCycle records one completed probe cycle.
func (r *Registry) RecordHealthCycle() {
	r.healthCyclesTotal.Inc()
}
