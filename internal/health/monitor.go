package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"oddsline-core/internal/observability/tracing"
	"oddsline-core/pkg/resilience"
)

// DefaultLatencyBudget is how long a probe may take before a success
// still counts as degraded.
const DefaultLatencyBudget = 500 * time.Millisecond

// Probe is a lightweight representative operation against one
// dependency, e.g. a database ping or a cache PING. It must respect
// ctx and return quickly; the monitor bounds it with the probe retry
// config's attempt timeout.
type Probe func(ctx context.Context) error

// Check registers one dependency with the monitor.
type Check struct {
	// Name is the dependency name, shared with the circuit breaker and
	// metrics labels ("db", "cache", "sports_api"). Required.
	Name string

	// Probe executes the representative operation. Required.
	Probe Probe

	// LatencyBudget is the probe duration above which a success is
	// reported as degraded.
	// Default: DefaultLatencyBudget
	LatencyBudget time.Duration
}

// MonitorConfig holds the collaborators for a Monitor.
type MonitorConfig struct {
	// Executor runs probes with the same breakers as real traffic.
	// Required.
	Executor *resilience.Executor

	// Retry bounds each probe. Probes must not retry extensively, so
	// the default is a single short-timeout attempt.
	// Default: resilience.ProbeConfig()
	Retry resilience.RetryConfig

	// Metrics records probe durations and statuses.
	// Default: NoOpMetrics
	Metrics Metrics

	// Clock provides time operations for testing.
	// Default: SystemClock
	Clock resilience.Clock
}

// Monitor probes registered dependencies and publishes one Snapshot
// per cycle. Cycles run on their own schedule, share no locks with
// request-path code, and publish wholesale, so readers never observe a
// half-updated snapshot.
//
// Status derivation per dependency, in precedence order:
//  1. breaker Open → Unhealthy
//  2. breaker HalfOpen → Degraded
//  3. probe error → Unhealthy
//  4. probe latency over budget → Degraded
//  5. otherwise → Healthy
type Monitor struct {
	exec    *resilience.Executor
	retry   resilience.RetryConfig
	metrics Metrics
	clock   resilience.Clock

	mu     sync.Mutex
	checks []Check

	current atomic.Pointer[Snapshot]
}

// NewMonitor creates a health monitor.
func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = resilience.ProbeConfig()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewNoOpMetrics()
	}
	if cfg.Clock == nil {
		cfg.Clock = &resilience.SystemClock{}
	}
	return &Monitor{
		exec:    cfg.Executor,
		retry:   cfg.Retry,
		metrics: cfg.Metrics,
		clock:   cfg.Clock,
	}
}

// Register adds a dependency to the probe cycle. Registration happens
// at startup wiring, so invalid checks panic rather than fail quietly.
func (m *Monitor) Register(check Check) {
	if check.Name == "" {
		panic("health: check name is required")
	}
	if check.Probe == nil {
		panic(fmt.Sprintf("health: check %q has no probe", check.Name))
	}
	if check.LatencyBudget <= 0 {
		check.LatencyBudget = DefaultLatencyBudget
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.checks {
		if existing.Name == check.Name {
			panic(fmt.Sprintf("health: check %q registered twice", check.Name))
		}
	}
	m.checks = append(m.checks, check)
}

// Current returns the snapshot from the last completed cycle without
// blocking, or nil before the first cycle finishes. The snapshot is
// shared; treat it as read-only.
func (m *Monitor) Current() *Snapshot {
	return m.current.Load()
}

// RunCycle probes every registered dependency concurrently, publishes
// the resulting snapshot, and returns it. Safe to call concurrently
// with Current; concurrent RunCycle calls do not corrupt state, the
// later publication wins.
func (m *Monitor) RunCycle(ctx context.Context) *Snapshot {
	ctx, span := tracing.GetTracer().Start(ctx, "health.RunCycle")
	defer span.End()

	cycleID := uuid.New().String()

	m.mu.Lock()
	checks := make([]Check, len(m.checks))
	copy(checks, m.checks)
	m.mu.Unlock()

	results := make([]DependencyHealth, len(checks))

	g, gctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		i, check := i, check
		g.Go(func() error {
			results[i] = m.probeOne(gctx, check)
			return nil
		})
	}
	// Probes record their own failures in the results; the group only
	// synchronizes completion.
	_ = g.Wait()

	snap := &Snapshot{
		CycleID:      cycleID,
		CheckedAt:    m.clock.Now(),
		Overall:      StatusHealthy,
		Dependencies: make(map[string]DependencyHealth, len(checks)),
	}
	for i, check := range checks {
		snap.Dependencies[check.Name] = results[i]
		snap.Overall = worse(snap.Overall, results[i].Status)
	}

	prev := m.current.Swap(snap)
	m.metrics.RecordHealthCycle()

	span.SetAttributes(
		attribute.String("health.cycle_id", cycleID),
		attribute.String("health.overall", snap.Overall.String()),
	)

	// Log transitions, not steady state, so a flapping dependency is
	// visible without drowning the log at every interval.
	if prev == nil || prev.Overall != snap.Overall {
		logFn := slog.Info
		if snap.Overall != StatusHealthy {
			logFn = slog.Warn
		}
		logFn("overall health changed",
			slog.String("cycle_id", cycleID),
			slog.String("overall", snap.Overall.String()),
			slog.Int("dependencies", len(snap.Dependencies)))
	}

	return snap
}

// probeOne runs a single dependency's probe through the executor and
// derives its status.
func (m *Monitor) probeOne(ctx context.Context, check Check) DependencyHealth {
	start := m.clock.Now()
	err := m.exec.Execute(ctx, check.Name, m.retry, func(ctx context.Context) error {
		return check.Probe(ctx)
	})
	latency := m.clock.Now().Sub(start)

	m.metrics.RecordProbeDuration(check.Name, latency)

	var status Status
	state := m.exec.Breakers().Get(check.Name).State()
	switch {
	case state == resilience.StateOpen:
		status = StatusUnhealthy
	case state == resilience.StateHalfOpen:
		status = StatusDegraded
	case err != nil:
		status = StatusUnhealthy
	case latency > check.LatencyBudget:
		status = StatusDegraded
	default:
		status = StatusHealthy
	}

	m.metrics.RecordDependencyStatus(check.Name, status.String())

	if status != StatusHealthy {
		slog.Warn("dependency probe degraded",
			slog.String("dependency", check.Name),
			slog.String("status", status.String()),
			slog.String("breaker_state", state.String()),
			slog.Duration("latency", latency),
			slog.Any("error", err))
	}

	result := DependencyHealth{
		Status:    status,
		Latency:   latency,
		CheckedAt: m.clock.Now(),
	}
	if err != nil {
		result.LastError = err.Error()
	}
	return result
}
