package health

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"oddsline-core/pkg/resilience"
)

// mockClock is a controllable clock for tests.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock(start time.Time) *mockClock {
	return &mockClock{now: start}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingHealthMetrics captures health metric calls. Probes run
// concurrently, so it is mutex-guarded.
type recordingHealthMetrics struct {
	mu       sync.Mutex
	statuses map[string]string
	probes   map[string]int
	cycles   int
}

func newRecordingHealthMetrics() *recordingHealthMetrics {
	return &recordingHealthMetrics{
		statuses: make(map[string]string),
		probes:   make(map[string]int),
	}
}

func (m *recordingHealthMetrics) RecordDependencyStatus(dependency, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[dependency] = status
}

func (m *recordingHealthMetrics) RecordProbeDuration(dependency string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes[dependency]++
}

func (m *recordingHealthMetrics) RecordHealthCycle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles++
}

func (m *recordingHealthMetrics) statusOf(dependency string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[dependency]
}

func (m *recordingHealthMetrics) cycleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycles
}

func newTestExecutor(threshold int, clock resilience.Clock) *resilience.Executor {
	breakers := resilience.NewRegistry(resilience.BreakerConfig{
		FailureThreshold: threshold,
		Window:           time.Minute,
		Cooldown:         30 * time.Second,
		Clock:            clock,
	})
	return resilience.NewExecutor(resilience.ExecutorConfig{Breakers: breakers})
}

func TestMonitor_CurrentNilBeforeFirstCycle(t *testing.T) {
	monitor := NewMonitor(MonitorConfig{Executor: newTestExecutor(5, nil)})

	if snap := monitor.Current(); snap != nil {
		t.Errorf("Current() = %+v before first cycle, want nil", snap)
	}
}

func TestMonitor_RunCycleAllHealthy(t *testing.T) {
	metrics := newRecordingHealthMetrics()
	monitor := NewMonitor(MonitorConfig{
		Executor: newTestExecutor(5, nil),
		Metrics:  metrics,
	})

	monitor.Register(Check{Name: "db", Probe: func(ctx context.Context) error { return nil }})
	monitor.Register(Check{Name: "cache", Probe: func(ctx context.Context) error { return nil }})

	snap := monitor.RunCycle(context.Background())

	if snap.CycleID == "" {
		t.Error("CycleID should not be empty")
	}
	if snap.CheckedAt.IsZero() {
		t.Error("CheckedAt should be set")
	}
	if snap.Overall != StatusHealthy {
		t.Errorf("Overall = %v, want %v", snap.Overall, StatusHealthy)
	}
	if len(snap.Dependencies) != 2 {
		t.Fatalf("Dependencies = %d entries, want 2", len(snap.Dependencies))
	}
	for name, dep := range snap.Dependencies {
		if dep.Status != StatusHealthy {
			t.Errorf("%s status = %v, want %v", name, dep.Status, StatusHealthy)
		}
		if dep.LastError != "" {
			t.Errorf("%s LastError = %q, want empty", name, dep.LastError)
		}
	}

	if monitor.Current() != snap {
		t.Error("Current() should return the published snapshot")
	}
	if metrics.cycleCount() != 1 {
		t.Errorf("cycles = %d, want 1", metrics.cycleCount())
	}
	if metrics.statusOf("db") != "healthy" {
		t.Errorf("db status metric = %q, want healthy", metrics.statusOf("db"))
	}
}

func TestMonitor_ProbeFailureUnhealthy(t *testing.T) {
	metrics := newRecordingHealthMetrics()
	monitor := NewMonitor(MonitorConfig{
		Executor: newTestExecutor(5, nil),
		Metrics:  metrics,
	})

	monitor.Register(Check{Name: "db", Probe: func(ctx context.Context) error { return nil }})
	monitor.Register(Check{Name: "sports_api", Probe: func(ctx context.Context) error {
		return resilience.Unavailable("sports_api", errors.New("dial tcp: connection refused"))
	}})

	snap := monitor.RunCycle(context.Background())

	if snap.Overall != StatusUnhealthy {
		t.Errorf("Overall = %v, want %v: worst dependency wins", snap.Overall, StatusUnhealthy)
	}
	if got := snap.Dependencies["db"].Status; got != StatusHealthy {
		t.Errorf("db status = %v, want %v", got, StatusHealthy)
	}

	api := snap.Dependencies["sports_api"]
	if api.Status != StatusUnhealthy {
		t.Errorf("sports_api status = %v, want %v", api.Status, StatusUnhealthy)
	}
	if api.LastError == "" {
		t.Error("sports_api LastError should carry the probe error")
	}
	if metrics.statusOf("sports_api") != "unhealthy" {
		t.Errorf("sports_api status metric = %q, want unhealthy", metrics.statusOf("sports_api"))
	}
}

func TestMonitor_OpenBreakerUnhealthyWithoutProbing(t *testing.T) {
	exec := newTestExecutor(1, nil)
	monitor := NewMonitor(MonitorConfig{Executor: exec})

	probeCalls := 0
	monitor.Register(Check{Name: "cache", Probe: func(ctx context.Context) error {
		probeCalls++
		return resilience.Unavailable("cache", errors.New("connection refused"))
	}})

	// First cycle: the probe fails and, at threshold 1, trips the
	// breaker open.
	snap := monitor.RunCycle(context.Background())
	if got := snap.Dependencies["cache"].Status; got != StatusUnhealthy {
		t.Fatalf("first cycle status = %v, want %v", got, StatusUnhealthy)
	}
	if got := exec.Breakers().Get("cache").State(); got != resilience.StateOpen {
		t.Fatalf("breaker state = %v, want %v", got, resilience.StateOpen)
	}
	if probeCalls != 1 {
		t.Fatalf("probeCalls = %d, want 1", probeCalls)
	}

	// Second cycle: the open breaker short-circuits; the probe body
	// never runs, and the dependency stays unhealthy.
	snap = monitor.RunCycle(context.Background())
	if got := snap.Dependencies["cache"].Status; got != StatusUnhealthy {
		t.Errorf("second cycle status = %v, want %v", got, StatusUnhealthy)
	}
	if probeCalls != 1 {
		t.Errorf("probeCalls = %d, want 1: open breaker must not invoke the probe", probeCalls)
	}
}

func TestMonitor_HalfOpenDegraded(t *testing.T) {
	clock := newMockClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	exec := newTestExecutor(1, clock)
	monitor := NewMonitor(MonitorConfig{Executor: exec, Clock: clock})

	monitor.Register(Check{Name: "cache", Probe: func(ctx context.Context) error {
		return resilience.Unavailable("cache", errors.New("connection refused"))
	}})

	// Trip the breaker, then let the cooldown elapse.
	monitor.RunCycle(context.Background())
	clock.Advance(31 * time.Second)

	// Another caller claims the half-open trial slot; the probe's own
	// Allow is rejected while the trial is in flight.
	cb := exec.Breakers().Get("cache")
	if _, err := cb.Allow(); err != nil {
		t.Fatalf("Allow() after cooldown error = %v, want trial permit", err)
	}
	if got := cb.State(); got != resilience.StateHalfOpen {
		t.Fatalf("breaker state = %v, want %v", got, resilience.StateHalfOpen)
	}

	snap := monitor.RunCycle(context.Background())
	if got := snap.Dependencies["cache"].Status; got != StatusDegraded {
		t.Errorf("status during half-open trial = %v, want %v", got, StatusDegraded)
	}
}

func TestMonitor_LatencyOverBudgetDegraded(t *testing.T) {
	clock := newMockClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	monitor := NewMonitor(MonitorConfig{
		Executor: newTestExecutor(5, clock),
		Clock:    clock,
	})

	monitor.Register(Check{
		Name:          "db",
		LatencyBudget: 100 * time.Millisecond,
		Probe: func(ctx context.Context) error {
			clock.Advance(250 * time.Millisecond)
			return nil
		},
	})

	snap := monitor.RunCycle(context.Background())

	dep := snap.Dependencies["db"]
	if dep.Status != StatusDegraded {
		t.Errorf("status = %v, want %v: slow success is degraded", dep.Status, StatusDegraded)
	}
	if dep.LastError != "" {
		t.Errorf("LastError = %q, want empty for a slow success", dep.LastError)
	}
	if dep.Latency < 250*time.Millisecond {
		t.Errorf("Latency = %v, want >= 250ms", dep.Latency)
	}
	if snap.Overall != StatusDegraded {
		t.Errorf("Overall = %v, want %v", snap.Overall, StatusDegraded)
	}
}

func TestMonitor_SnapshotReplacedEachCycle(t *testing.T) {
	healthy := true
	var mu sync.Mutex

	monitor := NewMonitor(MonitorConfig{Executor: newTestExecutor(5, nil)})
	monitor.Register(Check{Name: "db", Probe: func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if healthy {
			return nil
		}
		return resilience.Unavailable("db", errors.New("server closed the connection"))
	}})

	first := monitor.RunCycle(context.Background())
	if first.Overall != StatusHealthy {
		t.Fatalf("first Overall = %v, want %v", first.Overall, StatusHealthy)
	}

	mu.Lock()
	healthy = false
	mu.Unlock()

	second := monitor.RunCycle(context.Background())
	if second.Overall != StatusUnhealthy {
		t.Errorf("second Overall = %v, want %v", second.Overall, StatusUnhealthy)
	}
	if second.CycleID == first.CycleID {
		t.Error("cycle IDs should differ between cycles")
	}
	if monitor.Current() != second {
		t.Error("Current() should return the latest snapshot")
	}
}

func TestMonitor_SnapshotDependencyMap(t *testing.T) {
	monitor := NewMonitor(MonitorConfig{Executor: newTestExecutor(5, nil)})

	monitor.Register(Check{Name: "db", Probe: func(ctx context.Context) error { return nil }})
	monitor.Register(Check{Name: "cache", Probe: func(ctx context.Context) error {
		return resilience.Unavailable("cache", errors.New("connection refused"))
	}})
	monitor.Register(Check{Name: "sports_api", Probe: func(ctx context.Context) error { return nil }})

	snap := monitor.RunCycle(context.Background())

	// Latency and timestamps vary per run; the error text is asserted
	// separately so the diff stays deterministic.
	want := map[string]DependencyHealth{
		"db":         {Status: StatusHealthy},
		"cache":      {Status: StatusUnhealthy},
		"sports_api": {Status: StatusHealthy},
	}
	ignore := cmpopts.IgnoreFields(DependencyHealth{}, "Latency", "CheckedAt", "LastError")
	if diff := cmp.Diff(want, snap.Dependencies, ignore); diff != "" {
		t.Errorf("Dependencies mismatch (-want +got):\n%s", diff)
	}

	if got := snap.Dependencies["cache"].LastError; !strings.Contains(got, "connection refused") {
		t.Errorf("cache LastError = %q, want it to carry the probe error", got)
	}
	if got := snap.Dependencies["db"].LastError; got != "" {
		t.Errorf("db LastError = %q, want empty", got)
	}
}

func TestMonitor_RegisterValidation(t *testing.T) {
	monitor := NewMonitor(MonitorConfig{Executor: newTestExecutor(5, nil)})
	probe := func(ctx context.Context) error { return nil }

	tests := []struct {
		name  string
		check Check
	}{
		{"empty name", Check{Probe: probe}},
		{"nil probe", Check{Name: "db"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("Register() should panic")
				}
			}()
			monitor.Register(tt.check)
		})
	}

	t.Run("duplicate name", func(t *testing.T) {
		monitor.Register(Check{Name: "db", Probe: probe})
		defer func() {
			if recover() == nil {
				t.Error("Register() should panic on duplicate name")
			}
		}()
		monitor.Register(Check{Name: "db", Probe: probe})
	})
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}
