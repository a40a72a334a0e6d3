package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testExecutor(defaults BreakerConfig) (*Executor, *Registry, *recordingMetrics) {
	reg := NewRegistry(defaults)
	metrics := newRecordingMetrics()
	exec := NewExecutor(ExecutorConfig{Breakers: reg, Metrics: metrics})
	return exec, reg, metrics
}

func TestNewExecutor_Defaults(t *testing.T) {
	exec := NewExecutor(ExecutorConfig{})

	if exec.Breakers() == nil {
		t.Error("executor should create a registry when none is supplied")
	}
	if exec.metrics == nil {
		t.Error("executor should default to no-op metrics")
	}
}

func TestExecutor_SuccessFirstAttempt(t *testing.T) {
	exec, _, metrics := testExecutor(BreakerConfig{})
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond}

	calls := 0
	err := exec.Execute(context.Background(), "db", cfg, func(ctx context.Context) error {
		calls++
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.attempts["db/success"] != 1 {
		t.Errorf("expected one recorded success, got %d", metrics.attempts["db/success"])
	}
}

func TestExecutor_SuccessAfterRetries(t *testing.T) {
	exec, reg, _ := testExecutor(BreakerConfig{})
	cfg := RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    1 * time.Second,
		JitterRatio: 0,
	}

	calls := 0
	start := time.Now()
	err := exec.Execute(context.Background(), "db", cfg, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Transient("db", errors.New("connection reset"))
		}
		return nil
	})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	// Two deterministic sleeps: 100ms then 200ms.
	if elapsed < 300*time.Millisecond {
		t.Errorf("elapsed = %v, want at least 300ms of backoff", elapsed)
	}
	if got := reg.Get("db").Stats().FailureCount; got != 0 {
		t.Errorf("breaker failure count after final success = %d, want 0", got)
	}
}

func TestExecutor_FatalNotRetried(t *testing.T) {
	exec, _, _ := testExecutor(BreakerConfig{})
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond}

	calls := 0
	fatal := errors.New("schema mismatch")
	err := exec.Execute(context.Background(), "db", cfg, func(ctx context.Context) error {
		calls++
		return fatal
	})

	if calls != 1 {
		t.Errorf("expected exactly 1 call for a fatal error, got %d", calls)
	}
	if !errors.Is(err, fatal) {
		t.Errorf("expected the original error to surface, got %v", err)
	}
	if got := KindOf(err); got != KindFatal {
		t.Errorf("surfaced kind = %v, want %v", got, KindFatal)
	}
}

func TestExecutor_InvalidInputNotRetried(t *testing.T) {
	exec, reg, _ := testExecutor(BreakerConfig{FailureThreshold: 1})
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond}

	calls := 0
	err := exec.Execute(context.Background(), "db", cfg, func(ctx context.Context) error {
		calls++
		return InvalidInput("db", errors.New("malformed key"))
	})

	if calls != 1 {
		t.Errorf("expected exactly 1 call for invalid input, got %d", calls)
	}

	var f *Failure
	if !errors.As(err, &f) || f.Kind != KindInvalidInput {
		t.Errorf("expected invalid input failure to surface unmodified, got %v", err)
	}

	// Invalid input must not have tripped the breaker even at threshold 1.
	if got := reg.Get("db").State(); got != StateClosed {
		t.Errorf("breaker state = %v, want %v", got, StateClosed)
	}
}

func TestExecutor_ExhaustionSurfacesUnavailable(t *testing.T) {
	exec, _, metrics := testExecutor(BreakerConfig{})
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond}

	calls := 0
	inner := errors.New("no healthy upstream")
	err := exec.Execute(context.Background(), "api", cfg, func(ctx context.Context) error {
		calls++
		return Transient("api", inner)
	})

	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if got := KindOf(err); got != KindUnavailable {
		t.Errorf("exhausted retries surfaced kind %v, want %v", got, KindUnavailable)
	}
	if !errors.Is(err, inner) {
		t.Error("expected the last error to stay reachable through the chain")
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.retries["api"] != 2 {
		t.Errorf("expected 2 recorded retries, got %d", metrics.retries["api"])
	}
	if metrics.attempts["api/transient"] != 3 {
		t.Errorf("expected 3 recorded transient attempts, got %d", metrics.attempts["api/transient"])
	}
}

func TestExecutor_ShortCircuitSkipsOperation(t *testing.T) {
	exec, reg, metrics := testExecutor(BreakerConfig{})
	reg.SetConfig("db", BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})
	cfg := RetryConfig{MaxAttempts: 1, BaseDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond}

	// Trip the breaker.
	_ = exec.Execute(context.Background(), "db", cfg, func(ctx context.Context) error {
		return Unavailable("db", errors.New("connection refused"))
	})
	if got := reg.Get("db").State(); got != StateOpen {
		t.Fatalf("breaker state = %v, want %v", got, StateOpen)
	}

	calls := 0
	start := time.Now()
	err := exec.Execute(context.Background(), "db", cfg, func(ctx context.Context) error {
		calls++
		return nil
	})
	elapsed := time.Since(start)

	if calls != 0 {
		t.Errorf("operation ran %d times behind an open circuit, want 0", calls)
	}
	if !errors.Is(err, ErrOpenCircuit) {
		t.Errorf("expected ErrOpenCircuit in the chain, got %v", err)
	}
	if got := KindOf(err); got != KindUnavailable {
		t.Errorf("short circuit surfaced kind %v, want %v", got, KindUnavailable)
	}
	if elapsed > 50*time.Millisecond {
		t.Errorf("short circuit took %v, want an immediate return", elapsed)
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.shortCircuits["db"] != 1 {
		t.Errorf("expected 1 recorded short circuit, got %d", metrics.shortCircuits["db"])
	}
}

func TestExecutor_ContextCanceledDuringAttempt(t *testing.T) {
	exec, _, _ := testExecutor(BreakerConfig{})
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := exec.Execute(ctx, "db", cfg, func(ctx context.Context) error {
		calls++
		cancel()
		return Transient("db", errors.New("interrupted"))
	})

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in the chain, got %v", err)
	}
}

func TestExecutor_ContextCanceledDuringSleep(t *testing.T) {
	exec, _, _ := testExecutor(BreakerConfig{})
	cfg := RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    time.Second,
		JitterRatio: 0,
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	calls := 0
	start := time.Now()
	err := exec.Execute(ctx, "db", cfg, func(ctx context.Context) error {
		calls++
		return Transient("db", errors.New("connection reset"))
	})
	elapsed := time.Since(start)

	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in the chain, got %v", err)
	}
	// The sleep must end with the context, not run its full 500ms.
	if elapsed > 400*time.Millisecond {
		t.Errorf("cancellation took %v, want the sleep to end early", elapsed)
	}
}

func TestExecutor_CancellationReleasesTrialSlot(t *testing.T) {
	clock := NewMockClock(time.Now())
	exec, reg, _ := testExecutor(BreakerConfig{})
	reg.SetConfig("db", BreakerConfig{
		FailureThreshold: 1,
		Cooldown:         10 * time.Second,
		Clock:            clock,
	})
	cfg := RetryConfig{MaxAttempts: 1, MaxDelay: time.Second}

	// Trip the breaker, then let the cooldown pass.
	_ = exec.Execute(context.Background(), "db", cfg, func(ctx context.Context) error {
		return Unavailable("db", errors.New("down"))
	})
	clock.Advance(11 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	err := exec.Execute(ctx, "db", cfg, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	stats := reg.Get("db").Stats()
	if stats.State != StateHalfOpen {
		t.Fatalf("state after abandoned trial = %v, want %v", stats.State, StateHalfOpen)
	}
	if stats.TrialInFlight {
		t.Error("abandoned trial left the half-open slot occupied")
	}

	// The freed slot admits the next caller as a fresh trial.
	err = exec.Execute(context.Background(), "db", cfg, func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("trial after abandon failed: %v", err)
	}
	if got := reg.Get("db").State(); got != StateClosed {
		t.Errorf("state after successful trial = %v, want %v", got, StateClosed)
	}
}

func TestExecutor_TotalBudgetStopsRetries(t *testing.T) {
	exec, _, _ := testExecutor(BreakerConfig{})
	cfg := RetryConfig{
		MaxAttempts: 10,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
		JitterRatio: 0,
		TotalBudget: 150 * time.Millisecond,
	}

	calls := 0
	err := exec.Execute(context.Background(), "api", cfg, func(ctx context.Context) error {
		calls++
		return Transient("api", errors.New("flaky"))
	})

	if calls != 2 {
		t.Errorf("expected 2 calls within the budget, got %d", calls)
	}
	if got := KindOf(err); got != KindUnavailable {
		t.Errorf("budget exhaustion surfaced kind %v, want %v", got, KindUnavailable)
	}
}

func TestExecutor_AttemptTimeoutBoundsEachTry(t *testing.T) {
	exec, _, _ := testExecutor(BreakerConfig{})
	cfg := RetryConfig{
		MaxAttempts:    2,
		BaseDelay:      10 * time.Millisecond,
		MaxDelay:       50 * time.Millisecond,
		JitterRatio:    0,
		AttemptTimeout: 30 * time.Millisecond,
	}

	calls := 0
	err := exec.Execute(context.Background(), "api", cfg, func(ctx context.Context) error {
		calls++
		select {
		case <-time.After(200 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	// Each attempt times out individually and counts as transient.
	if calls != 2 {
		t.Errorf("expected 2 timed-out calls, got %d", calls)
	}
	if got := KindOf(err); got != KindUnavailable {
		t.Errorf("surfaced kind = %v, want %v", got, KindUnavailable)
	}
}

func TestDo_ReturnsValue(t *testing.T) {
	exec, _, _ := testExecutor(BreakerConfig{})
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond}

	calls := 0
	got, err := Do(context.Background(), exec, "db", cfg, func(ctx context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", Transient("db", errors.New("retry me"))
		}
		return "moneyline", nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got != "moneyline" {
		t.Errorf("Do() = %q, want %q", got, "moneyline")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestDo_ZeroValueOnError(t *testing.T) {
	exec, _, _ := testExecutor(BreakerConfig{})
	cfg := RetryConfig{MaxAttempts: 1, MaxDelay: 20 * time.Millisecond}

	got, err := Do(context.Background(), exec, "db", cfg, func(ctx context.Context) (int, error) {
		return 42, Fatal("db", errors.New("boom"))
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if got != 0 {
		t.Errorf("Do() on error = %d, want zero value", got)
	}
}
