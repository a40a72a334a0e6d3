package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Operation is one call against a dependency. Implementations must
// respect ctx cancellation; the executor derives per-attempt deadlines
// from it.
type Operation func(ctx context.Context) error

// ExecutorConfig holds the collaborators for an Executor.
type ExecutorConfig struct {
	// Breakers supplies the per-dependency circuit breakers.
	// Default: a fresh registry with default breaker settings
	Breakers *Registry

	// Metrics records attempts, retries, and short circuits.
	// Default: NoOpMetrics
	Metrics Metrics
}

// Executor runs operations against unreliable dependencies with
// retries, exponential backoff, and circuit breaking. One executor is
// shared by all callers so every code path consults the same breakers.
type Executor struct {
	breakers *Registry
	metrics  Metrics
}

// NewExecutor creates a new executor.
//
// If cfg.Breakers is nil, a registry with default settings is created.
// If cfg.Metrics is nil, it defaults to NoOpMetrics.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Breakers == nil {
		cfg.Breakers = NewRegistry(BreakerConfig{})
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewNoOpMetrics()
	}
	return &Executor{
		breakers: cfg.Breakers,
		metrics:  cfg.Metrics,
	}
}

// Breakers returns the registry backing this executor.
func (e *Executor) Breakers() *Registry {
	return e.breakers
}

// Execute runs op against the named dependency until it succeeds, a
// terminal failure surfaces, or the retry bounds are spent.
//
// Each attempt first consults the dependency's circuit breaker; a
// rejected call returns an Unavailable failure immediately, without
// running op or sleeping. Non-retryable failures (InvalidInput, Fatal)
// are returned with their kind unmodified. Retryable failures are
// retried up to cfg.MaxAttempts with backoff delays, bounded by
// cfg.TotalBudget when set; once exhausted, the last error surfaces
// wrapped in an Unavailable failure.
//
// Cancellation of ctx ends the loop immediately and releases any
// half-open trial slot held by the in-flight attempt.
func (e *Executor) Execute(ctx context.Context, dependency string, cfg RetryConfig, op Operation) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	cb := e.breakers.Get(dependency)
	start := time.Now()
	defer func() {
		e.metrics.RecordOperationDuration(dependency, time.Since(start))
	}()

	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		permit, err := cb.Allow()
		if err != nil {
			e.metrics.RecordShortCircuit(dependency)
			slog.Warn("call rejected by open circuit",
				slog.String("dependency", dependency),
				slog.Int("attempt", attempt))
			return Unavailable(dependency, err)
		}

		attemptErr := e.runAttempt(ctx, cfg, op)
		if attemptErr == nil {
			cb.Success(permit)
			e.metrics.RecordAttempt(dependency, "success")
			if attempt > 1 {
				slog.Info("operation succeeded after retry",
					slog.String("dependency", dependency),
					slog.Int("attempt", attempt))
			}
			return nil
		}

		// Caller is gone: release the permit without a verdict so a
		// half-open trial slot is never leaked.
		if ctx.Err() != nil {
			cb.Abandon(permit)
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}

		kind := KindOf(attemptErr)
		cb.Failure(permit, kind)
		e.metrics.RecordAttempt(dependency, kind.String())
		lastErr = attemptErr

		if !kind.Retryable() {
			slog.Warn("non-retryable error, aborting",
				slog.String("dependency", dependency),
				slog.Int("attempt", attempt),
				slog.String("kind", kind.String()),
				slog.Any("error", attemptErr))
			return attemptErr
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := NextDelay(attempt, kind, cfg)
		if cfg.TotalBudget > 0 && time.Since(start)+delay >= cfg.TotalBudget {
			slog.Warn("retry budget exhausted",
				slog.String("dependency", dependency),
				slog.Int("attempt", attempt),
				slog.Duration("total_budget", cfg.TotalBudget),
				slog.Any("error", attemptErr))
			return Unavailable(dependency,
				fmt.Errorf("retry budget (%v) exhausted after %d attempts: %w", cfg.TotalBudget, attempt, lastErr))
		}

		slog.Warn("operation failed, retrying",
			slog.String("dependency", dependency),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.MaxAttempts),
			slog.String("kind", kind.String()),
			slog.Duration("delay", delay),
			slog.Any("error", attemptErr))
		e.metrics.RecordRetry(dependency)

		// Wait with context cancellation support
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}
	}

	return Unavailable(dependency,
		fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr))
}

// runAttempt executes op once, bounded by cfg.AttemptTimeout when set.
func (e *Executor) runAttempt(ctx context.Context, cfg RetryConfig, op Operation) error {
	if cfg.AttemptTimeout > 0 {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.AttemptTimeout)
		defer cancel()
		return op(attemptCtx)
	}
	return op(ctx)
}

// Do runs a value-returning operation through the executor. It returns
// the zero value of T alongside any error Execute surfaces.
func Do[T any](ctx context.Context, exec *Executor, dependency string, cfg RetryConfig, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := exec.Execute(ctx, dependency, cfg, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
