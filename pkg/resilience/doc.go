// Package resilience makes calls to unreliable dependencies survive
// transient failures without freezing the caller and without hiding
// breakage from operators. It combines a typed failure taxonomy,
// exponential backoff with jitter, and per-dependency circuit breakers
// behind a single retry executor.
//
// The package supports:
//   - Failure classification into retryable and terminal kinds
//   - Retry with exponential backoff, full jitter, and wall-clock budgets
//   - Per-dependency circuit breakers with a single half-open trial slot
//   - Operational introspection via Stats and manual Reset
//
// Usage Example:
//
//	breakers := resilience.NewRegistry(resilience.BreakerConfig{})
//	exec := resilience.NewExecutor(resilience.ExecutorConfig{Breakers: breakers})
//
//	err := exec.Execute(ctx, "db", resilience.DatabaseConfig(), func(ctx context.Context) error {
//	    return store.UpsertOdds(ctx, lines)
//	})
package resilience
