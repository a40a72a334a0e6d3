package resilience

import (
	"fmt"
	"math"
	"time"
)

// RetryConfig bounds the retry loop for calls against one dependency.
// Values are fixed at construction; the executor never mutates them.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	// Must be at least 1.
	MaxAttempts int

	// BaseDelay is the delay before the first retry. When zero, the
	// failure kind's suggested delay is used instead.
	BaseDelay time.Duration

	// MaxDelay caps the exponentially growing delay between retries.
	MaxDelay time.Duration

	// JitterRatio widens the randomized sleep range: each delay is drawn
	// uniformly from [0, delay*(1+JitterRatio)]. Must be within 0.0 to 1.0.
	// Zero disables jitter.
	JitterRatio float64

	// TotalBudget bounds the wall-clock time spent across all attempts
	// and sleeps. Zero means no overall budget.
	TotalBudget time.Duration

	// AttemptTimeout bounds each individual attempt. Zero means attempts
	// run under the caller's context alone.
	AttemptTimeout time.Duration
}

// DefaultConfig returns a conservative general-purpose configuration.
func DefaultConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		BaseDelay:      100 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		JitterRatio:    0.2,
		TotalBudget:    10 * time.Second,
		AttemptTimeout: 3 * time.Second,
	}
}

// DatabaseConfig returns configuration tuned for PostgreSQL calls.
// Fast retry for transient connection issues.
func DatabaseConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		BaseDelay:      100 * time.Millisecond,
		MaxDelay:       1 * time.Second,
		JitterRatio:    0.2,
		TotalBudget:    5 * time.Second,
		AttemptTimeout: 2 * time.Second,
	}
}

// CacheConfig returns configuration tuned for the remote cache.
// Tight budgets so cache trouble degrades to the local fallback quickly.
func CacheConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		BaseDelay:      50 * time.Millisecond,
		MaxDelay:       500 * time.Millisecond,
		JitterRatio:    0.2,
		TotalBudget:    2 * time.Second,
		AttemptTimeout: 1 * time.Second,
	}
}

// SportsAPIConfig returns configuration tuned for third-party sports
// data APIs. Wider delays and heavier jitter; these providers
// rate-limit aggressively.
func SportsAPIConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    4,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		JitterRatio:    0.5,
		TotalBudget:    30 * time.Second,
		AttemptTimeout: 10 * time.Second,
	}
}

// ProbeConfig returns configuration for health probes: a single short
// attempt so a wedged dependency cannot stall the monitor.
func ProbeConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    1,
		MaxDelay:       time.Second,
		TotalBudget:    2 * time.Second,
		AttemptTimeout: 2 * time.Second,
	}
}

// Validate checks the configuration for values the executor cannot run
// with.
func (c RetryConfig) Validate() error {
	var errors []error

	if c.MaxAttempts < 1 {
		errors = append(errors, fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts))
	}
	if c.BaseDelay < 0 {
		errors = append(errors, fmt.Errorf("base delay must not be negative, got %v", c.BaseDelay))
	}
	if c.MaxDelay < 0 {
		errors = append(errors, fmt.Errorf("max delay must not be negative, got %v", c.MaxDelay))
	}
	if c.MaxDelay > 0 && c.BaseDelay > c.MaxDelay {
		errors = append(errors, fmt.Errorf("base delay %v exceeds max delay %v", c.BaseDelay, c.MaxDelay))
	}
	if math.IsNaN(c.JitterRatio) || c.JitterRatio < 0 || c.JitterRatio > 1.0 {
		errors = append(errors, fmt.Errorf("jitter ratio must be within 0.0 to 1.0, got %v", c.JitterRatio))
	}
	if c.TotalBudget < 0 {
		errors = append(errors, fmt.Errorf("total budget must not be negative, got %v", c.TotalBudget))
	}
	if c.AttemptTimeout < 0 {
		errors = append(errors, fmt.Errorf("attempt timeout must not be negative, got %v", c.AttemptTimeout))
	}

	if len(errors) > 0 {
		return fmt.Errorf("retry config validation failed: %v", errors)
	}
	return nil
}
