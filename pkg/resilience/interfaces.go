package resilience

import "time"

// Metrics defines the interface for recording resilience events.
//
// Implementations can use Prometheus, StatsD, or custom metrics systems.
type Metrics interface {
	// RecordAttempt records one attempt against a dependency and its outcome.
	//
	// Parameters:
	//   - dependency: Name of the dependency (e.g., "db", "cache")
	//   - outcome: "success" or the failure kind string
	RecordAttempt(dependency, outcome string)

	// RecordRetry records that an attempt failed and a retry was scheduled.
	//
	// Parameters:
	//   - dependency: Name of the dependency
	RecordRetry(dependency string)

	// RecordShortCircuit records a call rejected by an open circuit breaker
	// without reaching the dependency.
	//
	// Parameters:
	//   - dependency: Name of the dependency
	RecordShortCircuit(dependency string)

	// RecordCircuitState records the current state of a dependency's breaker.
	//
	// Parameters:
	//   - dependency: Name of the dependency
	//   - state: Circuit state (e.g., "closed", "open", "half-open")
	RecordCircuitState(dependency, state string)

	// RecordOperationDuration records the wall-clock time of one executor
	// operation, including retries and sleeps.
	//
	// Parameters:
	//   - dependency: Name of the dependency
	//   - duration: Total time the operation took
	RecordOperationDuration(dependency string, duration time.Duration)
}

// Clock provides an abstraction for time operations to enable testing.
//
// This interface allows for dependency injection of time functions,
// making it easy to test time-dependent behavior with fake clocks.
type Clock interface {
	// Now returns the current time.
	//
	// Production implementations should return time.Now().
	// Test implementations can return fixed or controlled times.
	Now() time.Time
}

// SystemClock is a Clock implementation that uses the system time.
type SystemClock struct{}

// Now returns the current system time.
func (c *SystemClock) Now() time.Time {
	return time.Now()
}
