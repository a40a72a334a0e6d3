package resilience

import "time"

// NoOpMetrics implements the Metrics interface with no-op implementations.
//
// This implementation is useful for:
// - Testing environments where metrics are not needed
// - Disabling metrics collection (e.g., development mode)
// - Benchmarking executor performance without metrics overhead
//
// All methods are no-ops and have minimal performance impact.
type NoOpMetrics struct{}

// NewNoOpMetrics creates a new NoOpMetrics instance.
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

// RecordAttempt is a no-op implementation.
func (m *NoOpMetrics) RecordAttempt(dependency, outcome string) {
	// No-op
}

// RecordRetry is a no-op implementation.
func (m *NoOpMetrics) RecordRetry(dependency string) {
	// No-op
}

// RecordShortCircuit is a no-op implementation.
func (m *NoOpMetrics) RecordShortCircuit(dependency string) {
	// No-op
}

// RecordCircuitState is a no-op implementation.
func (m *NoOpMetrics) RecordCircuitState(dependency, state string) {
	// No-op
}

// RecordOperationDuration is a no-op implementation.
func (m *NoOpMetrics) RecordOperationDuration(dependency string, duration time.Duration) {
	// No-op
}
