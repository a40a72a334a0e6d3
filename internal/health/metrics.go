package health

import "time"

// Metrics records health monitor activity. The method set is a subset
// of what the process metrics registry implements. Implementations
// must be safe for concurrent use.
type Metrics interface {
	// RecordDependencyStatus records the latest probe status
	// ("healthy", "degraded", "unhealthy") for a dependency.
	RecordDependencyStatus(dependency, status string)

	// RecordProbeDuration records the latency of one probe.
	RecordProbeDuration(dependency string, duration time.Duration)

	// RecordHealthCycle records one completed probe cycle.
	RecordHealthCycle()
}

// NoOpMetrics is a Metrics implementation that discards all
// measurements. Used when metrics collection is disabled.
type NoOpMetrics struct{}

// NewNoOpMetrics creates a no-op metrics recorder.
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

// RecordDependencyStatus does nothing.
func (m *NoOpMetrics) RecordDependencyStatus(dependency, status string) {}

// RecordProbeDuration does nothing.
func (m *NoOpMetrics) RecordProbeDuration(dependency string, duration time.Duration) {}

// RecordHealthCycle does nothing.
func (m *NoOpMetrics) RecordHealthCycle() {}
