package cache

// Metrics records cache manager activity. The method set is a subset
// of what the process metrics registry implements, so one registry
// instance serves every component. Implementations must be safe for
// concurrent use.
type Metrics interface {
	// RecordCacheRequest records one manager operation ("get", "set",
	// "invalidate") and its outcome ("hit", "miss", "ok", "error").
	RecordCacheRequest(operation, outcome string)

	// RecordCacheFallback records that an operation was served by the
	// local store because the distributed backend was unreachable.
	RecordCacheFallback(operation string)

	// RecordCacheEvictions adds entries evicted from the local store
	// (capacity or TTL).
	RecordCacheEvictions(count int)

	// SetCacheEntries records the local store size and its pending
	// subset.
	SetCacheEntries(total, pending int)
}

// NoOpMetrics is a Metrics implementation that discards all
// measurements. Used when metrics collection is disabled.
type NoOpMetrics struct{}

// NewNoOpMetrics creates a no-op metrics recorder.
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

// RecordCacheRequest does nothing.
func (m *NoOpMetrics) RecordCacheRequest(operation, outcome string) {}

// RecordCacheFallback does nothing.
func (m *NoOpMetrics) RecordCacheFallback(operation string) {}

// RecordCacheEvictions does nothing.
func (m *NoOpMetrics) RecordCacheEvictions(count int) {}

// SetCacheEntries does nothing.
func (m *NoOpMetrics) SetCacheEntries(total, pending int) {}
