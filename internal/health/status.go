// Package health probes the process's dependencies on a schedule and
// publishes point-in-time status snapshots. Probes run through the
// same retry executor and circuit breakers as real traffic, so the
// reported status reflects what callers actually experience.
package health

import (
	"encoding/json"
	"time"
)

// Status is the health classification of one dependency or of the
// process overall.
type Status int

const (
	// StatusHealthy means the probe succeeded within its latency budget
	// and the breaker is closed.
	StatusHealthy Status = iota

	// StatusDegraded means the dependency answers but not comfortably:
	// the probe exceeded its latency budget, or the breaker is testing
	// recovery (half-open).
	StatusDegraded

	// StatusUnhealthy means the probe failed or the breaker is open.
	StatusUnhealthy
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its string form so health payloads
// stay readable for operators.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// worse returns the more severe of two statuses.
func worse(a, b Status) Status {
	if b > a {
		return b
	}
	return a
}

// DependencyHealth is the probe result for one dependency.
type DependencyHealth struct {
	// Status is the derived classification (see Monitor docs for the
	// derivation order).
	Status Status `json:"status"`

	// Latency is the wall-clock duration of the probe, including any
	// short-circuit rejection.
	Latency time.Duration `json:"-"`

	// LastError carries the probe's error text, empty on success.
	LastError string `json:"last_error,omitempty"`

	// CheckedAt is when the probe completed.
	CheckedAt time.Time `json:"checked_at"`
}

// MarshalJSON adds a millisecond latency field; a raw time.Duration
// would serialize as nanoseconds, which no operator wants to read.
func (d DependencyHealth) MarshalJSON() ([]byte, error) {
	type alias DependencyHealth
	return json.Marshal(struct {
		alias
		LatencyMS float64 `json:"latency_ms"`
	}{
		alias:     alias(d),
		LatencyMS: float64(d.Latency) / float64(time.Millisecond),
	})
}

// Snapshot is one completed probe cycle. Snapshots are immutable after
// publication; readers must not modify them.
type Snapshot struct {
	// CycleID uniquely identifies the cycle for log/trace correlation.
	CycleID string `json:"cycle_id"`

	// CheckedAt is when the cycle completed.
	CheckedAt time.Time `json:"checked_at"`

	// Overall is the worst status across all dependencies.
	Overall Status `json:"overall"`

	// Dependencies holds per-dependency results keyed by name.
	Dependencies map[string]DependencyHealth `json:"dependencies"`
}
