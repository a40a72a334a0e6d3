package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies a dependency failure by how callers should react to it.
type Kind int

const (
	// KindFatal indicates an unexpected or unclassified condition
	// (auth failure, corrupted state, programming error). Never retried.
	// Fatal is the zero value so an unclassified failure is never
	// treated as retryable.
	KindFatal Kind = iota

	// KindTransient indicates a short-lived fault such as a timeout,
	// a dropped connection, or a serialization conflict. Safe to retry
	// after a short delay.
	KindTransient

	// KindResourceExhausted indicates the dependency is shedding load
	// (rate limit hit, connection pool full). Retryable, but with a
	// longer initial delay.
	KindResourceExhausted

	// KindUnavailable indicates the dependency cannot be reached at all
	// (connection refused, DNS failure, service down).
	KindUnavailable

	// KindInvalidInput indicates the request itself was rejected.
	// Retrying identical input can never succeed.
	KindInvalidInput
)

// String returns the snake_case name of the kind, used in logs and
// metric labels.
func (k Kind) String() string {
	switch k {
	case KindFatal:
		return "fatal"
	case KindTransient:
		return "transient"
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindUnavailable:
		return "unavailable"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Retryable reports whether an operation failing with this kind may be
// attempted again.
func (k Kind) Retryable() bool {
	switch k {
	case KindTransient, KindResourceExhausted, KindUnavailable:
		return true
	default:
		return false
	}
}

// TripsBreaker reports whether failures of this kind count toward
// opening a circuit breaker. Input errors say nothing about dependency
// health and never count.
func (k Kind) TripsBreaker() bool {
	switch k {
	case KindTransient, KindResourceExhausted, KindUnavailable:
		return true
	default:
		return false
	}
}

// BaseDelay returns the suggested delay before the first retry for
// this kind. Zero for kinds that are never retried.
func (k Kind) BaseDelay() time.Duration {
	switch k {
	case KindTransient:
		return 100 * time.Millisecond
	case KindResourceExhausted:
		return 1 * time.Second
	case KindUnavailable:
		return 500 * time.Millisecond
	default:
		return 0
	}
}

// Failure is a classified dependency error. It carries the failure
// kind and the dependency that produced it so the executor and callers
// can react without matching on error strings.
type Failure struct {
	Kind       Kind
	Dependency string
	Err        error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Dependency, f.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", f.Dependency, f.Kind, f.Err)
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Transient wraps err as a transient failure of the named dependency.
func Transient(dependency string, err error) *Failure {
	return &Failure{Kind: KindTransient, Dependency: dependency, Err: err}
}

// ResourceExhausted wraps err as a load-shedding failure of the named
// dependency.
func ResourceExhausted(dependency string, err error) *Failure {
	return &Failure{Kind: KindResourceExhausted, Dependency: dependency, Err: err}
}

// Unavailable wraps err as an unreachable-dependency failure.
func Unavailable(dependency string, err error) *Failure {
	return &Failure{Kind: KindUnavailable, Dependency: dependency, Err: err}
}

// InvalidInput wraps err as a rejected-request failure.
func InvalidInput(dependency string, err error) *Failure {
	return &Failure{Kind: KindInvalidInput, Dependency: dependency, Err: err}
}

// Fatal wraps err as a terminal failure of the named dependency.
func Fatal(dependency string, err error) *Failure {
	return &Failure{Kind: KindFatal, Dependency: dependency, Err: err}
}

// KindOf returns the failure kind of err.
//
// Classified failures report their own kind. A deadline expiry counts
// as transient because a fresh attempt may still answer in time.
// Cancellation and errors no adapter classified are fatal: nothing
// unclassified is ever retried.
func KindOf(err error) Kind {
	if err == nil {
		return KindFatal
	}

	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	return KindFatal
}
