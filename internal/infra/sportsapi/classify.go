package sportsapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"oddsline-core/pkg/resilience"
)

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Classify maps a sports API error onto the failure taxonomy:
//
//   - 408 → Transient, 429 → ResourceExhausted, 503 → Unavailable,
//     other 5xx → Transient
//   - 401/403 → Fatal (a bad credential never fixes itself)
//   - remaining 4xx → InvalidInput
//   - DNS no-such-host and dial refusals → Unavailable
//   - timeouts and dropped connections → Transient
//
// Anything unrecognized is Fatal so an unknown error is never
// silently retried.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var failure *resilience.Failure
	if errors.As(err, &failure) {
		return err
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return classifyStatus(httpErr.StatusCode, err)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return resilience.Transient(DependencyName, err)
	case errors.Is(err, context.Canceled):
		return resilience.Fatal(DependencyName, err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout || dnsErr.IsTemporary {
			return resilience.Transient(DependencyName, err)
		}
		return resilience.Unavailable(DependencyName, err)
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH):
		return resilience.Unavailable(DependencyName, err)
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, syscall.EPIPE):
		return resilience.Transient(DependencyName, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return resilience.Transient(DependencyName, err)
		}
		return resilience.Unavailable(DependencyName, err)
	}

	return resilience.Fatal(DependencyName, err)
}

// classifyStatus maps an HTTP status code onto a failure kind.
func classifyStatus(statusCode int, err error) error {
	switch statusCode {
	case http.StatusRequestTimeout:
		return resilience.Transient(DependencyName, err)
	case http.StatusTooManyRequests:
		return resilience.ResourceExhausted(DependencyName, err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return resilience.Fatal(DependencyName, err)
	case http.StatusServiceUnavailable:
		return resilience.Unavailable(DependencyName, err)
	}

	switch {
	case statusCode >= 500 && statusCode < 600:
		return resilience.Transient(DependencyName, err)
	case statusCode >= 400 && statusCode < 500:
		return resilience.InvalidInput(DependencyName, err)
	default:
		return resilience.Fatal(DependencyName, err)
	}
}
