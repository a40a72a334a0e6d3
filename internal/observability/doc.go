// Package observability provides production-grade observability infrastructure
// including structured logging and OpenTelemetry tracing.
//
// This package centralizes observability concerns to enable:
//   - Request tracing across service boundaries
//   - Structured logging with context propagation
//   - Correlation of retry, breaker and probe activity per dependency
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - tracing: OpenTelemetry tracing middleware for the health surface
//
// Prometheus metric collectors live with the code they instrument; the
// shared registry is in pkg/metrics.
//
// Example usage:
//
//	import "oddsline-core/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("daemon started")
//	}
package observability
