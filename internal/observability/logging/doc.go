// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for common logging patterns used throughout the application.
//
// Key features:
//   - JSON output for log shippers, colorized dev output via LOG_FORMAT=dev
//   - Dependency tagging for correlating retry, breaker and probe lines
//   - Context-aware logging
//   - Configurable log levels
//
// Example usage:
//
//	import "oddsline-core/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("daemon started", slog.String("version", "1.0"))
//	}
//
//	func probe(logger *slog.Logger) {
//	    logger = logging.WithDependency(logger, "sports_api")
//	    logger.Info("probing dependency")
//	}
package logging
