package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// NewLogger creates a new structured logger. Output format is selected
// by the LOG_FORMAT environment variable: "dev" produces colorized
// human-readable output, anything else produces JSON for log shippers.
// The log level is controlled via LOG_LEVEL.
// Supported levels: debug, info, warn, error
// Default level: info
func NewLogger() *slog.Logger {
	if os.Getenv("LOG_FORMAT") == "dev" {
		return NewDevLogger()
	}

	logLevel := parseLevel(os.Getenv("LOG_LEVEL"))

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
		// Add source code location for error and warn levels
		AddSource: logLevel <= slog.LevelWarn,
	})

	return slog.New(handler)
}

// NewDevLogger creates a logger with colorized, human-readable output.
// This is useful for local development and one-shot diagnostic tools.
func NewDevLogger() *slog.Logger {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      parseLevel(os.Getenv("LOG_LEVEL")),
		TimeFormat: time.RFC3339,
	})

	return slog.New(handler)
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithDependency returns a logger tagged with the dependency a call
// targets. Every retry, breaker transition and probe result for one
// backend shares the attribute, so its log lines filter together.
func WithDependency(logger *slog.Logger, dependency string) *slog.Logger {
	if dependency == "" {
		return logger
	}
	return logger.With("dependency", dependency)
}

// WithFields returns a new logger with additional structured fields.
// Fields are provided as key-value pairs.
func WithFields(logger *slog.Logger, fields map[string]interface{}) *slog.Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return logger.With(args...)
}

// FromContext retrieves the logger from the context, or returns the default logger if not found.
// This enables passing loggers through the application via context.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

type contextKey string

const loggerContextKey contextKey = "logger"
