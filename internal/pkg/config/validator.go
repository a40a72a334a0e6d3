package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidateCronSchedule validates a cron expression using the
// robfig/cron/v3 parser, accepting the same grammar the scheduler
// itself accepts: the standard five-field format plus descriptors.
//
//   - "30 5 * * *" (every day at 5:30)
//   - "*/5 * * * *" (every 5 minutes)
//   - "@every 15s" (fixed interval, the probe cycle default)
//   - "@hourly"
//
// Parameters:
//   - schedule: Cron expression to validate
//
// Returns:
//   - error: nil if valid, descriptive error otherwise
//
// Error messages include details about what went wrong, making them
// actionable for operators fixing configuration issues.
//
// Validation tool: https://crontab.guru/
func ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("invalid cron schedule: cannot be empty")
	}

	parser := cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	_, err := parser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", schedule, err)
	}

	return nil
}

// ValidateDuration validates that a duration is within a specified
// range, both bounds inclusive.
//
// Parameters:
//   - duration: Duration value to validate
//   - min: Minimum allowed duration (inclusive)
//   - max: Maximum allowed duration (inclusive)
//
// Returns:
//   - error: nil if valid, descriptive error otherwise
//
// Error messages include the actual value and the valid range,
// helping operators understand the limits.
//
// Example:
//
//	// Validate an attempt timeout is between 100ms and 1 minute
//	err := ValidateDuration(timeout, 100*time.Millisecond, time.Minute)
func ValidateDuration(duration, min, max time.Duration) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%v) cannot be greater than max (%v)", min, max)
	}

	if duration < min {
		return fmt.Errorf("duration %v is below minimum %v", duration, min)
	}

	if duration > max {
		return fmt.Errorf("duration %v exceeds maximum %v", duration, max)
	}

	return nil
}

// ValidateIntRange validates that an integer value is within a
// specified range, both bounds inclusive.
//
// Parameters:
//   - value: Integer value to validate
//   - min: Minimum allowed value (inclusive)
//   - max: Maximum allowed value (inclusive)
//
// Returns:
//   - error: nil if valid, descriptive error otherwise
//
// Example:
//
//	// Validate a cache bound is between 1 and 10 million entries
//	err := ValidateIntRange(maxEntries, 1, 10_000_000)
//
// Use cases:
//   - Cache entry bounds
//   - Breaker failure thresholds
//   - Retry attempt counts
//   - Port numbers
func ValidateIntRange(value, min, max int) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%d) cannot be greater than max (%d)", min, max)
	}

	if value < min {
		return fmt.Errorf("value %d is below minimum %d", value, min)
	}

	if value > max {
		return fmt.Errorf("value %d exceeds maximum %d", value, max)
	}

	return nil
}

// ValidatePositiveDuration validates that a duration is strictly
// positive. Timeouts, delays, intervals and TTLs all require one.
//
// Parameters:
//   - duration: Duration value to validate
//
// Returns:
//   - error: nil if positive, descriptive error otherwise
//
// Example:
//
//	err := ValidatePositiveDuration(cfg.Cache.DefaultTTL)
func ValidatePositiveDuration(duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", duration)
	}

	return nil
}
