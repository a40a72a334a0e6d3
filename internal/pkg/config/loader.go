package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ConfigLoadResult is what every loader in this package returns: the
// resolved value, any warnings produced while resolving it, and whether
// the default had to stand in for a rejected override.
//
// Loaders never fail. A value that does not parse or does not validate
// is replaced by the default and recorded as a warning, so a typo in
// one environment variable cannot keep the daemon from starting. The
// caller decides what to do with the warnings; the daemon logs them
// and counts them in the config_fallback metrics.
//
// Fields:
//   - Value: the resolved value; type matches the loader used
//   - Warnings: one message per rejected override
//   - FallbackApplied: true when Value is the default, not the override
//
// Example:
//
//	result := LoadEnvDuration("CACHE_DEFAULT_TTL", 5*time.Minute, ValidatePositiveDuration)
//	ttl := result.Value.(time.Duration)
type ConfigLoadResult struct {
	Value           interface{}
	Warnings        []string
	FallbackApplied bool
}

// fallbackTo builds the degraded result: the default wins and a single
// warning records what was rejected and why.
func fallbackTo(envKey, raw, reason, defaultRepr string, defaultValue interface{}) ConfigLoadResult {
	return ConfigLoadResult{
		Value: defaultValue,
		Warnings: []string{fmt.Sprintf(
			"Invalid %s='%s': %s, falling back to default '%s'",
			envKey, raw, reason, defaultRepr)},
		FallbackApplied: true,
	}
}

// LoadEnvString reads a plain string from an environment variable,
// returning the default when the variable is unset or empty. No
// validation, no warnings; use LoadEnvWithFallback when the value has
// a grammar to enforce.
//
// Example:
//
//	addr := LoadEnvString("HEALTH_ADDR", ":9091")
func LoadEnvString(envKey, defaultValue string) string {
	value := os.Getenv(envKey)
	if value == "" {
		return defaultValue
	}
	return value
}

// LoadEnvWithFallback reads a string from an environment variable and
// runs it through a validator before accepting it.
//
// Resolution order:
//  1. Variable unset or empty: default, no warning.
//  2. Validator rejects the value: default, one warning.
//  3. Otherwise: the environment value.
//
// A nil validator accepts anything, which makes this equivalent to
// LoadEnvString with fallback bookkeeping.
//
// Example:
//
//	result := LoadEnvWithFallback(
//	    "RESILIENCE_PROBE_SCHEDULE", "@every 15s", ValidateCronSchedule)
//	schedule := result.Value.(string)
//
// The probe and sweep schedules load through this function; a schedule
// the cron parser cannot parse must not take down the health daemon,
// it falls back to the compiled-in cycle instead.
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) ConfigLoadResult {
	value := os.Getenv(envKey)
	if value == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	if validator != nil {
		if err := validator(value); err != nil {
			return fallbackTo(envKey, value, err.Error(), defaultValue, defaultValue)
		}
	}

	return ConfigLoadResult{Value: value}
}

// LoadEnvDuration reads a Go duration string ("3s", "90s", "1h30m")
// from an environment variable, parsing with time.ParseDuration and
// then validating.
//
// Resolution order:
//  1. Variable unset or empty: default, no warning.
//  2. time.ParseDuration fails: default, one warning.
//  3. Validator rejects the parsed duration: default, one warning.
//  4. Otherwise: the parsed duration.
//
// Example:
//
//	result := LoadEnvDuration(
//	    "CACHE_DEFAULT_TTL", 5*time.Minute, ValidatePositiveDuration)
//	ttl := result.Value.(time.Duration)
//
// Timeouts, delays and TTLs all resolve through this function, usually
// paired with ValidatePositiveDuration or a ValidateDuration range.
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) ConfigLoadResult {
	valueStr := os.Getenv(envKey)
	if valueStr == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	defaultRepr := fmt.Sprintf("%v", defaultValue)

	parsed, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallbackTo(envKey, valueStr, err.Error(), defaultRepr, defaultValue)
	}

	if validator != nil {
		if err := validator(parsed); err != nil {
			return fallbackTo(envKey, valueStr, err.Error(), defaultRepr, defaultValue)
		}
	}

	return ConfigLoadResult{Value: parsed}
}

// LoadEnvInt reads an integer from an environment variable, parsing
// with fmt.Sscanf and then validating.
//
// Resolution order:
//  1. Variable unset or empty: default, no warning.
//  2. Not an integer: default, one warning.
//  3. Validator rejects the parsed value: default, one warning.
//  4. Otherwise: the parsed integer.
//
// Sscanf semantics apply: surrounding whitespace is skipped and
// parsing stops at the first non-digit, so "10.5" resolves to 10.
//
// Example:
//
//	result := LoadEnvInt("CACHE_MAX_ENTRIES", 10000, func(v int) error {
//	    return ValidateIntRange(v, 1, 10_000_000)
//	})
//	maxEntries := result.Value.(int)
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) ConfigLoadResult {
	valueStr := os.Getenv(envKey)
	if valueStr == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	defaultRepr := strconv.Itoa(defaultValue)

	var parsed int
	if _, err := fmt.Sscanf(valueStr, "%d", &parsed); err != nil {
		return fallbackTo(envKey, valueStr, "invalid integer format", defaultRepr, defaultValue)
	}

	if validator != nil {
		if err := validator(parsed); err != nil {
			return fallbackTo(envKey, valueStr, err.Error(), defaultRepr, defaultValue)
		}
	}

	return ConfigLoadResult{Value: parsed}
}

// LoadEnvBool reads a boolean from an environment variable.
//
// Accepted spellings match strconv.ParseBool: "1", "t", "T", "true",
// "TRUE", "True" and their false counterparts. Anything else ("yes",
// "on", "2") falls back to the default with a warning rather than
// guessing at intent.
//
// Example:
//
//	result := LoadEnvBool("PROBE_VERBOSE", false)
//	verbose := result.Value.(bool)
func LoadEnvBool(envKey string, defaultValue bool) ConfigLoadResult {
	valueStr := os.Getenv(envKey)
	if valueStr == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	var parsed bool
	switch valueStr {
	case "1", "t", "T", "true", "TRUE", "True":
		parsed = true
	case "0", "f", "F", "false", "FALSE", "False":
		parsed = false
	default:
		return fallbackTo(envKey, valueStr,
			"invalid boolean format, expected 'true' or 'false'",
			strconv.FormatBool(defaultValue), defaultValue)
	}

	return ConfigLoadResult{Value: parsed}
}
