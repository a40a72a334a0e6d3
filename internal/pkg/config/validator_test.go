package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCronSchedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		valid    bool
	}{
		{"probe cycle default", "@every 15s", true},
		{"sweep default", "@every 1m", true},
		{"interval with mixed units", "@every 1h30m", true},
		{"hourly descriptor", "@hourly", true},
		{"daily descriptor", "@daily", true},
		{"five-field daily", "30 5 * * *", true},
		{"every five minutes", "*/5 * * * *", true},
		{"weekday business hours", "0 9-17 * * 1-5", true},
		{"step and list fields", "15,45 */2 * * 1,3,5", true},

		{"empty string", "", false},
		{"too few fields", "0 0", false},
		{"too many fields", "0 0 * * * * *", false},
		{"minute out of range", "60 0 * * *", false},
		{"hour out of range", "0 24 * * *", false},
		{"month out of range", "0 0 * 13 *", false},
		{"random text", "invalid format", false},
		{"interval without duration", "@every", false},
		{"interval with bad duration", "@every fast", false},
		{"unknown descriptor", "@fortnightly", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCronSchedule(tt.schedule)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid cron schedule")
			}
		})
	}
}

func TestValidateCronSchedule_ErrorNamesTheValue(t *testing.T) {
	err := ValidateCronSchedule("invalid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron schedule 'invalid'")
}

func TestValidateDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		min      time.Duration
		max      time.Duration
		valid    bool
	}{
		{"middle of range", 30 * time.Second, 10 * time.Second, time.Minute, true},
		{"exactly min", 10 * time.Second, 10 * time.Second, time.Minute, true},
		{"exactly max", time.Minute, 10 * time.Second, time.Minute, true},
		{"min equals max", 5 * time.Second, 5 * time.Second, 5 * time.Second, true},
		{"zero within range", 0, 0, 10 * time.Second, true},
		{"just below min", 9 * time.Second, 10 * time.Second, time.Minute, false},
		{"just above max", 61 * time.Second, 10 * time.Second, time.Minute, false},
		{"negative below negative min", -30 * time.Second, -10 * time.Second, 10 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDuration(tt.duration, tt.min, tt.max)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateDuration_ErrorMessages(t *testing.T) {
	// Operators fix budgets from the error text alone, so it must name
	// both the rejected value and the violated bound.
	err := ValidateDuration(5*time.Second, 10*time.Second, time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below minimum")
	assert.Contains(t, err.Error(), "5s")
	assert.Contains(t, err.Error(), "10s")

	err = ValidateDuration(2*time.Minute, 10*time.Second, time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum")
	assert.Contains(t, err.Error(), "2m")
	assert.Contains(t, err.Error(), "1m")

	err = ValidateDuration(30*time.Second, time.Minute, 10*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid range")
}

func TestValidateIntRange(t *testing.T) {
	tests := []struct {
		name  string
		value int
		min   int
		max   int
		valid bool
	}{
		{"middle of range", 5, 1, 10, true},
		{"exactly min", 1, 1, 10, true},
		{"exactly max", 10, 1, 10, true},
		{"min equals max", 5, 5, 5, true},
		{"zero in signed range", 0, -10, 10, true},
		{"cache bound upper edge", 10_000_000, 1, 10_000_000, true},
		{"just below min", 0, 1, 10, false},
		{"just above max", 11, 1, 10, false},
		{"negative below zero min", -1, 0, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIntRange(tt.value, tt.min, tt.max)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateIntRange_ErrorMessages(t *testing.T) {
	err := ValidateIntRange(0, 1, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below minimum")

	err = ValidateIntRange(11, 1, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum")
	assert.Contains(t, err.Error(), "11")

	err = ValidateIntRange(5, 10, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid range")
}

func TestValidatePositiveDuration(t *testing.T) {
	valid := []time.Duration{
		time.Nanosecond, time.Millisecond, time.Second, 30 * time.Minute, 24 * time.Hour,
	}
	for _, d := range valid {
		assert.NoError(t, ValidatePositiveDuration(d), "duration %v", d)
	}

	invalid := []time.Duration{0, -time.Second, -time.Hour}
	for _, d := range invalid {
		err := ValidatePositiveDuration(d)
		require.Error(t, err, "duration %v", d)
		assert.Contains(t, err.Error(), "must be positive")
	}
}

func TestValidatePositiveDuration_ErrorNamesTheValue(t *testing.T) {
	err := ValidatePositiveDuration(-30 * time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-30m")
}
