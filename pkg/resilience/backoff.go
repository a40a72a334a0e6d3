package resilience

import (
	"math"
	"math/rand"
	"time"
)

// NextDelay computes the pause scheduled after the given failed
// attempt. The delay doubles per attempt starting from the configured
// BaseDelay (or the kind's suggested delay when the config leaves it
// zero), is capped at MaxDelay, and is then widened by full jitter.
//
// attempt values below 1 are treated as 1. The result is never
// negative.
func NextDelay(attempt int, kind Kind, cfg RetryConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	base := cfg.BaseDelay
	if base <= 0 {
		base = kind.BaseDelay()
	}
	if base <= 0 {
		return 0
	}

	delay := base
	for i := 1; i < attempt; i++ {
		if cfg.MaxDelay > 0 && delay >= cfg.MaxDelay {
			break
		}
		next := delay * 2
		if next < delay {
			// Doubling overflowed; MaxDelay caps it below.
			next = time.Duration(math.MaxInt64)
		}
		delay = next
	}
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}

	return jitterDelay(delay, cfg.JitterRatio)
}

// jitterDelay applies full jitter: a uniformly random duration in
// [0, delay*(1+ratio)]. A ratio of zero returns delay unchanged so
// deterministic schedules stay deterministic.
func jitterDelay(delay time.Duration, ratio float64) time.Duration {
	if ratio <= 0 || math.IsNaN(ratio) || delay <= 0 {
		return delay
	}
	if ratio > 1.0 {
		ratio = 1.0
	}

	// #nosec G404 -- Using math/rand is acceptable for jitter calculation.
	// Cryptographic randomness is not required for retry backoff jitter.
	jittered := rand.Float64() * float64(delay) * (1.0 + ratio)
	if jittered >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(jittered)
}
