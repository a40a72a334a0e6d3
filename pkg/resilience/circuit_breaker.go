package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// CircuitState represents the current state of the circuit breaker.
type CircuitState int

const (
	// StateClosed indicates the circuit is closed and calls flow through.
	// This is the normal operating state.
	StateClosed CircuitState = iota

	// StateOpen indicates the circuit is open after repeated failures.
	// Calls are rejected immediately until the cooldown elapses, giving
	// the dependency room to recover.
	StateOpen

	// StateHalfOpen indicates the circuit is testing recovery. Exactly
	// one trial call is admitted; all other callers are rejected until
	// the trial resolves.
	StateHalfOpen
)

// String returns a string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpenCircuit is returned by Allow while the circuit is rejecting
// calls.
var ErrOpenCircuit = errors.New("circuit breaker open")

// BreakerConfig holds configuration for a circuit breaker.
type BreakerConfig struct {
	// Name identifies the protected dependency (e.g., "db", "cache").
	// Used in logs and metric labels.
	Name string

	// FailureThreshold is the number of counted failures within Window
	// required to open the circuit.
	// Default: 5
	FailureThreshold int

	// Window is the rolling interval over which failures accumulate.
	// The count restarts once Window has passed since the first counted
	// failure, and on any success.
	// Default: 30 seconds
	Window time.Duration

	// Cooldown is how long an open circuit rejects calls before
	// admitting a half-open trial.
	// Default: 30 seconds
	Cooldown time.Duration

	// Clock provides time abstraction for testing.
	// Default: SystemClock
	Clock Clock

	// Metrics for recording circuit state changes.
	// Default: NoOpMetrics
	Metrics Metrics
}

// Permit is the token for one admitted call. Every permit must be
// resolved by exactly one of Success, Failure, or Abandon on the
// breaker that issued it.
type Permit struct {
	generation uint64
	trial      bool
}

// CircuitBreaker stops calls to a dependency that keeps failing.
//
// It has three states:
//
//   - Closed (normal): calls are admitted; kinds that signal dependency
//     trouble count toward the failure threshold
//   - Open (failing): calls are rejected immediately until the cooldown
//     elapses
//   - Half-Open (testing): a single trial call probes whether the
//     dependency recovered; success closes the circuit, another
//     dependency failure reopens it
//
// Only Transient, ResourceExhausted, and Unavailable failures count
// toward opening; InvalidInput and Fatal say nothing about dependency
// health. State is process-local and mutated only under the breaker's
// own mutex.
type CircuitBreaker struct {
	config BreakerConfig

	mu            sync.Mutex
	state         CircuitState
	generation    uint64
	failureCount  int
	windowStart   time.Time
	lastFailureAt time.Time
	openedAt      time.Time
	trialInFlight bool
}

// NewCircuitBreaker creates a new circuit breaker with the given
// configuration.
//
// If config.FailureThreshold is 0, it defaults to 5.
// If config.Window is 0, it defaults to 30 seconds.
// If config.Cooldown is 0, it defaults to 30 seconds.
// If config.Clock is nil, it defaults to SystemClock.
// If config.Metrics is nil, it defaults to NoOpMetrics.
func NewCircuitBreaker(config BreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.Window <= 0 {
		config.Window = 30 * time.Second
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	if config.Clock == nil {
		config.Clock = &SystemClock{}
	}
	if config.Metrics == nil {
		config.Metrics = NewNoOpMetrics()
	}

	cb := &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}

	// Record initial state
	config.Metrics.RecordCircuitState(config.Name, cb.state.String())

	return cb
}

// Allow asks the breaker to admit one call.
//
// Behavior by state:
//   - Closed: a permit is issued
//   - Open: ErrOpenCircuit until the cooldown has elapsed, then the
//     circuit moves to half-open and the caller receives the one trial
//     permit
//   - Half-Open: ErrOpenCircuit while the trial permit is outstanding
//
// The returned permit must be resolved with Success, Failure, or
// Abandon.
func (cb *CircuitBreaker) Allow() (Permit, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		now := cb.config.Clock.Now()
		if now.Sub(cb.openedAt) < cb.config.Cooldown {
			return Permit{}, ErrOpenCircuit
		}
		cb.transitionLocked(StateHalfOpen, now)
		cb.trialInFlight = true
		return Permit{generation: cb.generation, trial: true}, nil

	case StateHalfOpen:
		if cb.trialInFlight {
			return Permit{}, ErrOpenCircuit
		}
		cb.trialInFlight = true
		return Permit{generation: cb.generation, trial: true}, nil

	default:
		return Permit{generation: cb.generation}, nil
	}
}

// Success reports that the call admitted by p completed.
//
// A trial success closes the circuit. In the closed state a success
// resets the failure count, so only uninterrupted trouble inside one
// window can open the circuit.
func (cb *CircuitBreaker) Success(p Permit) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if p.generation != cb.generation {
		return
	}

	switch cb.state {
	case StateHalfOpen:
		if p.trial {
			cb.transitionLocked(StateClosed, cb.config.Clock.Now())
		}
	case StateClosed:
		cb.failureCount = 0
		cb.windowStart = time.Time{}
	}
}

// Failure reports that the call admitted by p failed with the given
// kind.
//
// Kinds that signal dependency trouble advance the failure count and
// can open the circuit. A failed trial reopens it, except when the
// kind does not trip breakers: the dependency answered, so the circuit
// closes even though the call failed.
func (cb *CircuitBreaker) Failure(p Permit, kind Kind) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if p.generation != cb.generation {
		return
	}

	now := cb.config.Clock.Now()

	if cb.state == StateHalfOpen && p.trial {
		if !kind.TripsBreaker() {
			cb.transitionLocked(StateClosed, now)
			return
		}
		cb.failureCount++
		cb.lastFailureAt = now
		cb.transitionLocked(StateOpen, now)
		return
	}

	if cb.state != StateClosed || !kind.TripsBreaker() {
		return
	}

	if cb.failureCount == 0 || now.Sub(cb.windowStart) > cb.config.Window {
		cb.failureCount = 0
		cb.windowStart = now
	}
	cb.failureCount++
	cb.lastFailureAt = now

	if cb.failureCount >= cb.config.FailureThreshold {
		cb.transitionLocked(StateOpen, now)
	}
}

// Abandon releases p without recording a verdict, for callers whose
// context was canceled mid-call. An abandoned trial frees the
// half-open slot so the next Allow admits a fresh trial.
func (cb *CircuitBreaker) Abandon(p Permit) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if p.generation != cb.generation {
		return
	}
	if cb.state == StateHalfOpen && p.trial {
		cb.trialInFlight = false
	}
}

// transitionLocked moves the breaker to a new state and invalidates
// every outstanding permit. Callers must hold cb.mu.
func (cb *CircuitBreaker) transitionLocked(to CircuitState, now time.Time) {
	from := cb.state
	if from == to {
		return
	}

	cb.state = to
	cb.generation++
	cb.trialInFlight = false

	switch to {
	case StateOpen:
		cb.openedAt = now
	case StateClosed:
		cb.failureCount = 0
		cb.windowStart = time.Time{}
		cb.openedAt = time.Time{}
	}

	cb.config.Metrics.RecordCircuitState(cb.config.Name, to.String())

	// Log circuit breaker state change at WARN level
	slog.Warn("circuit breaker state changed",
		slog.String("dependency", cb.config.Name),
		slog.String("previous_state", from.String()),
		slog.String("new_state", to.String()),
		slog.Int("failure_count", cb.failureCount),
		slog.Duration("cooldown", cb.config.Cooldown),
	)
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset returns the circuit breaker to the closed state and clears its
// counters.
//
// This is a manual administrative action, useful for testing or after
// an operator has confirmed the dependency recovered.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.generation++
	cb.failureCount = 0
	cb.windowStart = time.Time{}
	cb.lastFailureAt = time.Time{}
	cb.openedAt = time.Time{}
	cb.trialInFlight = false

	cb.config.Metrics.RecordCircuitState(cb.config.Name, StateClosed.String())
}

// CircuitStats is a point-in-time snapshot of a circuit breaker.
type CircuitStats struct {
	Name          string
	State         CircuitState
	FailureCount  int
	WindowStart   time.Time
	LastFailureAt time.Time
	OpenedAt      time.Time
	TrialInFlight bool
}

// Stats returns current circuit breaker statistics.
//
// This is useful for monitoring and debugging.
func (cb *CircuitBreaker) Stats() CircuitStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	// Window expiry is otherwise lazy, applied on the next recorded
	// failure. Expire it here too so an idle breaker does not report
	// counts from a window that has already passed.
	failures := cb.failureCount
	if cb.state == StateClosed && failures > 0 &&
		cb.config.Clock.Now().Sub(cb.windowStart) > cb.config.Window {
		failures = 0
	}

	return CircuitStats{
		Name:          cb.config.Name,
		State:         cb.state,
		FailureCount:  failures,
		WindowStart:   cb.windowStart,
		LastFailureAt: cb.lastFailureAt,
		OpenedAt:      cb.openedAt,
		TrialInFlight: cb.trialInFlight,
	}
}
