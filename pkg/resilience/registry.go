package resilience

import "sync"

// Registry hands out one circuit breaker per dependency, creating each
// lazily on first use. All request paths and health probes for a
// dependency must share its breaker, so the registry is the only
// breaker factory in the process.
type Registry struct {
	mu        sync.RWMutex
	breakers  map[string]*CircuitBreaker
	defaults  BreakerConfig
	overrides map[string]BreakerConfig
}

// NewRegistry creates a registry that seeds new breakers from the
// given defaults. The Name field of defaults is ignored; breakers are
// named after the dependency they protect.
func NewRegistry(defaults BreakerConfig) *Registry {
	return &Registry{
		breakers:  make(map[string]*CircuitBreaker),
		defaults:  defaults,
		overrides: make(map[string]BreakerConfig),
	}
}

// SetConfig installs a dependency-specific breaker configuration used
// the first time Get sees the name. It has no effect on a breaker that
// already exists.
func (r *Registry) SetConfig(name string, cfg BreakerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[name] = cfg
}

// Get returns the breaker for the named dependency, creating it on
// first use.
func (r *Registry) Get(name string) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check after acquiring the write lock.
	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	cfg, ok := r.overrides[name]
	if !ok {
		cfg = r.defaults
	}
	cfg.Name = name
	if cfg.Clock == nil {
		cfg.Clock = r.defaults.Clock
	}
	if cfg.Metrics == nil {
		cfg.Metrics = r.defaults.Metrics
	}

	cb = NewCircuitBreaker(cfg)
	r.breakers[name] = cb
	return cb
}

// Names returns the dependencies the registry has created breakers
// for.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	return names
}

// Stats returns a snapshot of every breaker the registry has created.
func (r *Registry) Stats() map[string]CircuitStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]CircuitStats, len(r.breakers))
	for name, cb := range r.breakers {
		stats[name] = cb.Stats()
	}
	return stats
}

// ResetAll returns every breaker to the closed state.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, cb := range r.breakers {
		cb.Reset()
	}
}
