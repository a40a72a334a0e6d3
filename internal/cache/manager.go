package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"oddsline-core/internal/observability/tracing"
	"oddsline-core/pkg/resilience"
)

// DependencyName is the circuit breaker / metrics label for the
// distributed cache backend.
const DependencyName = "cache"

// GetResult is the outcome of a cache read. Found reports whether a
// value existed; Fallback reports that the value (or the miss) came
// from the local store because the distributed backend was
// unreachable. Fallback values may be stale.
type GetResult struct {
	Value    []byte
	Found    bool
	Fallback bool
}

// Stats is a point-in-time view of the local fallback store.
type Stats struct {
	// Entries is the number of live local entries.
	Entries int
	// Pending is how many of them were written while the distributed
	// backend was unreachable.
	Pending int
}

// ManagerConfig holds the collaborators for a Manager.
type ManagerConfig struct {
	// Remote is the distributed cache backend. Required.
	Remote RemoteStore

	// Executor runs remote calls with retries and circuit breaking.
	// Required; it must be the executor shared with the rest of the
	// process so the "cache" breaker reflects all traffic.
	Executor *resilience.Executor

	// Retry bounds remote attempts.
	// Default: resilience.CacheConfig()
	Retry resilience.RetryConfig

	// Local configures the fallback store.
	Local LocalStoreConfig

	// Metrics records requests, fallbacks, and store size.
	// Default: NoOpMetrics
	Metrics Metrics
}

// Manager fronts the distributed cache with retry, circuit breaking,
// and a bounded local fallback.
//
// Every remote call runs through the executor against the "cache"
// dependency. When the backend is unreachable after exhausted retries
// (or the breaker short-circuits), reads consult the local store and
// writes land there marked pending; the caller sees a Fallback flag
// and a metric increments, never an error. Once the backend recovers,
// traffic goes directly to it again; pending local entries are not
// reconciled, they expire by TTL.
//
// The distributed backend is authoritative whenever it is reachable: a
// remote hit or miss is final, and a successful remote write drops any
// shadowing local entry.
type Manager struct {
	remote  RemoteStore
	local   *LocalStore
	exec    *resilience.Executor
	retry   resilience.RetryConfig
	metrics Metrics
}

// NewManager creates a cache manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = resilience.CacheConfig()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewNoOpMetrics()
	}
	return &Manager{
		remote:  cfg.Remote,
		local:   NewLocalStore(cfg.Local),
		exec:    cfg.Executor,
		retry:   cfg.Retry,
		metrics: cfg.Metrics,
	}
}

// Get reads key from the distributed backend, falling back to the
// local store only when the backend is unreachable. A remote miss is
// authoritative: it never consults the local store.
//
// Non-retryable failures (invalid input, fatal) surface unchanged.
func (m *Manager) Get(ctx context.Context, key string) (GetResult, error) {
	ctx, span := tracing.GetTracer().Start(ctx, "cache.Get")
	defer span.End()

	var (
		value []byte
		found bool
	)
	err := m.exec.Execute(ctx, DependencyName, m.retry, func(ctx context.Context) error {
		v, err := m.remote.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			value, found = nil, false
			return nil
		}
		if err != nil {
			return err
		}
		value, found = v, true
		return nil
	})

	if err == nil {
		outcome := "miss"
		if found {
			outcome = "hit"
		}
		m.metrics.RecordCacheRequest("get", outcome)
		span.SetAttributes(
			attribute.Bool("cache.found", found),
			attribute.Bool("cache.fallback", false),
		)
		return GetResult{Value: value, Found: found}, nil
	}

	if resilience.KindOf(err) != resilience.KindUnavailable {
		m.metrics.RecordCacheRequest("get", "error")
		return GetResult{}, err
	}

	localValue, localFound := m.local.Get(key)
	m.metrics.RecordCacheFallback("get")
	outcome := "miss"
	if localFound {
		outcome = "hit"
	}
	m.metrics.RecordCacheRequest("get", outcome)
	span.SetAttributes(
		attribute.Bool("cache.found", localFound),
		attribute.Bool("cache.fallback", true),
	)

	slog.Warn("cache backend unreachable, served from local store",
		slog.String("operation", "get"),
		slog.Bool("found", localFound))

	return GetResult{Value: localValue, Found: localFound, Fallback: true}, nil
}

// Set writes key to the distributed backend. When the backend is
// unreachable, the value lands in the local store marked pending and
// the call still succeeds; the entry is never written back, it expires
// by TTL.
func (m *Manager) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span := tracing.GetTracer().Start(ctx, "cache.Set")
	defer span.End()

	err := m.exec.Execute(ctx, DependencyName, m.retry, func(ctx context.Context) error {
		return m.remote.Set(ctx, key, value, ttl)
	})

	if err == nil {
		// The backend now holds the newest value; a local shadow from
		// an earlier outage would serve stale data on the next
		// fallback.
		m.local.Delete(key)
		m.metrics.RecordCacheRequest("set", "ok")
		m.publishStoreSize()
		span.SetAttributes(attribute.Bool("cache.fallback", false))
		return nil
	}

	if resilience.KindOf(err) != resilience.KindUnavailable {
		m.metrics.RecordCacheRequest("set", "error")
		return err
	}

	evicted := m.local.Set(key, value, ttl, true)
	if evicted > 0 {
		m.metrics.RecordCacheEvictions(evicted)
	}
	m.metrics.RecordCacheFallback("set")
	m.metrics.RecordCacheRequest("set", "ok")
	m.publishStoreSize()
	span.SetAttributes(attribute.Bool("cache.fallback", true))

	slog.Warn("cache backend unreachable, wrote to local store",
		slog.String("operation", "set"),
		slog.Int("evicted", evicted))

	return nil
}

// Invalidate removes key from the distributed backend. When the
// backend is unreachable, the local entry is removed instead so a
// later fallback read cannot resurrect the invalidated value.
func (m *Manager) Invalidate(ctx context.Context, key string) error {
	ctx, span := tracing.GetTracer().Start(ctx, "cache.Invalidate")
	defer span.End()

	err := m.exec.Execute(ctx, DependencyName, m.retry, func(ctx context.Context) error {
		return m.remote.Delete(ctx, key)
	})

	if err == nil {
		m.local.Delete(key)
		m.metrics.RecordCacheRequest("invalidate", "ok")
		m.publishStoreSize()
		span.SetAttributes(attribute.Bool("cache.fallback", false))
		return nil
	}

	if resilience.KindOf(err) != resilience.KindUnavailable {
		m.metrics.RecordCacheRequest("invalidate", "error")
		return err
	}

	m.local.Delete(key)
	m.metrics.RecordCacheFallback("invalidate")
	m.metrics.RecordCacheRequest("invalidate", "ok")
	m.publishStoreSize()
	span.SetAttributes(attribute.Bool("cache.fallback", true))

	slog.Warn("cache backend unreachable, invalidated local store only",
		slog.String("operation", "invalidate"))

	return nil
}

// SweepExpired removes expired entries from the local store and
// returns how many were removed. Run it on a schedule so entries that
// are never read again still get reclaimed.
func (m *Manager) SweepExpired(ctx context.Context) int {
	_, span := tracing.GetTracer().Start(ctx, "cache.SweepExpired")
	defer span.End()

	removed := m.local.SweepExpired()
	if removed > 0 {
		m.metrics.RecordCacheEvictions(removed)
		slog.Debug("swept expired local cache entries",
			slog.Int("removed", removed))
	}
	m.publishStoreSize()
	span.SetAttributes(attribute.Int("cache.removed", removed))

	return removed
}

// Stats returns a point-in-time view of the local fallback store.
func (m *Manager) Stats() Stats {
	total, pending := m.local.Counts()
	return Stats{Entries: total, Pending: pending}
}

func (m *Manager) publishStoreSize() {
	total, pending := m.local.Counts()
	m.metrics.SetCacheEntries(total, pending)
}
