package cache

import (
	"container/list"
	"sync"
	"time"

	"oddsline-core/pkg/resilience"
)

// entry is one fallback-store record. pending marks values written
// while the distributed backend was unreachable; they are never
// reconciled back, they simply expire.
type entry struct {
	key        string
	value      []byte
	expiresAt  time.Time
	insertedAt time.Time
	pending    bool
	elem       *list.Element
}

// LocalStoreConfig holds configuration for LocalStore.
type LocalStoreConfig struct {
	// MaxEntries is the maximum number of entries to keep in memory.
	// When the limit is reached, the oldest-inserted entries are
	// evicted first.
	// Default: 10000
	MaxEntries int

	// Clock provides time operations for testing.
	// Default: SystemClock
	Clock resilience.Clock
}

// DefaultLocalStoreConfig returns the default configuration.
func DefaultLocalStoreConfig() LocalStoreConfig {
	return LocalStoreConfig{
		MaxEntries: 10000,
		Clock:      &resilience.SystemClock{},
	}
}

// LocalStore is a thread-safe, bounded in-process key/value store used
// as the fallback when the distributed cache is unreachable.
//
// Memory stays bounded two ways:
//   - TTL expiry: expired entries are invisible to readers and removed
//     on read or by SweepExpired
//   - Capacity eviction: when MaxEntries is reached, the
//     oldest-inserted entry is evicted to make room
//
// Re-setting an existing key counts as a fresh insertion for eviction
// ordering.
type LocalStore struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	order      *list.List // entry keys, front = oldest inserted
	maxEntries int
	clock      resilience.Clock
}

// NewLocalStore creates a local fallback store with the given
// configuration.
func NewLocalStore(config LocalStoreConfig) *LocalStore {
	if config.MaxEntries <= 0 {
		config.MaxEntries = 10000
	}
	if config.Clock == nil {
		config.Clock = &resilience.SystemClock{}
	}

	return &LocalStore{
		entries:    make(map[string]*entry),
		order:      list.New(),
		maxEntries: config.MaxEntries,
		clock:      config.Clock,
	}
}

// Get returns a copy of the value stored under key. An absent or
// expired entry is a miss; expired entries are removed on the way out.
func (s *LocalStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	if ok && !s.expired(e) {
		value := make([]byte, len(e.value))
		copy(value, e.value)
		s.mu.RUnlock()
		return value, true
	}
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}

	// Expired: re-check under the write lock before removing, another
	// goroutine may have replaced the entry since the read lock was
	// released.
	s.mu.Lock()
	if e, ok := s.entries[key]; ok && s.expired(e) {
		s.removeLocked(e)
	}
	s.mu.Unlock()

	return nil, false
}

// Set stores a copy of value under key with the given ttl (ttl <= 0
// means no expiry). pending marks the entry as written while degraded.
// It returns the number of entries evicted to make room.
func (s *LocalStore) Set(key string, value []byte, ttl time.Duration, pending bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	if e, ok := s.entries[key]; ok {
		// Re-insertion: refresh the payload and move to the newest
		// position so eviction order follows insertion time.
		e.value = stored
		e.expiresAt = expiresAt
		e.insertedAt = now
		e.pending = pending
		s.order.MoveToBack(e.elem)
		return 0
	}

	evicted := 0
	for len(s.entries) >= s.maxEntries {
		oldest := s.order.Front()
		if oldest == nil {
			break
		}
		s.removeLocked(s.entries[oldest.Value.(string)])
		evicted++
	}

	e := &entry{
		key:        key,
		value:      stored,
		expiresAt:  expiresAt,
		insertedAt: now,
		pending:    pending,
	}
	e.elem = s.order.PushBack(key)
	s.entries[key] = e

	return evicted
}

// Delete removes the entry stored under key, if any.
func (s *LocalStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		s.removeLocked(e)
	}
}

// SweepExpired removes every expired entry and returns how many were
// removed. Scheduled periodically so entries that are never read again
// still get reclaimed.
func (s *LocalStore) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, e := range s.entries {
		if s.expired(e) {
			s.removeLocked(e)
			removed++
		}
	}

	return removed
}

// Counts returns the number of live entries and how many of them were
// written while the distributed backend was unreachable.
func (s *LocalStore) Counts() (total, pending int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if s.expired(e) {
			continue
		}
		total++
		if e.pending {
			pending++
		}
	}

	return total, pending
}

// expired reports whether e's TTL has elapsed. Must be called while
// holding at least the read lock.
func (s *LocalStore) expired(e *entry) bool {
	return !e.expiresAt.IsZero() && !s.clock.Now().Before(e.expiresAt)
}

// removeLocked unlinks e from both the map and the insertion-order
// list. Must be called while holding the write lock.
func (s *LocalStore) removeLocked(e *entry) {
	delete(s.entries, e.key)
	s.order.Remove(e.elem)
}
