package cache

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"
)

// mockClock is a controllable clock for tests.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock(start time.Time) *mockClock {
	return &mockClock{now: start}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestDefaultLocalStoreConfig(t *testing.T) {
	config := DefaultLocalStoreConfig()

	if config.MaxEntries != 10000 {
		t.Errorf("MaxEntries = %d, want 10000", config.MaxEntries)
	}
	if config.Clock == nil {
		t.Error("Clock should not be nil")
	}
}

func TestNewLocalStore_AppliesDefaults(t *testing.T) {
	store := NewLocalStore(LocalStoreConfig{})

	if store.maxEntries != 10000 {
		t.Errorf("maxEntries = %d, want 10000", store.maxEntries)
	}
	if store.clock == nil {
		t.Error("clock should not be nil")
	}
}

func TestLocalStore_SetGet(t *testing.T) {
	store := NewLocalStore(DefaultLocalStoreConfig())

	store.Set("k1", []byte("v1"), time.Minute, false)

	value, found := store.Get("k1")
	if !found {
		t.Fatal("Get(k1) should find the entry")
	}
	if !bytes.Equal(value, []byte("v1")) {
		t.Errorf("Get(k1) = %q, want %q", value, "v1")
	}
}

func TestLocalStore_GetMissing(t *testing.T) {
	store := NewLocalStore(DefaultLocalStoreConfig())

	value, found := store.Get("absent")
	if found {
		t.Error("Get(absent) should miss")
	}
	if value != nil {
		t.Errorf("Get(absent) value = %q, want nil", value)
	}
}

func TestLocalStore_TTLExpiry(t *testing.T) {
	clock := newMockClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	store := NewLocalStore(LocalStoreConfig{MaxEntries: 10, Clock: clock})

	store.Set("k1", []byte("v1"), 30*time.Second, false)

	// Still live just before expiry
	clock.Advance(29 * time.Second)
	if _, found := store.Get("k1"); !found {
		t.Fatal("entry should be live before TTL elapses")
	}

	// Expired exactly at the deadline
	clock.Advance(1 * time.Second)
	if _, found := store.Get("k1"); found {
		t.Error("entry should miss once TTL elapses")
	}

	// The expired read removed the entry
	if total, _ := store.Counts(); total != 0 {
		t.Errorf("Counts() total = %d after expired read, want 0", total)
	}
}

func TestLocalStore_NoTTLNeverExpires(t *testing.T) {
	clock := newMockClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	store := NewLocalStore(LocalStoreConfig{MaxEntries: 10, Clock: clock})

	store.Set("k1", []byte("v1"), 0, false)

	clock.Advance(24 * time.Hour)
	if _, found := store.Get("k1"); !found {
		t.Error("entry without TTL should never expire")
	}
}

func TestLocalStore_CapacityEvictsOldestInserted(t *testing.T) {
	store := NewLocalStore(LocalStoreConfig{MaxEntries: 3})

	store.Set("k1", []byte("v1"), 0, false)
	store.Set("k2", []byte("v2"), 0, false)
	store.Set("k3", []byte("v3"), 0, false)

	evicted := store.Set("k4", []byte("v4"), 0, false)
	if evicted != 1 {
		t.Errorf("Set(k4) evicted = %d, want 1", evicted)
	}

	// k1 was the oldest insertion
	if _, found := store.Get("k1"); found {
		t.Error("k1 should have been evicted")
	}
	for _, key := range []string{"k2", "k3", "k4"} {
		if _, found := store.Get(key); !found {
			t.Errorf("%s should still be present", key)
		}
	}
}

func TestLocalStore_ResetRefreshesInsertionOrder(t *testing.T) {
	store := NewLocalStore(LocalStoreConfig{MaxEntries: 3})

	store.Set("k1", []byte("v1"), 0, false)
	store.Set("k2", []byte("v2"), 0, false)
	store.Set("k3", []byte("v3"), 0, false)

	// Re-setting k1 makes it the newest insertion
	if evicted := store.Set("k1", []byte("v1b"), 0, false); evicted != 0 {
		t.Errorf("re-set evicted = %d, want 0", evicted)
	}

	store.Set("k4", []byte("v4"), 0, false)

	// k2 is now the oldest, not k1
	if _, found := store.Get("k2"); found {
		t.Error("k2 should have been evicted")
	}
	value, found := store.Get("k1")
	if !found {
		t.Fatal("k1 should survive after re-set")
	}
	if !bytes.Equal(value, []byte("v1b")) {
		t.Errorf("k1 = %q, want %q", value, "v1b")
	}
}

func TestLocalStore_Delete(t *testing.T) {
	store := NewLocalStore(DefaultLocalStoreConfig())

	store.Set("k1", []byte("v1"), 0, false)
	store.Delete("k1")

	if _, found := store.Get("k1"); found {
		t.Error("k1 should be gone after Delete")
	}

	// Deleting an absent key is a no-op
	store.Delete("absent")
}

func TestLocalStore_SweepExpired(t *testing.T) {
	clock := newMockClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	store := NewLocalStore(LocalStoreConfig{MaxEntries: 10, Clock: clock})

	store.Set("short", []byte("a"), 10*time.Second, false)
	store.Set("long", []byte("b"), time.Hour, false)
	store.Set("forever", []byte("c"), 0, false)

	clock.Advance(time.Minute)

	removed := store.SweepExpired()
	if removed != 1 {
		t.Errorf("SweepExpired() = %d, want 1", removed)
	}

	if _, found := store.Get("short"); found {
		t.Error("short should have been swept")
	}
	if _, found := store.Get("long"); !found {
		t.Error("long should survive the sweep")
	}
	if _, found := store.Get("forever"); !found {
		t.Error("forever should survive the sweep")
	}

	// A second sweep finds nothing
	if removed := store.SweepExpired(); removed != 0 {
		t.Errorf("second SweepExpired() = %d, want 0", removed)
	}
}

func TestLocalStore_Counts(t *testing.T) {
	clock := newMockClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	store := NewLocalStore(LocalStoreConfig{MaxEntries: 10, Clock: clock})

	store.Set("a", []byte("1"), time.Hour, false)
	store.Set("b", []byte("2"), time.Hour, true)
	store.Set("c", []byte("3"), 10*time.Second, true)

	total, pending := store.Counts()
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if pending != 2 {
		t.Errorf("pending = %d, want 2", pending)
	}

	// Expired entries drop out of the counts without a sweep
	clock.Advance(time.Minute)

	total, pending = store.Counts()
	if total != 2 {
		t.Errorf("total after expiry = %d, want 2", total)
	}
	if pending != 1 {
		t.Errorf("pending after expiry = %d, want 1", pending)
	}
}

func TestLocalStore_ValuesAreCopied(t *testing.T) {
	store := NewLocalStore(DefaultLocalStoreConfig())

	input := []byte("original")
	store.Set("k1", input, 0, false)

	// Mutating the caller's slice must not change the stored value
	input[0] = 'X'

	value, found := store.Get("k1")
	if !found {
		t.Fatal("k1 should be present")
	}
	if !bytes.Equal(value, []byte("original")) {
		t.Errorf("stored value mutated through caller slice: %q", value)
	}

	// Mutating the returned slice must not change the stored value
	value[0] = 'Y'

	again, _ := store.Get("k1")
	if !bytes.Equal(again, []byte("original")) {
		t.Errorf("stored value mutated through returned slice: %q", again)
	}
}

func TestLocalStore_ConcurrentAccess(t *testing.T) {
	store := NewLocalStore(LocalStoreConfig{MaxEntries: 100})

	var wg sync.WaitGroup
	numGoroutines := 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d-%d", id, j%20)
				store.Set(key, []byte("v"), time.Minute, j%2 == 0)
				store.Get(key)
			}
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				store.SweepExpired()
				store.Counts()
			}
		}()
	}

	wg.Wait()

	// Should not panic or deadlock, and stay within capacity
	total, _ := store.Counts()
	if total > 100 {
		t.Errorf("store grew past capacity: %d entries", total)
	}
}
