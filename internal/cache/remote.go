// Package cache wraps a distributed key/value store with retry,
// circuit breaking, and a bounded in-process fallback. Callers get one
// read/write/invalidate contract regardless of which backend served
// the request; a Fallback flag and a metric mark responses that came
// from the local store while the distributed backend was unreachable.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a RemoteStore when the key does not exist.
// A miss is an answer, not a failure: the manager never retries it and
// never counts it against the cache circuit breaker.
var ErrNotFound = errors.New("cache: key not found")

// RemoteStore is the distributed cache backend. Values are opaque byte
// payloads; ttl <= 0 stores without expiration.
//
// Implementations classify their transport errors into resilience
// failure kinds so the executor can decide what to retry; a missing
// key must surface as ErrNotFound.
type RemoteStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
