package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"oddsline-core/internal/cache"
)

// keyPrefix namespaces cache entries so the store can share a Redis
// database with other tenants.
const keyPrefix = "oddsline:cache:"

// Store implements cache.RemoteStore over a Redis client. All errors
// leave already classified; redis.Nil surfaces as cache.ErrNotFound.
type Store struct {
	rdb *redis.Client
}

// NewStore wraps rdb as the cache manager's remote store.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Get fetches the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("redis get %q: %w", key, Classify(err))
	}
	return val, nil
}

// Set stores value under key. A non-positive ttl stores without
// expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, Classify(err))
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, Classify(err))
	}
	return nil
}
