// Package redisstore backs the cache manager's remote store with
// Redis and maps the go-redis error surface onto the resilience
// failure taxonomy.
package redisstore

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultDialTimeout  = 2 * time.Second
	defaultReadTimeout  = 2 * time.Second
	defaultWriteTimeout = 2 * time.Second
	defaultPoolTimeout  = 2 * time.Second

	defaultPoolSize     = 20
	defaultMinIdleConns = 2
)

// Config holds Redis connection configuration.
type Config struct {
	// Typically "localhost:6379"
	Addr     string
	Password string
	DB       int
}

// ConfigFromEnv reads Redis connection settings from REDIS_ADDR,
// REDIS_PASSWORD and REDIS_DB. Falls back to a local instance when
// unset.
func ConfigFromEnv() Config {
	cfg := Config{Addr: "localhost:6379"}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	cfg.Password = os.Getenv("REDIS_PASSWORD")
	if db := os.Getenv("REDIS_DB"); db != "" {
		if val, err := strconv.Atoi(db); err == nil && val >= 0 {
			cfg.DB = val
		}
	}

	return cfg
}

// NewClient creates a Redis client with pool and timeout settings
// suited to a cache: commands give up quickly and let the caller fall
// back rather than queue behind a slow backend.
//
// An unreachable Redis is not a constructor error. The client dials
// lazily, the startup ping only logs, and the circuit breaker plus
// local fallback absorb the outage until Redis returns.
func NewClient(cfg Config) *redis.Client {
	logger := slog.Default().With(
		slog.String("component", "redis"),
		slog.String("addr", cfg.Addr),
		slog.Int("db", cfg.DB),
	)

	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		PoolTimeout:  defaultPoolTimeout,
		PoolSize:     defaultPoolSize,
		MinIdleConns: defaultMinIdleConns,
		// Retry policy belongs to the executor; driver-level retries
		// would multiply every attempt it schedules.
		MaxRetries: -1,
	}

	logger.Info("initializing redis client")

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable at startup, continuing degraded",
			slog.Any("error", err))
	} else {
		logger.Info("redis connection established")
	}

	return rdb
}

// Probe returns a health probe that pings Redis, classified for the
// failure taxonomy.
func Probe(rdb *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return Classify(err)
		}
		return nil
	}
}
