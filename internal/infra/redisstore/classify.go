package redisstore

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"oddsline-core/internal/cache"
	"oddsline-core/pkg/resilience"
)

// Classify maps a go-redis error onto the failure taxonomy:
//
//   - redis.Nil is a miss, not a failure → cache.ErrNotFound
//   - pool timeout, OOM, BUSY: the server or pool is shedding load →
//     ResourceExhausted
//   - LOADING / READONLY / CLUSTERDOWN / MASTERDOWN replies: the node
//     cannot serve right now → Unavailable
//   - TRYAGAIN (cluster resharding) → Transient
//   - WRONGTYPE: the command is wrong for the key → InvalidInput
//   - dial refusals → Unavailable; resets and timeouts → Transient
//
// Unrecognized errors map to Unavailable, not Fatal: the cache manager
// falls back to its local store on Unavailable, and a cache that errs
// on the side of fallback degrades a request instead of failing it.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return cache.ErrNotFound
	}

	var failure *resilience.Failure
	if errors.As(err, &failure) {
		return err
	}

	switch {
	case errors.Is(err, redis.ErrClosed):
		// The process closed its own client; retrying cannot help.
		return resilience.Fatal(cache.DependencyName, err)
	case errors.Is(err, context.DeadlineExceeded):
		return resilience.Transient(cache.DependencyName, err)
	case errors.Is(err, context.Canceled):
		return resilience.Fatal(cache.DependencyName, err)
	}

	// go-redis does not export its pool timeout error value.
	if strings.Contains(err.Error(), "connection pool timeout") {
		return resilience.ResourceExhausted(cache.DependencyName, err)
	}

	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		return classifyReply(redisErr.Error(), err)
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH):
		return resilience.Unavailable(cache.DependencyName, err)
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, syscall.EPIPE):
		return resilience.Transient(cache.DependencyName, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return resilience.Transient(cache.DependencyName, err)
	}

	return resilience.Unavailable(cache.DependencyName, err)
}

// classifyReply maps a Redis server reply by its leading error code
// ("LOADING Redis is loading the dataset in memory", ...).
func classifyReply(reply string, err error) error {
	code, _, _ := strings.Cut(reply, " ")
	switch code {
	case "LOADING", "READONLY", "CLUSTERDOWN", "MASTERDOWN":
		return resilience.Unavailable(cache.DependencyName, err)
	case "OOM", "BUSY":
		return resilience.ResourceExhausted(cache.DependencyName, err)
	case "TRYAGAIN":
		return resilience.Transient(cache.DependencyName, err)
	case "WRONGTYPE":
		return resilience.InvalidInput(cache.DependencyName, err)
	default:
		return resilience.Unavailable(cache.DependencyName, err)
	}
}
