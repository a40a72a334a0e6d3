package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"

	"oddsline-core/pkg/resilience"
)

// Classify maps the PostgreSQL error surface onto the failure
// taxonomy so the retry executor knows what is worth retrying:
//
//   - SQLSTATE class 08 (connection exception), class 57 (operator
//     intervention, e.g. "the database system is starting up"): the
//     server is unreachable or refusing work → Unavailable
//   - class 53 (insufficient resources, too_many_connections): backing
//     off helps → ResourceExhausted
//   - 40001 serialization_failure / 40P01 deadlock_detected: retrying
//     the transaction is the documented remedy → Transient
//   - class 22 (data exception) / 23 (integrity constraint violation):
//     the statement is wrong, retrying cannot fix it → InvalidInput
//   - class 28 (invalid authorization) / 42 (syntax or access rule
//     violation): deployment or code bug → Fatal
//
// Dropped connections (driver.ErrBadConn, ECONNRESET) are Transient:
// the pool dials a fresh connection on the next attempt. Dial-level
// refusals are Unavailable. Anything unclaimed is Fatal; an error no
// mapping recognizes must never be silently retried.
//
// nil and sql.ErrNoRows pass through unchanged: a missing row is an
// answer, not an infrastructure failure. Already-classified errors are
// returned as-is.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}

	var failure *resilience.Failure
	if errors.As(err, &failure) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifySQLState(pgErr.Code, err)
	}

	switch {
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		return resilience.Transient(DependencyName, err)
	case errors.Is(err, context.DeadlineExceeded):
		return resilience.Transient(DependencyName, err)
	case errors.Is(err, context.Canceled):
		return resilience.Fatal(DependencyName, err)
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH):
		return resilience.Unavailable(DependencyName, err)
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, syscall.EPIPE):
		return resilience.Transient(DependencyName, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return resilience.Transient(DependencyName, err)
		}
		return resilience.Unavailable(DependencyName, err)
	}

	return resilience.Fatal(DependencyName, err)
}

// classifySQLState maps a five-character SQLSTATE onto a failure kind.
func classifySQLState(code string, err error) error {
	switch code {
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return resilience.Transient(DependencyName, err)
	}

	if len(code) >= 2 {
		switch code[:2] {
		case "08", "57":
			return resilience.Unavailable(DependencyName, err)
		case "53":
			return resilience.ResourceExhausted(DependencyName, err)
		case "22", "23":
			return resilience.InvalidInput(DependencyName, err)
		case "28", "42":
			return resilience.Fatal(DependencyName, err)
		}
	}

	return resilience.Fatal(DependencyName, err)
}
