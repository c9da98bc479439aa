package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrContention signals a lock wait timeout, serialization failure, deadlock or stale
// version. Callers may retry the whole operation.
var ErrContention = errors.New("row contention")

// ErrDuplicate signals a unique constraint violation, such as a second active submission
// for the same owner, document type and term.
var ErrDuplicate = errors.New("duplicate row")

const (
	pqUniqueViolation      = "23505"
	pqLockNotAvailable     = "55P03"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// classify wraps err with context, mapping contention-class PostgreSQL errors to ErrContention.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if IsContention(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrContention, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
		return fmt.Errorf("%s: %w: %v", op, ErrDuplicate, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsContention reports whether err is a retryable contention error.
func IsContention(err error) bool {
	if errors.Is(err, ErrContention) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqLockNotAvailable, pqSerializationFailure, pqDeadlockDetected:
			return true
		}
	}
	return false
}
