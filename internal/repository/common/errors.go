package common

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	// ErrStaleStatus is returned when a conditional status update matched no
	// row because another writer changed the status first.
	ErrStaleStatus = errors.New("status changed concurrently")
)

const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a Postgres unique constraint error,
// optionally restricted to the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
