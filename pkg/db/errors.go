package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrConstraintViolation is returned by stores that enforce integrity themselves.
var ErrConstraintViolation = errors.New("constraint violation")

// ErrPollNotFound is returned by read projections for an unknown poll id.
var ErrPollNotFound = errors.New("poll not found")

// IsConstraintViolation reports whether err is an integrity failure
// (foreign key, unique, not null, check) from any store.
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConstraintViolation) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 23 is "integrity constraint violation"
		return strings.HasPrefix(pgErr.Code, "23")
	}
	return false
}
