package sqlutil

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Postgres SQLSTATE codes the engine reacts to.
const (
	CodeUniqueViolation      = "23505"
	CodeLockNotAvailable     = "55P03"
	CodeSerializationFailure = "40001"
)

// PgCode returns the SQLSTATE of err for both pgx and lib/pq drivers.
func PgCode(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), true
	}
	return "", false
}

// IsLockNotAvailable reports whether a NOWAIT lock attempt found the row held.
func IsLockNotAvailable(err error) bool {
	code, ok := PgCode(err)
	return ok && (code == CodeLockNotAvailable || code == CodeSerializationFailure)
}

// UniqueViolation returns the violated constraint name when err is a unique violation.
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == CodeUniqueViolation {
		return pgErr.ConstraintName, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == CodeUniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}
