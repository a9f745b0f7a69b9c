// Package drafterr holds the error taxonomy shared by the draft engine.
package drafterr

import "errors"

// Code classifies an error for callers and transports.
type Code string

const (
	CodeValidation     Code = "validation"
	CodeStateConflict  Code = "state_conflict"
	CodeLockContention Code = "lock_contention"
	CodeExhaustedRetry Code = "exhausted_retry"
	CodeNotFound       Code = "not_found"
	CodeForbidden      Code = "forbidden"
	CodeInternal       Code = "internal"
)

// Validation errors: bad input shape, nothing mutated.
var (
	ErrValidation       = errors.New("validation failed")
	ErrInvalidTurnOrder = errors.New("turn order must be a 1..N permutation of unique participants")
	ErrUnsupportedStyle = errors.New("draft style is not run by the turn engine")
)

// State-conflict errors: the caller acted on stale state.
var (
	ErrDraftNotInProgress     = errors.New("draft is not in progress")
	ErrNotYourTurn            = errors.New("not your turn")
	ErrItemAlreadyPicked      = errors.New("player already picked in this draft")
	ErrInvalidTransition      = errors.New("invalid draft status transition")
	ErrPositionAlreadyClaimed = errors.New("draft position already claimed")
	ErrNotYourDerbyTurn       = errors.New("not your derby turn")
	ErrDerbyNotInProgress     = errors.New("derby is not in progress")
)

// ErrConcurrentModification means the draft row was locked by another writer.
// The whole operation should be retried.
var ErrConcurrentModification = errors.New("draft is being modified concurrently")

// ErrAutoPickFailed means a forced pick exhausted its retry budget.
var ErrAutoPickFailed = errors.New("auto-pick failed")

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

var codes = []struct {
	err  error
	code Code
}{
	{ErrValidation, CodeValidation},
	{ErrInvalidTurnOrder, CodeValidation},
	{ErrUnsupportedStyle, CodeValidation},
	{ErrDraftNotInProgress, CodeStateConflict},
	{ErrNotYourTurn, CodeStateConflict},
	{ErrItemAlreadyPicked, CodeStateConflict},
	{ErrInvalidTransition, CodeStateConflict},
	{ErrPositionAlreadyClaimed, CodeStateConflict},
	{ErrNotYourDerbyTurn, CodeStateConflict},
	{ErrDerbyNotInProgress, CodeStateConflict},
	{ErrConcurrentModification, CodeLockContention},
	{ErrAutoPickFailed, CodeExhaustedRetry},
	{ErrNotFound, CodeNotFound},
	{ErrForbidden, CodeForbidden},
}

// CodeOf returns the taxonomy code of err, or CodeInternal when unclassified.
func CodeOf(err error) Code {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// Retryable reports whether retrying the same operation may succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
