package token

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/sessiond/pkg/jwtx"
)

// Error categories. Match them with errors.Is.
var (
	// ErrCreation means signing or key material failed. It points at
	// misconfiguration or a caller bug, never at user input.
	ErrCreation = errors.New("token: creation failed")

	// ErrValidation covers bad signatures, expiry and registry mismatches.
	ErrValidation = errors.New("token: validation failed")

	ErrParsing       = errors.New("token: malformed token")
	ErrMissingClaims = errors.New("token: missing claims")
	ErrInvalidFormat = errors.New("token: invalid claim format")

	// ErrStore wraps registry and ledger I/O failures. The outer request may
	// be retried.
	ErrStore = errors.New("token: store failure")
)

// Error is returned by every engine operation.
type Error struct {
	Category error
	Op       string
	Kind     Kind
	Err      error
}

func (e *Error) Error() string {
	if e.Kind == 0 {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s %s: %v", e.Category, e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the category and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	return []error{e.Category, e.Err}
}

func newError(category error, op string, kind Kind, err error) *Error {
	return &Error{Category: category, Op: op, Kind: kind, Err: err}
}

// IsUnauthorized reports whether err should be answered with a 401.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrParsing) ||
		errors.Is(err, ErrMissingClaims) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsTransient reports whether err came from a store and the request may be
// retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStore)
}

func categorizeVerify(err error) error {
	switch {
	case errors.Is(err, jwtx.ErrMalformed):
		return ErrParsing
	case errors.Is(err, jwtx.ErrMissingClaim):
		return ErrMissingClaims
	case errors.Is(err, jwtx.ErrInvalidClaim):
		return ErrInvalidFormat
	default:
		return ErrValidation
	}
}
