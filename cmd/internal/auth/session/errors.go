package session

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned for malformed input. No state changes.
	ErrValidation = errors.New("validation error")

	// ErrAlreadyExists is returned by Register when the email is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidCredentials covers unknown email, wrong password and lockout alike.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken covers unknown, expired, revoked and rotated refresh tokens,
	// and any access token that fails verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrConflict is returned by the ledger when a token value collides.
	ErrConflict = errors.New("conflict")

	// ErrRecordNotFound is returned by the ledger for an unknown token.
	ErrRecordNotFound = errors.New("refresh token not found")

	// ErrNotActive is returned by Rotate when the record was revoked or expired
	// before the rotation could commit.
	ErrNotActive = errors.New("refresh token not active")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrValidation, e.Msg)
	}
	return fmt.Sprintf("%v: %s: %s", ErrValidation, e.Field, e.Msg)
}

func (e ValidationError) Unwrap() error { return ErrValidation }

// ConflictError reports a unique-constraint collision in the ledger.
type ConflictError struct {
	Op    string
	Field string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrConflict, e.Field)
}

func (e ConflictError) Unwrap() error { return ErrConflict }
