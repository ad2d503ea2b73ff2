package identity

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")

	// ErrLockedOut is returned by VerifyPassword while a lockout window is open.
	ErrLockedOut = errors.New("locked_out")
)
