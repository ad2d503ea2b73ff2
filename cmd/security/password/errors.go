package password

import "errors"

// Public, stable errors for callers.
var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrWeakPassword     = errors.New("weak password")

	// ErrMissingCharacterClass is returned when a required digit/lowercase/uppercase character is absent.
	ErrMissingCharacterClass = errors.New("password missing required character class")

	ErrInvalidHash = errors.New("invalid password hash")
)
