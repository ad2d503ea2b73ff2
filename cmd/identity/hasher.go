package identity

import (
	"errors"
	"fmt"

	"fansite/cmd/security/password"
)

// Hasher wraps the password package with a precomputed decoy hash so that
// lookups for unknown accounts cost the same as a real verification.
type Hasher struct {
	cfg   password.Config
	decoy string
}

// NewHasher builds a Hasher for cfg.
func NewHasher(cfg password.Config) (*Hasher, error) {
	d, err := cfg.Decoy()
	if err != nil {
		return nil, fmt.Errorf("identity: decoy hash: %w", err)
	}
	return &Hasher{cfg: cfg, decoy: d}, nil
}

// Hash applies the password policy and returns the encoded hash.
func (h *Hasher) Hash(pw string) (string, error) {
	return h.cfg.Hash(pw)
}

// Verify reports whether pw matches encoded. A malformed hash is a mismatch.
func (h *Hasher) Verify(encoded, pw string) bool {
	ok, err := h.cfg.Verify(encoded, pw)
	if err != nil {
		return false
	}
	return ok
}

// Decoy runs a verification that never succeeds.
func (h *Hasher) Decoy(pw string) {
	_, _ = h.cfg.Verify(h.decoy, pw)
}

// IsPolicyViolation reports whether err came from the password policy.
func IsPolicyViolation(err error) bool {
	return errors.Is(err, password.ErrPasswordTooShort) ||
		errors.Is(err, password.ErrPasswordTooLong) ||
		errors.Is(err, password.ErrWeakPassword) ||
		errors.Is(err, password.ErrMissingCharacterClass)
}
