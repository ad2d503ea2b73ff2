package app

import (
	"errors"
	"fmt"

	"fansite/cmd/internal/auth/session"
	"fansite/cmd/security/token"
)

// strongKeyBytes is the minimum HMAC-SHA256 secret under the strong-keys policy.
const strongKeyBytes = 32

// ValidateSecurityConfig enforces the strong-keys policy at startup. It fails
// instead of falling back to weaker settings.
func ValidateSecurityConfig(cfg Config, sess session.Config) error {
	if !cfg.RequireStrongKeys {
		return nil
	}

	// Measured in bytes since the key is used as raw bytes.
	if _, err := token.KeyFromEnv("FANSITE_JWT_KEY", strongKeyBytes); err != nil {
		switch {
		case errors.Is(err, token.ErrKeyMissing):
			return errors.New("security policy: FANSITE_REQUIRE_STRONG_KEYS=true but FANSITE_JWT_KEY is missing")
		case errors.Is(err, token.ErrKeyTooShort):
			return fmt.Errorf("security policy: FANSITE_REQUIRE_STRONG_KEYS=true but FANSITE_JWT_KEY is too short (min %d bytes)", strongKeyBytes)
		default:
			return err
		}
	}

	for kid, key := range sess.PreviousKeys {
		if len(key) < strongKeyBytes {
			return fmt.Errorf("security policy: previous key %q is too short (min %d bytes)", kid, strongKeyBytes)
		}
	}

	if sess.HashRefreshTokens && len(sess.RefreshHashKey) == 0 {
		return errors.New("security policy: FANSITE_AUTH_HASH_REFRESH_TOKENS=true requires FANSITE_AUTH_REFRESH_HASH_KEY")
	}

	return nil
}
