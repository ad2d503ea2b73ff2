package session

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// MinSigningKeyBytes is the shortest HMAC key accepted for access tokens.
const MinSigningKeyBytes = 16

// Config is the immutable token and ledger policy, built once at startup.
type Config struct {
	// Issuer and Audience go into "iss" and "aud" and are enforced on verify.
	Issuer   string
	Audience string

	// SigningKey signs new access tokens under KeyID.
	SigningKey []byte
	KeyID      string

	// PreviousKeys are verify-only keys by kid, kept during key rotation.
	PreviousKeys map[string][]byte

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// RefreshTokenBytes is the entropy of each refresh value.
	RefreshTokenBytes int

	// HashRefreshTokens stores a digest instead of the bearer value.
	// RefreshHashKey switches the digest from SHA-256 to HMAC-SHA256.
	HashRefreshTokens bool
	RefreshHashKey    []byte

	// RevokeFamilyOnReuse revokes every descendant when a rotated token is replayed.
	RevokeFamilyOnReuse bool
}

// DefaultConfig returns defaults without a signing key.
func DefaultConfig() Config {
	return Config{
		Issuer:            "FanSite4",
		Audience:          "FanSite4.Client",
		KeyID:             "fansite4",
		AccessTokenTTL:    15 * time.Minute,
		RefreshTokenTTL:   7 * 24 * time.Hour,
		RefreshTokenBytes: 64,
	}
}

// Validate checks the invariants LoadConfigFromEnv enforces. It is also used by
// callers that build Config by hand.
func (c Config) Validate() error {
	switch {
	case len(c.SigningKey) < MinSigningKeyBytes:
		return fmt.Errorf("%w: signing key must be at least %d bytes", ErrConfig, MinSigningKeyBytes)
	case strings.TrimSpace(c.KeyID) == "":
		return fmt.Errorf("%w: empty key id", ErrConfig)
	case strings.TrimSpace(c.Issuer) == "", strings.TrimSpace(c.Audience) == "":
		return fmt.Errorf("%w: issuer and audience are required", ErrConfig)
	case c.AccessTokenTTL <= 0, c.RefreshTokenTTL <= 0:
		return fmt.Errorf("%w: token lifetimes must be positive", ErrConfig)
	case c.RefreshTokenBytes < 64 || c.RefreshTokenBytes > 128:
		return fmt.Errorf("%w: refresh token bytes must be in [64..128]", ErrConfig)
	case len(c.RefreshHashKey) > 0 && len(c.RefreshHashKey) < 32:
		return fmt.Errorf("%w: refresh hash key must be at least 32 bytes", ErrConfig)
	}
	for kid, k := range c.PreviousKeys {
		if kid == c.KeyID {
			return fmt.Errorf("%w: previous key id %q shadows the active key", ErrConfig, kid)
		}
		if len(k) < MinSigningKeyBytes {
			return fmt.Errorf("%w: previous key %q is too short", ErrConfig, kid)
		}
	}
	return nil
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - FANSITE_JWT_KEY (at least 16 bytes)
//
// Optional:
//   - FANSITE_JWT_KEY_ID
//   - FANSITE_JWT_PREVIOUS_KEYS ("kid=secret;kid=secret")
//   - FANSITE_JWT_ISSUER
//   - FANSITE_JWT_AUDIENCE
//   - FANSITE_JWT_ACCESS_TTL
//   - FANSITE_JWT_REFRESH_TTL
//   - FANSITE_AUTH_REFRESH_TOKEN_BYTES
//   - FANSITE_AUTH_HASH_REFRESH_TOKENS
//   - FANSITE_AUTH_REFRESH_HASH_KEY
//   - FANSITE_AUTH_REVOKE_FAMILY_ON_REUSE
//
// Every failure wraps ErrConfig.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.SigningKey = []byte(strings.TrimSpace(os.Getenv("FANSITE_JWT_KEY")))
	if len(cfg.SigningKey) == 0 {
		return Config{}, fmt.Errorf("%w: FANSITE_JWT_KEY is required", ErrConfig)
	}

	if v := strings.TrimSpace(os.Getenv("FANSITE_JWT_KEY_ID")); v != "" {
		cfg.KeyID = v
	}
	if v := strings.TrimSpace(os.Getenv("FANSITE_JWT_ISSUER")); v != "" {
		cfg.Issuer = v
	}
	if v := strings.TrimSpace(os.Getenv("FANSITE_JWT_AUDIENCE")); v != "" {
		cfg.Audience = v
	}

	if v := os.Getenv("FANSITE_JWT_PREVIOUS_KEYS"); strings.TrimSpace(v) != "" {
		keys, err := parseKeyRing(v)
		if err != nil {
			return Config{}, err
		}
		cfg.PreviousKeys = keys
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"FANSITE_JWT_ACCESS_TTL", &cfg.AccessTokenTTL},
		{"FANSITE_JWT_REFRESH_TTL", &cfg.RefreshTokenTTL},
	}
	for _, f := range durations {
		v := strings.TrimSpace(os.Getenv(f.key))
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("%w: %s must be a positive duration", ErrConfig, f.key)
		}
		*f.dst = d
	}

	if v := strings.TrimSpace(os.Getenv("FANSITE_AUTH_REFRESH_TOKEN_BYTES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: FANSITE_AUTH_REFRESH_TOKEN_BYTES", ErrConfig)
		}
		cfg.RefreshTokenBytes = n
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"FANSITE_AUTH_HASH_REFRESH_TOKENS", &cfg.HashRefreshTokens},
		{"FANSITE_AUTH_REVOKE_FAMILY_ON_REUSE", &cfg.RevokeFamilyOnReuse},
	}
	for _, f := range bools {
		v := strings.TrimSpace(os.Getenv(f.key))
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s must be a boolean", ErrConfig, f.key)
		}
		*f.dst = b
	}

	if v := strings.TrimSpace(os.Getenv("FANSITE_AUTH_REFRESH_HASH_KEY")); v != "" {
		cfg.RefreshHashKey = []byte(v)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parseKeyRing parses "kid=secret;kid=secret".
func parseKeyRing(raw string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kid, secret, ok := strings.Cut(part, "=")
		kid, secret = strings.TrimSpace(kid), strings.TrimSpace(secret)
		if !ok || kid == "" || secret == "" {
			return nil, fmt.Errorf("%w: FANSITE_JWT_PREVIOUS_KEYS entries must be kid=secret", ErrConfig)
		}
		if _, dup := out[kid]; dup {
			return nil, fmt.Errorf("%w: duplicate previous key id %q", ErrConfig, kid)
		}
		out[kid] = []byte(secret)
	}
	return out, nil
}
