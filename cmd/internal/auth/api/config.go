package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy    bool
	MaxBodyBytes  int64
	LoginIPMax    int
	LoginIPWindow time.Duration

	// PurgeRetention is how long expired or revoked refresh tokens are kept
	// before an admin purge (or the background loop) deletes them.
	PurgeRetention time.Duration
}

// DefaultConfig returns the values used when no environment overrides are set.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:   1 << 20, // 1 MiB
		LoginIPMax:     20,
		LoginIPWindow:  5 * time.Minute,
		PurgeRetention: 24 * time.Hour,
	}
}

// LoadConfigFromEnv loads auth API config from environment variables with safe defaults.
// Malformed or non-positive values fall back to the default.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	return Config{
		TrustProxy:     envBool("FANSITE_AUTH_TRUST_PROXY", def.TrustProxy),
		MaxBodyBytes:   envInt64("FANSITE_AUTH_MAX_BODY_BYTES", def.MaxBodyBytes),
		LoginIPMax:     envInt("FANSITE_AUTH_LOGIN_IP_MAX", def.LoginIPMax),
		LoginIPWindow:  envDuration("FANSITE_AUTH_LOGIN_IP_WINDOW", def.LoginIPWindow),
		PurgeRetention: envDuration("FANSITE_AUTH_PURGE_RETENTION", def.PurgeRetention),
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
