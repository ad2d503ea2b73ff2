package app

import (
	"os"
	"time"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// DatabaseURL empty means in-memory stores (development only).
	DatabaseURL   string
	DBMaxConns    int32
	DBMinConns    int32
	DBAutoMigrate bool

	// If true, /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// If true, FANSITE_JWT_KEY must be at least 32 bytes and refresh-token
	// hashing, when enabled, must be keyed.
	RequireStrongKeys bool

	// PurgeInterval of 0 disables the background ledger purge.
	PurgeInterval time.Duration

	AdminEmail    string
	AdminUserName string
	AdminPassword string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("FANSITE_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("FANSITE_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("FANSITE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("FANSITE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("FANSITE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("FANSITE_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("FANSITE_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL:   EnvString("FANSITE_DATABASE_URL", ""),
		DBMaxConns:    EnvInt32("FANSITE_DB_MAX_CONNS", 10),
		DBMinConns:    EnvInt32("FANSITE_DB_MIN_CONNS", 0),
		DBAutoMigrate: EnvBool("FANSITE_DB_AUTO_MIGRATE", true),

		ReadinessRequireDB: EnvBool("FANSITE_READINESS_REQUIRE_DB", false),
		RequireStrongKeys:  EnvBool("FANSITE_REQUIRE_STRONG_KEYS", false),

		PurgeInterval: EnvDuration("FANSITE_AUTH_PURGE_INTERVAL", 0),

		AdminEmail:    EnvString("FANSITE_ADMIN_EMAIL", ""),
		AdminUserName: EnvString("FANSITE_ADMIN_USERNAME", "admin"),
		AdminPassword: os.Getenv("FANSITE_ADMIN_PASSWORD"),
	}
}
