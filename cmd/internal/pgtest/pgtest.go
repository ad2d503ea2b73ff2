// Package pgtest opens a throwaway, fully migrated Postgres schema for
// integration tests. Tests are skipped unless FANSITE_DATABASE_URL is set.
package pgtest

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fansite/cmd/identity/ids"
	"fansite/cmd/internal/migrations"
)

// EnvDatabaseURL names the variable that opts into integration tests.
const EnvDatabaseURL = "FANSITE_DATABASE_URL"

// DB is a migrated schema and a pool whose search_path points at it.
type DB struct {
	Pool   *pgxpool.Pool
	Schema string
}

// Open creates a unique schema, applies migrations and registers cleanup.
// Unreachable databases skip the test outside CI.
func Open(t testing.TB) DB {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv(EnvDatabaseURL))
	if raw == "" {
		t.Skipf("integration test skipped: %s is not set", EnvDatabaseURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin, err := pgx.Connect(ctx, raw)
	if err != nil {
		if ShouldSkip(err) {
			t.Skipf("integration test skipped: Postgres unreachable: %v", err)
		}
		t.Fatalf("connect postgres: %v", err)
	}
	defer func() { _ = admin.Close(context.Background()) }()

	schema := "fansite_it_" + strings.ToLower(ids.MustULID(time.Now()))
	if _, err := admin.Exec(ctx, `CREATE SCHEMA `+pgx.Identifier{schema}.Sanitize()); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dropCancel()
		conn, err := pgx.Connect(dropCtx, raw)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close(context.Background()) }()
		_, _ = conn.Exec(dropCtx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
	})

	if err := migrations.Up(ctx, raw, schema); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse %s: %v", EnvDatabaseURL, err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	cfg.MaxConns = 8

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return DB{Pool: pool, Schema: schema}
}

// ShouldSkip reports whether err looks like "no database here" rather than a
// real failure. In CI every error fails the test.
func ShouldSkip(err error) bool {
	if err == nil || os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "context deadline exceeded", "timeout", "dial tcp", "no such host"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
