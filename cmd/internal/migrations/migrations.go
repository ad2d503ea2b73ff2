// Package migrations embeds the SQL schema and applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var FS embed.FS

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// Up applies all pending migrations to the database at dsn. When schema is
// non-empty, it becomes the connection's search_path so tables and the goose
// version table are created there.
func Up(ctx context.Context, dsn, schema string) error {
	db, err := Open(dsn, schema)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return UpDB(ctx, db)
}

// UpDB applies pending migrations over an existing *sql.DB.
func UpDB(ctx context.Context, db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(FS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("migrations: dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrations: up: %w", err)
	}
	return nil
}

// Open returns a database/sql handle backed by the pgx driver.
func Open(dsn, schema string) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("migrations: parse dsn: %w", err)
	}
	if schema != "" {
		if cfg.RuntimeParams == nil {
			cfg.RuntimeParams = map[string]string{}
		}
		cfg.RuntimeParams["search_path"] = schema
	}
	return stdlib.OpenDB(*cfg), nil
}
