package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fansite/cmd/identity/ids"
)

// PostgresStore implements Store over the refresh_tokens table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

var _ Store = (*PostgresStore)(nil)

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the schema holding refresh_tokens (default "public").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("session: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore creates a Postgres-backed ledger. The pool is owned by the caller.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool, schema: "public"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	return s, nil
}

const recordColumns = `id, token, user_id, created_at, expires_at, revoked_at, replaced_by_token`

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.Token, &r.UserID, &r.CreatedAt, &r.ExpiresAt, &r.RevokedAt, &r.ReplacedByToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return r, nil
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *PostgresStore) insert(ctx context.Context, db execer, op, userID, token string, createdAt, expiresAt time.Time) (Record, error) {
	id, err := ids.NewULID(createdAt)
	if err != nil {
		return Record{}, err
	}

	_, err = db.Exec(ctx,
		`INSERT INTO `+s.table()+` (id, token, user_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, token, userID, createdAt, expiresAt,
	)
	if err != nil {
		if pgIsUniqueViolation(err) {
			return Record{}, ConflictError{Op: op, Field: "token"}
		}
		return Record{}, err
	}
	return Record{ID: id, Token: token, UserID: userID, CreatedAt: createdAt, ExpiresAt: expiresAt}, nil
}

func (s *PostgresStore) Insert(ctx context.Context, userID, token string, createdAt, expiresAt time.Time) (Record, error) {
	return s.insert(ctx, s.pool, "session.Insert", userID, token, createdAt, expiresAt)
}

func (s *PostgresStore) FindByToken(ctx context.Context, token string) (Record, error) {
	return scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM `+s.table()+` WHERE token = $1`, token))
}

// Rotate locks the old row, re-checks it, inserts the successor and revokes the
// old row with a conditional update, all in one transaction. A concurrent
// rotation of the same row blocks on the lock and then sees it revoked.
func (s *PostgresStore) Rotate(ctx context.Context, old Record, newToken string, now, newExpiresAt time.Time) (Record, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cur, err := scanRecord(tx.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM `+s.table()+` WHERE id = $1 FOR UPDATE`, old.ID))
	if err != nil {
		return Record{}, err
	}
	if !cur.IsActive(now) {
		return Record{}, ErrNotActive
	}

	next, err := s.insert(ctx, tx, "session.Rotate", cur.UserID, newToken, now, newExpiresAt)
	if err != nil {
		return Record{}, err
	}

	ct, err := tx.Exec(ctx,
		`UPDATE `+s.table()+`
		    SET revoked_at = $2, replaced_by_token = $3
		  WHERE id = $1 AND revoked_at IS NULL`,
		cur.ID, now, newToken,
	)
	if err != nil {
		return Record{}, err
	}
	if ct.RowsAffected() != 1 {
		return Record{}, ErrNotActive
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, err
	}
	return next, nil
}

func (s *PostgresStore) Revoke(ctx context.Context, token string, now time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE `+s.table()+` SET revoked_at = $2 WHERE token = $1 AND revoked_at IS NULL`,
		token, now,
	)
	return err
}

func (s *PostgresStore) RevokeAll(ctx context.Context, userID string, now time.Time) (int64, error) {
	ct, err := s.pool.Exec(ctx,
		`UPDATE `+s.table()+` SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`,
		userID, now,
	)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (s *PostgresStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	ct, err := s.pool.Exec(ctx,
		`DELETE FROM `+s.table()+` WHERE expires_at < $1 OR revoked_at < $1`,
		before,
	)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "refresh_tokens"}.Sanitize()
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
