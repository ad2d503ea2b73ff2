package identity

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

// PostgresStore implements Store over the users table.
//
// The pool is owned by the caller. Identifiers are quoted with pgx.Identifier.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
	hasher *Hasher
	policy LockoutPolicy
}

var _ Store = (*PostgresStore)(nil)

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the schema holding the users table (default "public").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, h *Hasher, policy LockoutPolicy, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "public",
		hasher: h,
		policy: policy,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	if st.hasher == nil {
		return nil, fmt.Errorf("identity: nil hasher")
	}
	return st, nil
}

const userColumns = `id, email, user_name, role, password_hash, failed_login_count, lockout_end, created_at`

func scanUser(row pgx.Row) (User, error) {
	var (
		u    User
		role string
	)
	if err := row.Scan(
		&u.ID, &u.Email, &u.UserName, &role, &u.PasswordHash,
		&u.FailedLogins, &u.LockoutEnd, &u.CreatedAt,
	); err != nil {
		return User{}, err
	}
	u.Role = Role(role)
	return u, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.FindByEmail"

	norm := NormalizeEmail(email)
	if norm == "" {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}

	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+s.table()+` WHERE email_norm = $1`, norm))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, err
	}
	return u, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (User, error) {
	const op = "identity.FindByID"

	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+s.table()+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, err
	}
	return u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	u, err := prepareUser(op, s.hasher, in)
	if err != nil {
		return User{}, err
	}
	u.ID, err = ids.NewULID(u.CreatedAt)
	if err != nil {
		return User{}, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (
		     id, email, email_norm, user_name, role, password_hash, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.Email, u.UserName, string(u.Role), u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}
	return u, nil
}

func (s *PostgresStore) SetRole(ctx context.Context, userID string, role Role) error {
	const op = "identity.SetRole"
	if !role.Valid() {
		return invalid(op, "unknown role")
	}

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+s.table()+` SET role = $2 WHERE id = $1`, userID, string(role))
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

func (s *PostgresStore) VerifyPassword(ctx context.Context, u User, password string, now time.Time) (bool, error) {
	const op = "identity.VerifyPassword"

	// Re-read so a stale User cannot bypass an open lockout.
	cur, err := s.FindByID(ctx, u.ID)
	if err != nil {
		return false, err
	}
	if cur.LockedAt(now) {
		return false, LockedOutError{UserID: cur.ID, Until: *cur.LockoutEnd}
	}

	if s.hasher.Verify(cur.PasswordHash, password) {
		if err := s.resetFailures(ctx, cur.ID, now); err != nil {
			return false, err
		}
		return true, nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var failures int
	err = tx.QueryRow(ctx,
		`UPDATE `+s.table()+`
		    SET failed_login_count = failed_login_count + 1
		  WHERE id = $1
		RETURNING failed_login_count`,
		cur.ID,
	).Scan(&failures)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, NotFoundError{Op: op, Resource: "user"}
		}
		return false, err
	}

	if d := s.policy.LockoutFor(failures); d > 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE `+s.table()+` SET lockout_end = $2 WHERE id = $1`,
			cur.ID, now.Add(d),
		); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return false, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "users"}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "ux_users_email_norm", strings.Contains(c, "email"):
		return "email", true
	default:
		return "unique", true
	}
}

// resetFailures clears the failure counter unless a lockout is open at now.
// A lockout set by a concurrent attempt after the first check still holds.
func (s *PostgresStore) resetFailures(ctx context.Context, id string, now time.Time) error {
	const op = "identity.VerifyPassword"

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+s.table()+`
		    SET failed_login_count = 0, lockout_end = NULL
		  WHERE id = $1 AND (lockout_end IS NULL OR lockout_end <= $2)`,
		id, now,
	)
	if err != nil {
		return fmt.Errorf("%s: reset failures: %w", op, err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	cur, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if cur.LockedAt(now) {
		return LockedOutError{UserID: cur.ID, Until: *cur.LockoutEnd}
	}
	return fmt.Errorf("%s: reset failures: no row updated", op)
}
