package authapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Audit actions written by the handler.
const (
	actionRegister         = "auth.register"
	actionLoginSuccess     = "auth.login.success"
	actionLoginFailed      = "auth.login.failed"
	actionLoginRateLimited = "auth.login.rate_limited"
	actionRefreshSuccess   = "auth.refresh.success"
	actionRefreshFailed    = "auth.refresh.failed"
	actionLogout           = "auth.logout"
	actionLogoutAll        = "auth.logout_all"
)

// AuditEvent is one row of the audit trail.
type AuditEvent struct {
	Action    string
	UserID    string
	IP        net.IP
	UserAgent string
	Meta      map[string]any
	At        time.Time
}

// Auditor persists audit events and answers the throttle's window queries.
type Auditor interface {
	Record(ctx context.Context, ev AuditEvent) error
	CountSince(ctx context.Context, action string, ip net.IP, since time.Time) (int, error)
}

// PostgresAuditor writes to the audit_log table.
type PostgresAuditor struct {
	pool   *pgxpool.Pool
	schema string
}

var _ Auditor = (*PostgresAuditor)(nil)

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NewPostgresAuditor returns an auditor over pool. An empty schema means "public".
func NewPostgresAuditor(pool *pgxpool.Pool, schema string) (*PostgresAuditor, error) {
	if pool == nil {
		return nil, fmt.Errorf("authapi: nil db pool")
	}
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = "public"
	}
	if !pgIdentRe.MatchString(schema) {
		return nil, fmt.Errorf("authapi: invalid schema identifier")
	}
	return &PostgresAuditor{pool: pool, schema: schema}, nil
}

func (a *PostgresAuditor) table() string {
	return pgx.Identifier{a.schema, "audit_log"}.Sanitize()
}

func (a *PostgresAuditor) Record(ctx context.Context, ev AuditEvent) error {
	var ipVal any
	if ev.IP != nil {
		ipVal = ev.IP.String()
	}

	var metaVal *string
	if len(ev.Meta) > 0 {
		if b, err := json.Marshal(ev.Meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	_, err := a.pool.Exec(ctx, `
		INSERT INTO `+a.table()+` (
			user_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, $3, $4, $5, $6::jsonb)
	`, trimOrNil(ev.UserID), ev.Action, at, ipVal, trimOrNil(ev.UserAgent), metaVal)
	if err != nil {
		return fmt.Errorf("authapi: insert audit: %w", err)
	}
	return nil
}

func (a *PostgresAuditor) CountSince(ctx context.Context, action string, ip net.IP, since time.Time) (int, error) {
	if ip == nil {
		return 0, nil
	}
	var n int
	err := a.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM `+a.table()+`
		WHERE action = $1
		  AND ip = $2
		  AND created_at >= $3
	`, action, ip.String(), since).Scan(&n)
	return n, err
}

// MemoryAuditor keeps events in process. It backs development runs without a
// database and the handler tests.
type MemoryAuditor struct {
	mu     sync.Mutex
	events []AuditEvent
}

var _ Auditor = (*MemoryAuditor)(nil)

func NewMemoryAuditor() *MemoryAuditor {
	return &MemoryAuditor{}
}

func (a *MemoryAuditor) Record(ctx context.Context, ev AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	a.mu.Lock()
	a.events = append(a.events, ev)
	a.mu.Unlock()
	return nil
}

func (a *MemoryAuditor) CountSince(ctx context.Context, action string, ip net.IP, since time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if ip == nil {
		return 0, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, ev := range a.events {
		if ev.Action == action && ev.IP.Equal(ip) && !ev.At.Before(since) {
			n++
		}
	}
	return n, nil
}

// Events returns a copy of everything recorded so far.
func (a *MemoryAuditor) Events() []AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]AuditEvent(nil), a.events...)
}

// audit records ev and logs, never fails, on error.
func (h *Handler) audit(ctx context.Context, ev AuditEvent) {
	if h.auditor == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = h.now()
	}
	if err := h.auditor.Record(ctx, ev); err != nil {
		h.log.Error("auth.audit.insert.fail", "err", err, "action", ev.Action)
	}
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
