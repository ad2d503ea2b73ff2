package identity

import (
	"context"
	"testing"
	"time"

	"fansite/cmd/internal/pgtest"
)

// Integration tests are opt-in and require FANSITE_DATABASE_URL.

func TestPostgresStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		db := pgtest.Open(t)
		s, err := NewPostgresStore(db.Pool, testHasher(t), testPolicy(), WithSchema(db.Schema))
		if err != nil {
			t.Fatalf("new store: %v", err)
		}
		return s
	})
}

func TestWithSchema_RejectsBadIdentifiers(t *testing.T) {
	for _, schema := range []string{"", "   ", "bad-name", "1abc", `x"; DROP TABLE users; --`} {
		s := &PostgresStore{}
		if err := WithSchema(schema)(s); err == nil {
			t.Fatalf("WithSchema(%q): expected error", schema)
		}
	}
}

func TestPostgresStore_ResetFailuresRespectsOpenLockout(t *testing.T) {
	db := pgtest.Open(t)
	s, err := NewPostgresStore(db.Pool, testHasher(t), testPolicy(), WithSchema(db.Schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	u, err := s.CreateUser(ctx, CreateUserInput{Email: "lock@x.com", Password: "Passw0rd!", Now: now})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := s.VerifyPassword(ctx, u, "Wrong0rd!", now); err != nil {
			t.Fatalf("wrong guess #%d: %v", i, err)
		}
	}

	if err := s.resetFailures(ctx, u.ID, now); !IsLockedOut(err) {
		t.Fatalf("expected LockedOutError, got %v", err)
	}
	got, err := s.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.FailedLogins != 3 || !got.LockedAt(now) {
		t.Fatalf("lockout cleared: failures=%d end=%v", got.FailedLogins, got.LockoutEnd)
	}

	if err := s.resetFailures(ctx, u.ID, now.Add(2*time.Minute)); err != nil {
		t.Fatalf("reset after window: %v", err)
	}
	got, _ = s.FindByID(ctx, u.ID)
	if got.FailedLogins != 0 || got.LockoutEnd != nil {
		t.Fatalf("counter not reset: %+v", got)
	}
}
