package session

import (
	"context"
	"testing"

	"fansite/cmd/identity"
	"fansite/cmd/internal/pgtest"
)

// Integration tests are enabled when FANSITE_DATABASE_URL is set.

func newPostgresFixture(t *testing.T) (*PostgresStore, *identity.PostgresStore) {
	t.Helper()

	db := pgtest.Open(t)
	ledger, err := NewPostgresStore(db.Pool, WithSchema(db.Schema))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	users, err := identity.NewPostgresStore(db.Pool, testHasher(t), identity.DefaultLockoutPolicy(), identity.WithSchema(db.Schema))
	if err != nil {
		t.Fatalf("identity.NewPostgresStore: %v", err)
	}
	return ledger, users
}

func TestPostgresStore_Ledger(t *testing.T) {
	runLedgerContract(t, func(t *testing.T) (Store, string) {
		ledger, users := newPostgresFixture(t)
		u, err := users.CreateUser(context.Background(), identity.CreateUserInput{
			Email:    "ledger@x.com",
			Password: "Pw123456",
		})
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		return ledger, u.ID
	})
}

func TestPostgresSession_Scenario(t *testing.T) {
	ledger, users := newPostgresFixture(t)

	cfg := testConfig()
	tokens, err := NewJWTManager(cfg)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	svc, err := NewService(cfg, users, ledger, tokens)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx := context.Background()

	reg, err := svc.Register(ctx, "a@x.com", "Pw123456")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	r1, err := svc.Refresh(ctx, reg.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh(R0): %v", err)
	}
	if _, err := svc.Refresh(ctx, reg.RefreshToken); err != ErrInvalidToken {
		t.Fatalf("Refresh(R0) again: expected ErrInvalidToken, got %v", err)
	}
	svc.Logout(ctx, r1.RefreshToken)
	if _, err := svc.Refresh(ctx, r1.RefreshToken); err != ErrInvalidToken {
		t.Fatalf("Refresh(R1) after logout: expected ErrInvalidToken, got %v", err)
	}

	if _, err := svc.Register(ctx, "A@X.COM", "Pw123456"); err != ErrAlreadyExists {
		t.Fatalf("duplicate Register: expected ErrAlreadyExists, got %v", err)
	}
}
