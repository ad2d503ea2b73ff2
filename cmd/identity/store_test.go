package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"fansite/cmd/security/password"
)

func testHasher(t *testing.T) *Hasher {
	t.Helper()

	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1

	h, err := NewHasher(cfg)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	return h
}

func testPolicy() LockoutPolicy {
	return LockoutPolicy{Tiers: []LockoutTier{{Threshold: 3, Duration: time.Minute}}}
}

// runStoreContract exercises behavior every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndFind", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

		u, err := s.CreateUser(ctx, CreateUserInput{Email: "  Alice@Example.COM ", Password: "Passw0rd!", Now: now})
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		if u.Email != "alice@example.com" {
			t.Fatalf("email not normalized: %q", u.Email)
		}
		if u.UserName != "alice@example.com" {
			t.Fatalf("user name should default to email, got %q", u.UserName)
		}
		if u.Role != RoleUser {
			t.Fatalf("role: got %q want %q", u.Role, RoleUser)
		}
		if len(u.ID) != 26 {
			t.Fatalf("id should be a ULID, got %q", u.ID)
		}

		got, err := s.FindByEmail(ctx, "ALICE@example.com")
		if err != nil {
			t.Fatalf("FindByEmail: %v", err)
		}
		if got.ID != u.ID {
			t.Fatalf("FindByEmail id: got %q want %q", got.ID, u.ID)
		}

		byID, err := s.FindByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if byID.Email != u.Email {
			t.Fatalf("FindByID email: got %q", byID.Email)
		}
	})

	t.Run("DuplicateEmailConflicts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.CreateUser(ctx, CreateUserInput{Email: "bob@example.com", Password: "Passw0rd!"}); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		_, err := s.CreateUser(ctx, CreateUserInput{Email: "BOB@example.com ", Password: "Other0ne!"})
		if !IsConflict(err) {
			t.Fatalf("expected conflict, got %v", err)
		}
		var ce ConflictError
		if errors.As(err, &ce) && ce.Field != "email" {
			t.Fatalf("conflict field: got %q", ce.Field)
		}
	})

	t.Run("WeakPasswordIsInvalidInput", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateUser(context.Background(), CreateUserInput{Email: "weak@example.com", Password: "short"})
		if !IsInvalidInput(err) {
			t.Fatalf("expected invalid input, got %v", err)
		}
	})

	t.Run("UnknownEmailNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.FindByEmail(context.Background(), "nobody@example.com")
		if !IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("VerifyPasswordAndLockout", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

		u, err := s.CreateUser(ctx, CreateUserInput{Email: "carol@example.com", Password: "Passw0rd!", Now: now})
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}

		ok, err := s.VerifyPassword(ctx, u, "Passw0rd!", now)
		if err != nil || !ok {
			t.Fatalf("VerifyPassword correct: ok=%v err=%v", ok, err)
		}

		for i := 0; i < 3; i++ {
			ok, err := s.VerifyPassword(ctx, u, "wrong", now)
			if err != nil || ok {
				t.Fatalf("VerifyPassword wrong #%d: ok=%v err=%v", i, ok, err)
			}
		}

		// Third failure opened a one minute window; even the right password is refused.
		_, err = s.VerifyPassword(ctx, u, "Passw0rd!", now.Add(30*time.Second))
		if !IsLockedOut(err) {
			t.Fatalf("expected lockout, got %v", err)
		}
		var le LockedOutError
		if !errors.As(err, &le) || !le.Until.Equal(now.Add(time.Minute)) {
			t.Fatalf("lockout until: %+v", le)
		}

		ok, err = s.VerifyPassword(ctx, u, "Passw0rd!", now.Add(2*time.Minute))
		if err != nil || !ok {
			t.Fatalf("after window: ok=%v err=%v", ok, err)
		}
		cur, err := s.FindByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if cur.FailedLogins != 0 || cur.LockoutEnd != nil {
			t.Fatalf("success should reset counters: %+v", cur)
		}
	})

	t.Run("SetRole", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		u, err := s.CreateUser(ctx, CreateUserInput{Email: "dave@example.com", Password: "Passw0rd!"})
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		if err := s.SetRole(ctx, u.ID, RoleAdmin); err != nil {
			t.Fatalf("SetRole: %v", err)
		}
		got, err := s.FindByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if got.Role != RoleAdmin {
			t.Fatalf("role: got %q", got.Role)
		}

		if err := s.SetRole(ctx, u.ID, Role("Root")); !IsInvalidInput(err) {
			t.Fatalf("expected invalid input for unknown role, got %v", err)
		}
		if err := s.SetRole(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV", RoleAdmin); !IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s, err := NewMemoryStore(testHasher(t), testPolicy())
		if err != nil {
			t.Fatalf("NewMemoryStore: %v", err)
		}
		return s
	})
}

func TestNewMemoryStore_NilHasher(t *testing.T) {
	if _, err := NewMemoryStore(nil, DefaultLockoutPolicy()); err == nil {
		t.Fatalf("expected error for nil hasher")
	}
}
