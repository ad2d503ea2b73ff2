package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLockoutFor_DefaultTiers(t *testing.T) {
	p := DefaultLockoutPolicy()

	cases := []struct {
		failures int
		want     time.Duration
	}{
		{0, 0},
		{4, 0},
		{5, 5 * time.Minute},
		{9, 5 * time.Minute},
		{10, 30 * time.Minute},
		{19, 30 * time.Minute},
		{20, 2 * time.Hour},
		{500, 2 * time.Hour},
	}
	for _, tc := range cases {
		if got := p.LockoutFor(tc.failures); got != tc.want {
			t.Fatalf("LockoutFor(%d) = %s, want %s", tc.failures, got, tc.want)
		}
	}
}

func TestLockoutFor_EmptyPolicyNeverLocks(t *testing.T) {
	if got := (LockoutPolicy{}).LockoutFor(1000); got != 0 {
		t.Fatalf("expected 0, got %s", got)
	}
}

func TestLockoutPolicyFromEnv(t *testing.T) {
	t.Setenv("FANSITE_AUTH_LOCKOUT_SHORT_THRESHOLD", "3")
	t.Setenv("FANSITE_AUTH_LOCKOUT_SHORT_DURATION", "1m")
	t.Setenv("FANSITE_AUTH_LOCKOUT_SEVERE_THRESHOLD", "0")

	p, err := LockoutPolicyFromEnv()
	if err != nil {
		t.Fatalf("LockoutPolicyFromEnv: %v", err)
	}
	if len(p.Tiers) != 2 {
		t.Fatalf("expected severe tier to be disabled, got %+v", p.Tiers)
	}
	if got := p.LockoutFor(3); got != time.Minute {
		t.Fatalf("LockoutFor(3) = %s", got)
	}
	if got := p.LockoutFor(50); got != 30*time.Minute {
		t.Fatalf("LockoutFor(50) = %s", got)
	}
}

func TestLockoutPolicyFromEnv_Invalid(t *testing.T) {
	t.Setenv("FANSITE_AUTH_LOCKOUT_LONG_DURATION", "soon")
	if _, err := LockoutPolicyFromEnv(); err == nil {
		t.Fatalf("expected error")
	}
}

func newLockoutFixture(t *testing.T, policy LockoutPolicy) (*MemoryStore, User, time.Time) {
	t.Helper()

	s, err := NewMemoryStore(testHasher(t), policy)
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	u, err := s.CreateUser(context.Background(), CreateUserInput{Email: "lock@x.com", Password: "Passw0rd!", Now: now})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return s, u, now
}

func TestMemoryStore_MatchAfterLockoutOpenedKeepsLockout(t *testing.T) {
	s, u, now := newLockoutFixture(t, testPolicy())
	ctx := context.Background()

	// The correct guess passed the first lockout check before these landed.
	for i := 0; i < 3; i++ {
		if ok, err := s.VerifyPassword(ctx, u, "Wrong0rd!", now); ok || err != nil {
			t.Fatalf("wrong guess #%d: ok=%v err=%v", i, ok, err)
		}
	}

	ok, err := s.recordAttempt(u.ID, true, now)
	if ok || !IsLockedOut(err) {
		t.Fatalf("expected LockedOutError, got ok=%v err=%v", ok, err)
	}
	var le LockedOutError
	if !errors.As(err, &le) || !le.Until.Equal(now.Add(time.Minute)) {
		t.Fatalf("lockout end: %+v", le)
	}

	got, err := s.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.FailedLogins != 3 || !got.LockedAt(now) {
		t.Fatalf("match must not clear an open lockout: failures=%d end=%v", got.FailedLogins, got.LockoutEnd)
	}

	// Once the window closes a match resets the counter.
	later := now.Add(2 * time.Minute)
	if ok, err := s.VerifyPassword(ctx, u, "Passw0rd!", later); !ok || err != nil {
		t.Fatalf("after lockout: ok=%v err=%v", ok, err)
	}
	got, _ = s.FindByID(ctx, u.ID)
	if got.FailedLogins != 0 || got.LockoutEnd != nil {
		t.Fatalf("counter not reset: %+v", got)
	}
}

func TestMemoryStore_ConcurrentGuessesLeaveLockoutInPlace(t *testing.T) {
	s, u, now := newLockoutFixture(t, DefaultLockoutPolicy())
	ctx := context.Background()

	const wrong = 39
	var wg sync.WaitGroup
	for i := 0; i <= wrong; i++ {
		pw := "Wrong0rd!"
		if i == wrong/2 {
			pw = "Passw0rd!"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.VerifyPassword(ctx, u, pw, now)
			if err != nil && !IsLockedOut(err) {
				t.Errorf("VerifyPassword: %v", err)
			}
			if ok && pw != "Passw0rd!" {
				t.Errorf("wrong password accepted")
			}
		}()
	}
	wg.Wait()

	got, err := s.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if !got.LockedAt(now) || got.FailedLogins < 5 {
		t.Fatalf("lockout lost: failures=%d end=%v", got.FailedLogins, got.LockoutEnd)
	}
}
