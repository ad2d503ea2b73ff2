package session

import (
	"sync"
	"testing"
	"time"

	"fansite/cmd/identity"
	"fansite/cmd/security/password"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SigningKey = []byte(testSigningKey)
	return cfg
}

func testHasher(t *testing.T) *identity.Hasher {
	t.Helper()

	pc := password.DefaultConfig()
	pc.Params.MemoryKiB = 8 * 1024
	pc.Params.Iterations = 1
	pc.Params.Parallelism = 1

	h, err := identity.NewHasher(pc)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	return h
}

type fixture struct {
	svc    *Service
	ledger *MemoryStore
	users  *identity.MemoryStore
	tokens AccessTokenManager
	clock  *testClock
	cfg    Config
}

func newFixture(t *testing.T, mutate func(*Config), opts ...Option) fixture {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	h := testHasher(t)
	users, err := identity.NewMemoryStore(h, identity.DefaultLockoutPolicy())
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	tokens, err := NewJWTManager(cfg)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	clock := newTestClock()
	ledger := NewMemoryStore()

	all := append([]Option{WithClock(clock.Now), WithDecoy(h)}, opts...)
	svc, err := NewService(cfg, users, ledger, tokens, all...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	return fixture{svc: svc, ledger: ledger, users: users, tokens: tokens, clock: clock, cfg: cfg}
}

// activeFor counts the user's records that are still active at now.
func (s *MemoryStore) activeFor(userID string, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.byToken {
		if r.UserID == userID && r.IsActive(now) {
			n++
		}
	}
	return n
}
