package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fansite/cmd/identity/ids"
)

// MemoryStore is an in-process Store used by tests and by the server when no
// database is configured.
type MemoryStore struct {
	hasher *Hasher
	policy LockoutPolicy

	mu      sync.RWMutex
	byID    map[string]User
	byEmail map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore(h *Hasher, policy LockoutPolicy) (*MemoryStore, error) {
	if h == nil {
		return nil, fmt.Errorf("identity: nil hasher")
	}
	return &MemoryStore{
		hasher:  h,
		policy:  policy,
		byID:    make(map[string]User),
		byEmail: make(map[string]string),
	}, nil
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.FindByEmail"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return s.byID[id], nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (User, error) {
	const op = "identity.FindByID"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return u, nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	// Hash outside the lock.
	u, err := prepareUser(op, s.hasher, in)
	if err != nil {
		return User{}, err
	}
	u.ID, err = ids.NewULID(u.CreatedAt)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[u.Email]; exists {
		return User{}, ConflictError{Op: op, Field: "email"}
	}
	s.byID[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return u, nil
}

func (s *MemoryStore) SetRole(ctx context.Context, userID string, role Role) error {
	const op = "identity.SetRole"
	if err := ctx.Err(); err != nil {
		return err
	}
	if !role.Valid() {
		return invalid(op, "unknown role")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return NotFoundError{Op: op, Resource: "user"}
	}
	u.Role = role
	s.byID[userID] = u
	return nil
}

func (s *MemoryStore) VerifyPassword(ctx context.Context, u User, password string, now time.Time) (bool, error) {
	const op = "identity.VerifyPassword"
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	cur, ok := s.byID[u.ID]
	s.mu.RUnlock()
	if !ok {
		return false, NotFoundError{Op: op, Resource: "user"}
	}
	if cur.LockedAt(now) {
		return false, LockedOutError{UserID: cur.ID, Until: *cur.LockoutEnd}
	}

	return s.recordAttempt(cur.ID, s.hasher.Verify(cur.PasswordHash, password), now)
}

// recordAttempt applies the outcome of a hash comparison. A lockout opened by
// a concurrent attempt while the hash was being checked wins over a match.
func (s *MemoryStore) recordAttempt(id string, match bool, now time.Time) (bool, error) {
	const op = "identity.VerifyPassword"

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[id]
	if !ok {
		return false, NotFoundError{Op: op, Resource: "user"}
	}
	if match {
		if cur.LockedAt(now) {
			return false, LockedOutError{UserID: cur.ID, Until: *cur.LockoutEnd}
		}
		cur.FailedLogins = 0
		cur.LockoutEnd = nil
	} else {
		cur.FailedLogins++
		if d := s.policy.LockoutFor(cur.FailedLogins); d > 0 {
			end := now.Add(d)
			cur.LockoutEnd = &end
		}
	}
	s.byID[cur.ID] = cur
	return match, nil
}
