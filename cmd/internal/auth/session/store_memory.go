package session

import (
	"context"
	"sync"
	"time"

	"fansite/cmd/identity/ids"
)

// MemoryStore is a process-local ledger with the same atomicity as
// PostgresStore. It backs tests and database-less development runs.
type MemoryStore struct {
	mu      sync.Mutex
	byToken map[string]Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byToken: make(map[string]Record)}
}

func (s *MemoryStore) Insert(ctx context.Context, userID, token string, createdAt, expiresAt time.Time) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	id, err := ids.NewULID(createdAt)
	if err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byToken[token]; exists {
		return Record{}, ConflictError{Op: "session.Insert", Field: "token"}
	}
	rec := Record{ID: id, Token: token, UserID: userID, CreatedAt: createdAt, ExpiresAt: expiresAt}
	s.byToken[token] = rec
	return rec, nil
}

func (s *MemoryStore) FindByToken(ctx context.Context, token string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byToken[token]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Rotate(ctx context.Context, old Record, newToken string, now, newExpiresAt time.Time) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byToken[old.Token]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	if !cur.IsActive(now) {
		return Record{}, ErrNotActive
	}
	if _, exists := s.byToken[newToken]; exists {
		return Record{}, ConflictError{Op: "session.Rotate", Field: "token"}
	}

	next := Record{ID: id, Token: newToken, UserID: cur.UserID, CreatedAt: now, ExpiresAt: newExpiresAt}
	revokedAt, replacedBy := now, newToken
	cur.RevokedAt = &revokedAt
	cur.ReplacedByToken = &replacedBy

	s.byToken[cur.Token] = cur
	s.byToken[next.Token] = next
	return next, nil
}

func (s *MemoryStore) Revoke(ctx context.Context, token string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byToken[token]
	if !ok || rec.RevokedAt != nil {
		return nil
	}
	t := now
	rec.RevokedAt = &t
	s.byToken[token] = rec
	return nil
}

func (s *MemoryStore) RevokeAll(ctx context.Context, userID string, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, rec := range s.byToken {
		if rec.UserID != userID || rec.RevokedAt != nil {
			continue
		}
		t := now
		rec.RevokedAt = &t
		s.byToken[k] = rec
		n++
	}
	return n, nil
}

func (s *MemoryStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, rec := range s.byToken {
		if rec.ExpiresAt.Before(before) || (rec.RevokedAt != nil && rec.RevokedAt.Before(before)) {
			delete(s.byToken, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of records, for tests and diagnostics.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byToken)
}
