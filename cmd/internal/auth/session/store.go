package session

import (
	"context"
	"time"
)

// Record is one refresh token in the ledger.
//
// Token is the lookup key: the bearer value itself, or its digest when
// Config.HashRefreshTokens is set. ReplacedByToken is stored in the same form.
type Record struct {
	ID              string
	Token           string
	UserID          string
	CreatedAt       time.Time
	ExpiresAt       time.Time
	RevokedAt       *time.Time
	ReplacedByToken *string
}

// IsActive reports whether the record can still be exchanged at now.
func (r Record) IsActive(now time.Time) bool {
	return r.RevokedAt == nil && now.Before(r.ExpiresAt)
}

// Rotated reports whether the record was consumed by a rotation.
func (r Record) Rotated() bool {
	return r.RevokedAt != nil && r.ReplacedByToken != nil
}

// Store is the refresh-token ledger.
//
// Once RevokedAt is set a record never changes again. Every method is
// individually atomic and holds no lock across calls.
type Store interface {
	// Insert appends a new active record. A token collision yields ConflictError.
	Insert(ctx context.Context, userID, token string, createdAt, expiresAt time.Time) (Record, error)

	// FindByToken returns ErrRecordNotFound for an unknown token.
	FindByToken(ctx context.Context, token string) (Record, error)

	// Rotate revokes old and inserts its successor in one step. If old is no
	// longer active when the write lands, nothing changes and ErrNotActive is
	// returned. A collision on newToken yields ConflictError.
	Rotate(ctx context.Context, old Record, newToken string, now, newExpiresAt time.Time) (Record, error)

	// Revoke marks token revoked. Unknown or already revoked tokens are a no-op.
	Revoke(ctx context.Context, token string, now time.Time) error

	// RevokeAll revokes every active record of userID and returns how many changed.
	RevokeAll(ctx context.Context, userID string, now time.Time) (int64, error)

	// PurgeExpired deletes records that expired, or were revoked, before before.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}
