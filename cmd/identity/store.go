package identity

import (
	"context"
	"fmt"
	"time"
)

// User is the credential-store record for an account.
type User struct {
	ID       string
	Email    string // normalized
	UserName string
	Role     Role

	PasswordHash string

	// Lockout bookkeeping.
	FailedLogins int
	LockoutEnd   *time.Time

	CreatedAt time.Time
}

// DisplayName returns the user name, falling back to the email.
func (u User) DisplayName() string {
	if u.UserName != "" {
		return u.UserName
	}
	return u.Email
}

// LockedAt reports whether a lockout window is open at now.
func (u User) LockedAt(now time.Time) bool {
	return u.LockoutEnd != nil && now.Before(*u.LockoutEnd)
}

// CreateUserInput describes a new account. UserName defaults to the normalized email.
type CreateUserInput struct {
	Email    string
	UserName string
	Password string
	Role     Role
	Now      time.Time
}

// Store is the credential-store boundary consumed by the session orchestrator.
type Store interface {
	// FindByEmail returns ErrNotFound when no user has the (normalized) email.
	FindByEmail(ctx context.Context, email string) (User, error)

	// FindByID returns ErrNotFound when the id is unknown.
	FindByID(ctx context.Context, id string) (User, error)

	// VerifyPassword checks password against the stored hash and maintains the
	// failure counter. It returns ErrLockedOut (as LockedOutError) while a
	// lockout window is open, without evaluating the password.
	VerifyPassword(ctx context.Context, u User, password string, now time.Time) (bool, error)

	// CreateUser validates and hashes the password and inserts the user.
	// Duplicate emails yield ConflictError{Field: "email"}.
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	// SetRole changes a user's role.
	SetRole(ctx context.Context, userID string, role Role) error
}

// prepareUser validates in and returns the record to persist (without ID).
func prepareUser(op string, h *Hasher, in CreateUserInput) (User, error) {
	email := NormalizeEmail(in.Email)
	if email == "" {
		return User{}, invalid(op, "email is required")
	}
	if in.Password == "" {
		return User{}, invalid(op, "password is required")
	}

	role := in.Role
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return User{}, invalid(op, "unknown role")
	}

	userName := NormalizeUserName(in.UserName)
	if userName == "" {
		userName = email
	}

	hash, err := h.Hash(in.Password)
	if err != nil {
		if IsPolicyViolation(err) {
			return User{}, invalid(op, err.Error())
		}
		return User{}, fmt.Errorf("%s: hash: %w", op, err)
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	return User{
		Email:        email,
		UserName:     userName,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
	}, nil
}
