package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fansite/cmd/identity"
)

const (
	// maxTokenAttempts bounds retries after a ledger token collision.
	maxTokenAttempts = 3

	// maxPresentedTokenLen rejects pathological refresh inputs before any lookup.
	maxPresentedTokenLen = 4096

	// maxFamilyDepth bounds the replacedByToken walk.
	maxFamilyDepth = 10_000
)

// Service is the session orchestrator: register, login, refresh and logout
// over the credential store, the token signer and the refresh-token ledger.
//
// It holds no mutable state of its own; all session state is in the ledger.
type Service struct {
	cfg     Config
	users   identity.Store
	store   Store
	tokens  AccessTokenManager
	log     *slog.Logger
	now     func() time.Time
	metrics *Metrics
	decoy   func(password string)
}

// UserProfile is the public view of a user returned to clients.
type UserProfile struct {
	ID       string
	Email    string
	UserName string
	Role     identity.Role
}

// AuthResult is returned by Register, Login and Refresh.
type AuthResult struct {
	User             UserProfile
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	ExpiresInSeconds int64
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithDecoy runs h's decoy verification for unknown emails so they cost the
// same as a wrong password.
func WithDecoy(h *identity.Hasher) Option {
	return func(s *Service) {
		if h != nil {
			s.decoy = h.Decoy
		}
	}
}

// NewService wires the orchestrator. cfg must already be valid.
func NewService(cfg Config, users identity.Store, store Store, tokens AccessTokenManager, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if users == nil || store == nil || tokens == nil {
		return nil, fmt.Errorf("%w: nil dependency", ErrConfig)
	}

	s := &Service{
		cfg:    cfg,
		users:  users,
		store:  store,
		tokens: tokens,
		log:    slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
		decoy:  func(string) {},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Register creates a User-role account and signs it in.
func (s *Service) Register(ctx context.Context, email, password string) (res AuthResult, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("register", start, err) }()

	email = identity.NormalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return AuthResult{}, err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return AuthResult{}, ErrAlreadyExists
	} else if !identity.IsNotFound(err) {
		return AuthResult{}, fmt.Errorf("session.Register: lookup: %w", err)
	}

	now := s.now()
	u, err := s.users.CreateUser(ctx, identity.CreateUserInput{
		Email:    email,
		Password: password,
		Role:     identity.RoleUser,
		Now:      now,
	})
	switch {
	case identity.IsConflict(err):
		return AuthResult{}, ErrAlreadyExists
	case identity.IsInvalidInput(err):
		var oe identity.OpError
		msg := "is invalid"
		if errors.As(err, &oe) && oe.Msg != "" {
			msg = oe.Msg
		}
		return AuthResult{}, ValidationError{Field: "password", Msg: msg}
	case err != nil:
		return AuthResult{}, fmt.Errorf("session.Register: create: %w", err)
	}

	s.log.Info("auth.register", "user_id", u.ID)
	return s.issue(ctx, u, now)
}

// Login verifies credentials and signs the user in. Unknown email, wrong
// password and an open lockout all return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (res AuthResult, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("login", start, err) }()

	email = identity.NormalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return AuthResult{}, err
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if identity.IsNotFound(err) {
			s.decoy(password)
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("session.Login: lookup: %w", err)
	}

	now := s.now()
	ok, err := s.users.VerifyPassword(ctx, u, password, now)
	switch {
	case identity.IsLockedOut(err):
		s.log.Warn("auth.login.locked_out", "user_id", u.ID)
		return AuthResult{}, ErrInvalidCredentials
	case err != nil:
		return AuthResult{}, fmt.Errorf("session.Login: verify: %w", err)
	case !ok:
		s.log.Info("auth.login.fail", "user_id", u.ID)
		return AuthResult{}, ErrInvalidCredentials
	}

	return s.issue(ctx, u, now)
}

// Refresh exchanges an active refresh token for a new pair. The presented
// token is consumed: any later use returns ErrInvalidToken.
func (s *Service) Refresh(ctx context.Context, presented string) (res AuthResult, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("refresh", start, err) }()

	presented = strings.TrimSpace(presented)
	if presented == "" {
		return AuthResult{}, ValidationError{Field: "refreshToken", Msg: "is required"}
	}
	if len(presented) > maxPresentedTokenLen {
		return AuthResult{}, ErrInvalidToken
	}

	now := s.now()
	rec, err := s.store.FindByToken(ctx, s.ledgerKey(presented))
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return AuthResult{}, ErrInvalidToken
		}
		return AuthResult{}, fmt.Errorf("session.Refresh: lookup: %w", err)
	}

	if !rec.IsActive(now) {
		if rec.Rotated() {
			s.onReuse(ctx, rec, now)
		}
		return AuthResult{}, ErrInvalidToken
	}

	u, err := s.users.FindByID(ctx, rec.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			return AuthResult{}, ErrInvalidToken
		}
		return AuthResult{}, fmt.Errorf("session.Refresh: user: %w", err)
	}

	// Sign first so a signer failure cannot consume the presented token.
	access, accessExp, err := s.tokens.Issue(u, now)
	if err != nil {
		return AuthResult{}, fmt.Errorf("session.Refresh: sign: %w", err)
	}

	refreshExp := now.Add(s.cfg.RefreshTokenTTL)
	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		value, err := s.newRefreshValue()
		if err != nil {
			return AuthResult{}, fmt.Errorf("session.Refresh: entropy: %w", err)
		}

		_, err = s.store.Rotate(ctx, rec, s.ledgerKey(value), now, refreshExp)
		switch {
		case err == nil:
			return s.result(u, access, accessExp, value, refreshExp), nil
		case errors.Is(err, ErrConflict):
			s.log.Warn("auth.refresh.token_collision", "attempt", attempt)
			continue
		case errors.Is(err, ErrNotActive), errors.Is(err, ErrRecordNotFound):
			s.log.Info("auth.refresh.lost_race", "user_id", rec.UserID)
			return AuthResult{}, ErrInvalidToken
		default:
			return AuthResult{}, fmt.Errorf("session.Refresh: rotate: %w", err)
		}
	}
	return AuthResult{}, fmt.Errorf("session.Refresh: %w: retries exhausted", ErrConflict)
}

// Logout revokes the presented refresh token. It never fails from the
// caller's point of view; storage errors are logged.
func (s *Service) Logout(ctx context.Context, presented string) {
	start := time.Now()
	var err error
	defer func() { s.metrics.observe("logout", start, err) }()

	presented = strings.TrimSpace(presented)
	if presented == "" || len(presented) > maxPresentedTokenLen {
		return
	}
	if err = s.store.Revoke(ctx, s.ledgerKey(presented), s.now()); err != nil {
		s.log.Error("auth.logout.revoke_failed", "err", err)
	}
}

// LogoutAll revokes every active refresh token of userID.
func (s *Service) LogoutAll(ctx context.Context, userID string) (n int64, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("logout_all", start, err) }()

	if strings.TrimSpace(userID) == "" {
		return 0, ValidationError{Field: "userId", Msg: "is required"}
	}
	n, err = s.store.RevokeAll(ctx, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("session.LogoutAll: %w", err)
	}
	s.log.Info("auth.logout_all", "user_id", userID, "revoked", n)
	return n, nil
}

// ValidateAccessToken verifies an access token against the service clock.
// It performs no ledger lookup.
func (s *Service) ValidateAccessToken(token string) (AccessClaims, error) {
	return s.tokens.Verify(token, s.now())
}

// Profile returns the public view of userID.
func (s *Service) Profile(ctx context.Context, userID string) (UserProfile, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if identity.IsNotFound(err) {
			return UserProfile{}, ErrInvalidToken
		}
		return UserProfile{}, fmt.Errorf("session.Profile: %w", err)
	}
	return profileOf(u), nil
}

// PurgeExpired deletes ledger rows that expired or were revoked more than
// retention ago.
func (s *Service) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	if retention < 0 {
		retention = 0
	}
	return s.store.PurgeExpired(ctx, s.now().Add(-retention))
}

// issue signs an access token and appends a fresh refresh token for u.
func (s *Service) issue(ctx context.Context, u identity.User, now time.Time) (AuthResult, error) {
	access, accessExp, err := s.tokens.Issue(u, now)
	if err != nil {
		return AuthResult{}, fmt.Errorf("session: sign: %w", err)
	}

	refreshExp := now.Add(s.cfg.RefreshTokenTTL)
	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		value, err := s.newRefreshValue()
		if err != nil {
			return AuthResult{}, fmt.Errorf("session: entropy: %w", err)
		}

		_, err = s.store.Insert(ctx, u.ID, s.ledgerKey(value), now, refreshExp)
		if errors.Is(err, ErrConflict) {
			s.log.Warn("auth.issue.token_collision", "attempt", attempt)
			continue
		}
		if err != nil {
			return AuthResult{}, fmt.Errorf("session: insert refresh token: %w", err)
		}
		return s.result(u, access, accessExp, value, refreshExp), nil
	}
	return AuthResult{}, fmt.Errorf("session: %w: retries exhausted", ErrConflict)
}

func (s *Service) result(u identity.User, access string, accessExp time.Time, refresh string, refreshExp time.Time) AuthResult {
	return AuthResult{
		User:             profileOf(u),
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		ExpiresInSeconds: int64(s.cfg.AccessTokenTTL / time.Second),
	}
}

// onReuse handles replay of an already rotated token. The caller still gets
// ErrInvalidToken.
func (s *Service) onReuse(ctx context.Context, rec Record, now time.Time) {
	s.metrics.reuseDetected()
	s.log.Warn("auth.refresh.reuse_detected", "user_id", rec.UserID, "record_id", rec.ID)

	if !s.cfg.RevokeFamilyOnReuse {
		return
	}

	var revoked int
	next := rec.ReplacedByToken
	for depth := 0; next != nil && depth < maxFamilyDepth; depth++ {
		r, err := s.store.FindByToken(ctx, *next)
		if err != nil {
			if !errors.Is(err, ErrRecordNotFound) {
				s.log.Error("auth.refresh.family_walk_failed", "err", err)
			}
			break
		}
		if r.RevokedAt == nil {
			if err := s.store.Revoke(ctx, r.Token, now); err != nil {
				s.log.Error("auth.refresh.family_revoke_failed", "err", err)
				break
			}
			revoked++
		}
		next = r.ReplacedByToken
	}
	s.log.Warn("auth.refresh.family_revoked", "user_id", rec.UserID, "revoked", revoked)
}

func profileOf(u identity.User) UserProfile {
	return UserProfile{ID: u.ID, Email: u.Email, UserName: u.DisplayName(), Role: u.Role}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	default:
		return "error"
	}
}
