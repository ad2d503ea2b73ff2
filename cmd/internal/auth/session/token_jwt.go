package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fansite/cmd/identity"
	"fansite/cmd/identity/ids"
)

// AccessClaims is the verified content of an access token.
type AccessClaims struct {
	UserID    string
	Email     string
	Name      string
	Role      identity.Role
	TokenID   string
	KeyID     string
	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time
}

// AccessTokenManager issues and verifies short-lived access tokens.
type AccessTokenManager interface {
	Issue(u identity.User, now time.Time) (token string, exp time.Time, err error)
	Verify(token string, now time.Time) (AccessClaims, error)
}

// jwtClaims is the wire form. Field names are part of the contract with clients.
type jwtClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type jwtManager struct {
	issuer   string
	audience string
	ttl      time.Duration

	kid  string
	key  []byte
	keys map[string][]byte // kid -> key, active key included
}

var errUnknownKeyID = errors.New("unknown key id")

// NewJWTManager builds an HS256 AccessTokenManager from cfg.
// Tokens carry cfg.KeyID in the "kid" header; verification also accepts
// cfg.PreviousKeys.
func NewJWTManager(cfg Config) (AccessTokenManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	keys := make(map[string][]byte, len(cfg.PreviousKeys)+1)
	for kid, k := range cfg.PreviousKeys {
		keys[kid] = append([]byte(nil), k...)
	}
	key := append([]byte(nil), cfg.SigningKey...)
	keys[cfg.KeyID] = key

	return &jwtManager{
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.AccessTokenTTL,
		kid:      cfg.KeyID,
		key:      key,
		keys:     keys,
	}, nil
}

func (m *jwtManager) Issue(u identity.User, now time.Time) (string, time.Time, error) {
	if u.ID == "" || !u.Role.Valid() {
		return "", time.Time{}, fmt.Errorf("session: cannot issue token for incomplete user")
	}

	// NumericDate has second precision; keep exp exactly representable.
	now = now.UTC().Truncate(time.Second)
	exp := now.Add(m.ttl)

	jti, err := ids.NewULID(now)
	if err != nil {
		return "", time.Time{}, err
	}

	claims := jwtClaims{
		Email: u.Email,
		Name:  u.DisplayName(),
		Role:  string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        jti,
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = m.kid

	signed, err := tok.SignedString(m.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *jwtManager) Verify(token string, now time.Time) (AccessClaims, error) {
	p := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	var (
		claims jwtClaims
		kid    string
	)
	_, err := p.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ = t.Header["kid"].(string)
		k, ok := m.keys[kid]
		if !ok {
			return nil, errUnknownKeyID
		}
		return k, nil
	})
	if err != nil {
		return AccessClaims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	role, err := identity.ParseRole(claims.Role)
	if err != nil || claims.Subject == "" || claims.NotBefore == nil {
		return AccessClaims{}, ErrInvalidToken
	}

	out := AccessClaims{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		Role:      role,
		TokenID:   claims.ID,
		KeyID:     kid,
		NotBefore: claims.NotBefore.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
