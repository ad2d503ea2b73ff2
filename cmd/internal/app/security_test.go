package app

import (
	"strings"
	"testing"

	"fansite/cmd/internal/auth/session"
)

func TestValidateSecurityConfig(t *testing.T) {
	strong := strings.Repeat("k", 32)

	cases := []struct {
		name    string
		require bool
		jwtKey  string
		mutate  func(*session.Config)
		wantErr bool
	}{
		{name: "policy off", require: false, jwtKey: "short", wantErr: false},
		{name: "missing key", require: true, jwtKey: "", wantErr: true},
		{name: "short key", require: true, jwtKey: strings.Repeat("k", 31), wantErr: true},
		{name: "strong key", require: true, jwtKey: strong, wantErr: false},
		{
			name: "weak previous key", require: true, jwtKey: strong,
			mutate:  func(c *session.Config) { c.PreviousKeys = map[string][]byte{"old": []byte("sixteen-bytes-ok")} },
			wantErr: true,
		},
		{
			name: "unkeyed hashing", require: true, jwtKey: strong,
			mutate:  func(c *session.Config) { c.HashRefreshTokens = true },
			wantErr: true,
		},
		{
			name: "keyed hashing", require: true, jwtKey: strong,
			mutate: func(c *session.Config) {
				c.HashRefreshTokens = true
				c.RefreshHashKey = []byte(strong)
			},
			wantErr: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("FANSITE_JWT_KEY", tc.jwtKey)
			sess := session.DefaultConfig()
			sess.SigningKey = []byte(tc.jwtKey)
			if tc.mutate != nil {
				tc.mutate(&sess)
			}
			err := ValidateSecurityConfig(Config{RequireStrongKeys: tc.require}, sess)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err=%v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}
