package session

import (
	"fansite/cmd/security/token"
)

// newRefreshValue returns a fresh bearer value for a refresh token.
func (s *Service) newRefreshValue() (string, error) {
	return token.NewOpaque(s.cfg.RefreshTokenBytes)
}

// ledgerKey maps a bearer value to the form stored in the ledger.
func (s *Service) ledgerKey(value string) string {
	if !s.cfg.HashRefreshTokens {
		return value
	}
	return token.Digest(value, s.cfg.RefreshHashKey)
}
