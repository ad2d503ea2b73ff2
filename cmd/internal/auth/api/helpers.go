package authapi

import (
	"net"
	"net/http"
	"strings"

	"fansite/cmd/internal/auth/session"
)

func toUserResponse(u session.UserProfile) userResponse {
	return userResponse{
		ID:       u.ID,
		Email:    u.Email,
		UserName: u.UserName,
		Role:     u.Role.String(),
	}
}

func toAuthResponse(res session.AuthResult) authResponse {
	return authResponse{
		User:             toUserResponse(res.User),
		AccessToken:      res.AccessToken,
		RefreshToken:     res.RefreshToken,
		ExpiresInSeconds: res.ExpiresInSeconds,
	}
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

// parseForwardedIP returns the left-most parseable address (the original client).
func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
