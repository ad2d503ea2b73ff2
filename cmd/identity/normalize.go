package identity

import "strings"

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeUserName trims surrounding whitespace; user names keep their case.
func NormalizeUserName(s string) string {
	return strings.TrimSpace(s)
}
