package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"os"
	"strings"
)

// MinOpaqueBytes is the smallest accepted entropy for bearer values.
const MinOpaqueBytes = 32

// NewOpaque returns nBytes of crypto/rand output as unpadded base64url.
func NewOpaque(nBytes int) (string, error) {
	if nBytes < MinOpaqueBytes {
		return "", ErrTooFewBytes
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// Digest hashes s with HMAC-SHA256 when key is non-empty, SHA-256 otherwise.
func Digest(s string, key []byte) string {
	if len(key) == 0 {
		return HashSHA256Hex(s)
	}
	return HashHMACSHA256Hex(s, key)
}

// KeyFromEnv returns the trimmed bytes of env var name, enforcing a minimum byte length.
// Length is measured in bytes, not runes, since the key is used as raw bytes.
func KeyFromEnv(name string, minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, ErrKeyMissing
	}
	if minBytes > 0 && len(raw) < minBytes {
		return nil, ErrKeyTooShort
	}
	return []byte(raw), nil
}
