// Package token provides opaque bearer-token values and their digests.
//
// Values are random bytes encoded as base64url without padding. Digests are
// 64-char lowercase hex: SHA-256 when no key is configured, HMAC-SHA256 otherwise.
package token
