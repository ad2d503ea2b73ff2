// Package password hashes and verifies user passwords with Argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
//
// Stored hashes are treated as untrusted input during Verify: malformed strings
// and parameters far above the configured cost are rejected before any key
// derivation runs.
package password
