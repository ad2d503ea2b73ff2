// Package session issues and rotates credentials.
//
// Access tokens are HS256 JWTs with a key id and a short lifetime; they are
// verified without any store lookup. Refresh tokens are opaque random values
// recorded in a ledger (Store). Each refresh consumes the presented token and
// links it to its successor, so a refresh token succeeds at most once.
//
// Service ties the ledger, the signer and the identity store together.
// HTTP mapping lives in the authapi package.
package session
