// Package identity is the credential store: user records, roles, password
// verification and the failed-login lockout counter.
//
// Sessions and tokens live elsewhere; this package only answers "who is this
// user" and "is this their password".
package identity
