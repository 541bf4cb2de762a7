// Package auth implements the bearer-token authenticator used on every
// HTTP endpoint.
package auth

import "crypto/subtle"

// StaticTokenAuthenticator checks a request's bearer token against a single
// operator-configured token in constant time, avoiding a timing side
// channel on the comparison.
type StaticTokenAuthenticator struct {
	token []byte
}

// NewStaticTokenAuthenticator constructs an authenticator for token.
func NewStaticTokenAuthenticator(token string) *StaticTokenAuthenticator {
	return &StaticTokenAuthenticator{token: []byte(token)}
}

// Authenticate reports whether candidate matches the configured token.
func (a *StaticTokenAuthenticator) Authenticate(candidate string) bool {
	if len(candidate) != len(a.token) {
		return false
	}
	return subtle.ConstantTimeCompare(a.token, []byte(candidate)) == 1
}
