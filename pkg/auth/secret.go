package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
)

// QuerySecretParam is the query-string parameter carrying the shared secret
const QuerySecretParam = "secret"

// secretsEqual compares two secrets in constant time. Both values are hashed
// first so the comparison does not depend on their lengths.
func secretsEqual(provided, expected string) bool {
	a := sha256.Sum256([]byte(provided))
	b := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// CheckProbeSecret reports whether the request carries the configured secret
// in its query string. An empty configured secret never matches.
func CheckProbeSecret(r *http.Request, secret string) bool {
	if secret == "" {
		return false
	}
	provided := r.URL.Query().Get(QuerySecretParam)
	if provided == "" {
		return false
	}
	return secretsEqual(provided, secret)
}
