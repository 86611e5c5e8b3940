// Package auth gates the API behind static keys. It does not model users.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/korjavin/nomnom/internal/envelope"
)

// ParseAPIKeys parses a comma-separated list of API keys, trimming whitespace
// and ignoring empty entries.
func ParseAPIKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		k = strings.TrimSpace(k)
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// APIKeyMiddleware returns a middleware that validates the X-API-Key header,
// falling back to the api_key query parameter.
// If no keys are configured, all requests are allowed through.
func APIKeyMiddleware(validKeys []string) func(http.Handler) http.Handler {
	keys := make([][]byte, 0, len(validKeys))
	for _, k := range validKeys {
		keys = append(keys, []byte(k))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(keys) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if !matches(keys, []byte(key)) {
				envelope.Fail(w, http.StatusUnauthorized, envelope.CodeUnauthorized, "missing or invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func matches(keys [][]byte, key []byte) bool {
	if len(key) == 0 {
		return false
	}
	ok := 0
	for _, k := range keys {
		ok |= subtle.ConstantTimeCompare(k, key)
	}
	return ok == 1
}
