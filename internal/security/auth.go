package security

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

const apiKeyHeader = "X-API-Key"

// APIKeyAuth rejects requests that don't carry the expected API key with
// HTTP 401. Comparison is constant-time to avoid leaking key length/prefix
// through timing. An empty expectedKey disables the check entirely, since
// local/CLI deployments have no key to present.
func APIKeyAuth(expectedKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if expectedKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(apiKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(expectedKey)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"detail": "missing or invalid API key"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
