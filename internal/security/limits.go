package security

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// DefaultMaxRequestBytes mirrors services/shared/request_limits.py's 10MB
// default for coordinator/worker payloads.
const DefaultMaxRequestBytes int64 = 10 * 1024 * 1024

// RequestSizeLimit rejects requests whose Content-Length exceeds maxBytes
// with HTTP 413, and additionally wraps the body in http.MaxBytesReader so
// a request with no (or a lying) Content-Length header still can't exhaust
// memory by streaming an oversized body past the handler.
func RequestSizeLimit(maxBytes int64, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cl := r.Header.Get("Content-Length"); cl != "" {
				if size, err := strconv.ParseInt(cl, 10, 64); err == nil && size > maxBytes {
					logger.Warn("rejecting oversized request",
						"path", r.URL.Path, "content_length", size, "max_bytes", maxBytes)
					writeTooLarge(w, maxBytes)
					return
				}
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func writeTooLarge(w http.ResponseWriter, maxBytes int64) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusRequestEntityTooLarge)
	mb := float64(maxBytes) / (1024 * 1024)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"detail": "request body too large, maximum size: " + strconv.FormatFloat(mb, 'f', 1, 64) + "MB",
	})
}
