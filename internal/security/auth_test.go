package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyAuthDisabledWhenKeyEmpty(t *testing.T) {
	t.Parallel()

	handler := APIKeyAuth("")(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/detect", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when auth is disabled", rec.Code)
	}
}

func TestAPIKeyAuthRejectsMissingKey(t *testing.T) {
	t.Parallel()

	handler := APIKeyAuth("secret-key")(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/detect", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for a missing API key", rec.Code)
	}
}

func TestAPIKeyAuthRejectsWrongKey(t *testing.T) {
	t.Parallel()

	handler := APIKeyAuth("secret-key")(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/detect", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for a wrong API key", rec.Code)
	}
}

func TestAPIKeyAuthAcceptsCorrectKey(t *testing.T) {
	t.Parallel()

	handler := APIKeyAuth("secret-key")(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/detect", nil)
	req.Header.Set("X-API-Key", "secret-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for the correct API key", rec.Code)
	}
}
