package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// passHandler answers 200 "ok".
var passHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok")) //nolint:errcheck
})

func callWithKey(t *testing.T, mw func(http.Handler) http.Handler, header, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/signals/network", nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rr := httptest.NewRecorder()
	mw(passHandler).ServeHTTP(rr, req)
	return rr
}

func TestAPIKeyMiddleware_ModeNone_PassesThrough(t *testing.T) {
	mw := APIKeyMiddleware("none", "X-API-Key", "secret")
	// No key on the request — should still pass because mode != "apikey".
	if rr := callWithKey(t, mw, "X-API-Key", ""); rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
}

func TestAPIKeyMiddleware_EmptyKey_PassesThrough(t *testing.T) {
	// key="" means auth is not configured → allow all.
	mw := APIKeyMiddleware("apikey", "X-API-Key", "")
	if rr := callWithKey(t, mw, "X-API-Key", ""); rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
}

func TestAPIKeyMiddleware_CorrectKey_Passes(t *testing.T) {
	mw := APIKeyMiddleware("apikey", "X-API-Key", "supersecret")
	rr := callWithKey(t, mw, "X-API-Key", "supersecret")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Errorf("body: got %q, want ok", rr.Body.String())
	}
}

func TestAPIKeyMiddleware_HeaderCaseInsensitive(t *testing.T) {
	mw := APIKeyMiddleware("apikey", "x-api-key", "supersecret")
	if rr := callWithKey(t, mw, "X-Api-Key", "supersecret"); rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
}

func TestAPIKeyMiddleware_Rejections(t *testing.T) {
	mw := APIKeyMiddleware("apikey", "X-API-Key", "supersecret")
	tests := []struct {
		name, header, key string
	}{
		{"wrong key", "X-API-Key", "wrong"},
		{"missing header", "X-API-Key", ""},
		{"other header", "Authorization", "supersecret"},
		{"prefix of key", "X-API-Key", "super"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := callWithKey(t, mw, tt.header, tt.key)
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("status: got %d, want 401", rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type: got %q", ct)
			}
		})
	}
}
