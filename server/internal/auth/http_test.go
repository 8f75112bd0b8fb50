package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestHTTPMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		mode   string
		key    string
		path   string
		header string
		want   int
	}{
		{"mode none", "none", "secret", "/api/v1/sessions", "", http.StatusNoContent},
		{"empty key", "apikey", "", "/api/v1/sessions", "", http.StatusNoContent},
		{"correct key", "apikey", "secret", "/api/v1/sessions", "secret", http.StatusNoContent},
		{"wrong key", "apikey", "secret", "/api/v1/sessions", "nope", http.StatusUnauthorized},
		{"missing key", "apikey", "secret", "/api/v1/sessions", "", http.StatusUnauthorized},
		{"open path", "apikey", "secret", "/api/v1/health", "", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := HTTPMiddleware(tt.mode, "x-api-key", tt.key, "/api/v1/health")(okHandler())
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("X-Api-Key", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}
