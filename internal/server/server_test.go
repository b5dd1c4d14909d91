package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApiKeyMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	protected := apiKeyMiddleware("secret")(next)

	tests := []struct {
		name       string
		path       string
		key        string
		wantStatus int
	}{
		{"missing key", "/api/scrape", "", http.StatusUnauthorized},
		{"wrong key", "/api/scrape", "wrong", http.StatusUnauthorized},
		{"valid key", "/api/scrape", "secret", http.StatusOK},
		{"home is open", "/", "", http.StatusOK},
		{"health is open", "/api/health", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestApiKeyMiddlewareDisabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	open := apiKeyMiddleware("")(next)

	req := httptest.NewRequest(http.MethodGet, "/api/scrape", nil)
	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
