package middleware

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (v *stubValidator) Validate(_ context.Context, _ string) (*JWTClaims, error) {
	return v.claims, v.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// nextHandler records the context principal seen by the wrapped handler.
func nextHandler() (http.Handler, func() (string, bool)) {
	var name string
	var found bool
	h := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		name, found = PrincipalFromContext(r.Context())
	})
	return h, func() (string, bool) { return name, found }
}

func TestAuth_ValidToken(t *testing.T) {
	handler, getPrincipal := nextHandler()
	auth := NewAuthenticator(&stubValidator{claims: &JWTClaims{
		Subject: "sub-guid-1",
		Email:   strPtr("user1@example.com"),
		Raw:     map[string]interface{}{"sub": "sub-guid-1"},
	}}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	w := httptest.NewRecorder()

	auth.Middleware()(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	name, found := getPrincipal()
	require.True(t, found)
	assert.Equal(t, "user1@example.com", name, "email claim preferred over subject")
}

func TestAuth_SubjectFallback(t *testing.T) {
	handler, getPrincipal := nextHandler()
	auth := NewAuthenticator(&stubValidator{claims: &JWTClaims{
		Subject: "sub-guid-2",
		Raw:     map[string]interface{}{"sub": "sub-guid-2"},
	}}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	w := httptest.NewRecorder()

	auth.Middleware()(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	name, found := getPrincipal()
	require.True(t, found)
	assert.Equal(t, "sub-guid-2", name)
}

func TestAuth_InvalidToken(t *testing.T) {
	auth := NewAuthenticator(&stubValidator{err: fmt.Errorf("token expired")}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	w := httptest.NewRecorder()

	auth.Middleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be called")
	})).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_MissingBearer(t *testing.T) {
	auth := NewAuthenticator(&stubValidator{claims: &JWTClaims{Subject: "x"}}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	auth.Middleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be called")
	})).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_EmptySubject(t *testing.T) {
	auth := NewAuthenticator(&stubValidator{claims: &JWTClaims{
		Subject: "",
		Raw:     map[string]interface{}{},
	}}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer no-sub-token")
	w := httptest.NewRecorder()

	auth.Middleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be called")
	})).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTriggerAuth(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		header   string
		wantCode int
	}{
		{"matching secret", "s3cret", "s3cret", http.StatusOK},
		{"wrong secret", "s3cret", "nope", http.StatusUnauthorized},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"disabled check", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := TriggerAuth(tt.secret)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/v1/reconcile", nil)
			if tt.header != "" {
				req.Header.Set("X-Trigger-Secret", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func strPtr(s string) *string {
	return &s
}
