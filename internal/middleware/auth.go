package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

type principalKey struct{}

// WithPrincipal stores the authenticated principal name in the context.
func WithPrincipal(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, principalKey{}, name)
}

// PrincipalFromContext extracts the principal name from the context.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(principalKey{}).(string)
	return name, ok
}

// Authenticator guards the dashboard endpoints with a bearer JWT.
type Authenticator struct {
	validator JWTValidator
	logger    *slog.Logger
}

// NewAuthenticator creates a bearer-token authenticator backed by the given
// validator.
func NewAuthenticator(validator JWTValidator, logger *slog.Logger) *Authenticator {
	return &Authenticator{validator: validator, logger: logger}
}

// Middleware returns the bearer-auth middleware. Requests without a valid
// token get 401; valid tokens put the subject (email when present) on the
// context as the principal.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeUnauthorized(w, "missing bearer token")
				return
			}
			tokenStr := strings.TrimPrefix(auth, "Bearer ")

			claims, err := a.validator.Validate(r.Context(), tokenStr)
			if err != nil {
				a.logger.Debug("token rejected", "error", err)
				writeUnauthorized(w, "invalid token")
				return
			}

			name := claims.Subject
			if claims.Email != nil && *claims.Email != "" {
				name = *claims.Email
			}
			if name == "" {
				writeUnauthorized(w, "token carries no subject")
				return
			}

			ctx := WithPrincipal(r.Context(), name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TriggerAuth guards the mutation trigger endpoints (reconcile, teardown)
// with a shared secret supplied in the X-Trigger-Secret header. An empty
// configured secret disables the check; config refuses that in production.
func TriggerAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret != "" {
				got := r.Header.Get("X-Trigger-Secret")
				if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
					writeUnauthorized(w, "invalid trigger secret")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    http.StatusUnauthorized,
		"message": "unauthorized: " + message,
	})
}
