package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Authenticator turns a presented credential into a caller identity.
type Authenticator interface {
	Authenticate(token string) (*UserContext, error)
}

// Chain tries each authenticator in order and returns the first identity.
type Chain struct {
	authenticators []Authenticator
}

// NewChain creates a chained authenticator.
func NewChain(authenticators ...Authenticator) *Chain {
	return &Chain{authenticators: authenticators}
}

// Authenticate tries each authenticator in order.
func (c *Chain) Authenticate(token string) (*UserContext, error) {
	var lastErr error
	for _, a := range c.authenticators {
		uc, err := a.Authenticate(token)
		if err == nil && uc != nil {
			return uc, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	return nil, lastErr
}

// Verify interface compliance.
var _ Authenticator = (*Chain)(nil)

// Middleware extracts the bearer token or API key from the request,
// authenticates it, and stores the caller in the request context. Requests
// without a valid credential get 401.
func Middleware(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing authentication token")
				return
			}

			uc, err := authenticator.Authenticate(token)
			if err != nil || uc == nil {
				writeError(w, http.StatusUnauthorized, "invalid authentication token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), uc)))
		})
	}
}

// RequireAdmin rejects non-admin callers with 403. It must run inside
// Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uc := UserFromContext(r.Context())
		if uc == nil {
			writeError(w, http.StatusUnauthorized, "missing authentication token")
			return
		}
		if !uc.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractToken gets the bearer token from the Authorization header, falling
// back to the X-API-Key header.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
