package middleware

import (
	"net/http"
	"strings"

	"github.com/ferg-cod3s/find-anything/internal/security/auth"
)

// AuthMiddleware enforces the bearer-token check on every request. There is no per-endpoint skip list: every API path requires the
// token, including health and admin endpoints.
type AuthMiddleware struct {
	authenticator *auth.StaticTokenAuthenticator
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(authenticator *auth.StaticTokenAuthenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

// Middleware returns an HTTP middleware function that validates the bearer
// token on every request.
func (am *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := extractToken(r)
		if !ok || !am.authenticator.Authenticate(token) {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractToken reads the bearer token from the Authorization header.
func extractToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", false
	}
	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", false
	}
	return token, true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"missing or invalid bearer token"}`))
}
