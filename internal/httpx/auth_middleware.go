package httpx

import (
	"net/http"
	"strings"
)

// TokenVerifier checks an admin session token.
type TokenVerifier interface {
	Verify(token string) error
}

// AdminSessionMiddleware marks the request as admin when it carries a valid
// bearer token or session cookie. It never rejects a request.
func AdminSessionMiddleware(v TokenVerifier, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimPrefix(authHeader, "Bearer ")
			} else if c, err := r.Cookie(cookieName); err == nil {
				token = c.Value
			}

			if token != "" && v.Verify(token) == nil {
				r = r.WithContext(ContextWithAdmin(r.Context()))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects requests without an admin session.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r) {
			JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Admin session required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
