package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/classware/quizdesk/internal/rbac"
)

// Middleware authenticates the bearer token, enforces the rotating
// session-token comparison against the DB, and attaches the student and
// role to the request context. It runs before every quiz operation, so a
// login on another device invalidates this one on its very next request.
func Middleware(a *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			claims, err := a.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			st, err := a.Authenticate(r.Context(), claims)
			if err != nil {
				if errors.Is(err, ErrSessionRevoked) {
					http.Error(w, "session invalidated, please login again", http.StatusUnauthorized)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := WithStudent(r.Context(), st)
			ctx = rbac.WithRole(ctx, roleOf(st))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
