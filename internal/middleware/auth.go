package middleware

import (
	"context"
	"net/http"

	"github.com/AnshRaj112/echoes-backend/internal/services"
)

type sessionContextKey struct{}

// RequireSession redirects to /login unless the request carries a live session cookie.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _, ok := services.SessionFromRequest(r.Context(), r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CurrentSession returns the session stored by RequireSession.
func CurrentSession(r *http.Request) (*services.Session, bool) {
	sess, ok := r.Context().Value(sessionContextKey{}).(*services.Session)
	return sess, ok && sess != nil
}
