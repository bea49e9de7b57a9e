package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/TeamViewMore/Poksin-Webcam/internal/service/auth"
)

// SessionCookie holds the signed session token.
const SessionCookie = "poksin_session"

type contextKey struct{}

// WithUserID returns a context carrying the logged-in user id.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserID returns the logged-in user id stored by AuthMiddleware.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(contextKey{}).(int64)
	return id, ok
}

// TokenValidator validates session tokens.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// isPublic lists paths reachable without a session.
func isPublic(path string) bool {
	return path == "/login" ||
		path == "/logout" ||
		path == "/api/upload" ||
		strings.HasPrefix(path, "/static/") ||
		strings.HasPrefix(path, "/css/") ||
		strings.HasPrefix(path, "/js/")
}

// AuthMiddleware attaches the session user to the request context and keeps
// everything but public paths behind the login.
func AuthMiddleware(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cookie, err := r.Cookie(SessionCookie); err == nil {
				if claims, err := tokens.ValidateToken(cookie.Value); err == nil {
					r = r.WithContext(WithUserID(r.Context(), claims.UserID))
				}
			}

			if _, ok := UserID(r.Context()); ok || isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			// API and stream clients get 401, browsers go to the login page.
			if strings.HasPrefix(r.URL.Path, "/api/") ||
				strings.HasPrefix(r.URL.Path, "/video_feed/") ||
				r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		})
	}
}
