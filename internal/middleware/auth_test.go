package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/TeamViewMore/Poksin-Webcam/internal/service/auth"
)

func protected(t *testing.T, tokens *auth.TokenManager) http.Handler {
	t.Helper()
	return AuthMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := UserID(r.Context()); ok {
			w.Header().Set("X-User", strconv.FormatInt(id, 10))
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAuthMiddleware(t *testing.T) {
	tokens := auth.NewTokenManager("secret", time.Hour)
	valid, _, err := tokens.GenerateToken(9)
	if err != nil {
		t.Fatal(err)
	}
	h := protected(t, tokens)

	tests := []struct {
		name     string
		path     string
		cookie   string
		expected int
		location string
	}{
		{"login page is public", "/login", "", http.StatusOK, ""},
		{"upload is public", "/api/upload", "", http.StatusOK, ""},
		{"static is public", "/static/app.js", "", http.StatusOK, ""},
		{"page redirects", "/webcam-stream/9/", "", http.StatusSeeOther, "/login"},
		{"api is 401", "/api/evidence", "", http.StatusUnauthorized, ""},
		{"stream is 401", "/video_feed/9/", "", http.StatusUnauthorized, ""},
		{"bad token redirects", "/", "garbage", http.StatusSeeOther, "/login"},
		{"valid token passes", "/api/evidence", valid, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, rec.Code)
			}
			if tt.location != "" && rec.Header().Get("Location") != tt.location {
				t.Errorf("Expected redirect to %s, got %s", tt.location, rec.Header().Get("Location"))
			}
		})
	}
}

func TestAuthMiddleware_AttachesUserOnPublicPaths(t *testing.T) {
	tokens := auth.NewTokenManager("secret", time.Hour)
	token, _, _ := tokens.GenerateToken(4)

	var seen int64
	h := AuthMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/upload", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != 4 {
		t.Errorf("Expected user 4 on public path, got %d", seen)
	}
}
