package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/TeamViewMore/Poksin-Webcam/internal/logger"
	"github.com/TeamViewMore/Poksin-Webcam/internal/middleware"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/auth"
)

// LoginClient forwards credentials to the external login service.
type LoginClient interface {
	Login(ctx context.Context, username, password string) (int64, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	GenerateToken(userID int64) (string, time.Time, error)
}

// LoginPageHandler serves the login form.
func LoginPageHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(staticDir, "login.html"))
	}
}

// LoginHandler handles POST /login: credentials go to the login service, and on
// success the user gets a session cookie and is sent to their webcam page.
// Failures return to /login with an error message.
func LoginHandler(client LoginClient, tokens TokenIssuer, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.FormValue("username")
		password := r.FormValue("password")
		if username == "" || password == "" {
			redirectLoginError(w, r, "Enter your username and password.")
			return
		}

		userID, err := client.Login(r.Context(), username, password)
		if err != nil {
			logger.Warning("Login failed for %q: %v", username, err)
			switch {
			case errors.Is(err, auth.ErrMissingUserID):
				redirectLoginError(w, r, "Login failed: userId not found.")
			default:
				redirectLoginError(w, r, "Login failed. Check your username and password.")
			}
			return
		}

		token, expiresAt, err := tokens.GenerateToken(userID)
		if err != nil {
			logger.Error("Failed to sign session for user %d: %v", userID, err)
			redirectLoginError(w, r, "Login failed. Try again.")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookie,
			Value:    token,
			Path:     "/",
			Expires:  expiresAt,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		logger.Info("User %d logged in", userID)
		http.Redirect(w, r, fmt.Sprintf("/webcam-stream/%d/", userID), http.StatusSeeOther)
	}
}

func redirectLoginError(w http.ResponseWriter, r *http.Request, message string) {
	http.Redirect(w, r, "/login?error="+url.QueryEscape(message), http.StatusSeeOther)
}

// LogoutHandler clears the session cookie.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
