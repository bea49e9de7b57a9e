package route

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/TeamViewMore/Poksin-Webcam/internal/config"
	"github.com/TeamViewMore/Poksin-Webcam/internal/dto"
	"github.com/TeamViewMore/Poksin-Webcam/internal/logger"
	"github.com/TeamViewMore/Poksin-Webcam/internal/middleware"
	"github.com/TeamViewMore/Poksin-Webcam/internal/model"
	"github.com/TeamViewMore/Poksin-Webcam/internal/repository"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/auth"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/pipeline"
)

type emptyEvidence struct{}

func (emptyEvidence) GetByID(context.Context, int64) (*model.Evidence, error) {
	return nil, repository.ErrNotFound
}

func (emptyEvidence) GetAll(context.Context, *dto.EvidenceFilter) ([]model.Evidence, error) {
	return nil, nil
}

func (emptyEvidence) GetTotalCount(context.Context, *dto.EvidenceFilter) (int, error) {
	return 0, nil
}

type noUploads struct{}

func (noUploads) RecordUpload(context.Context, dto.UploadRequest) (*model.Evidence, error) {
	return &model.Evidence{ID: 1}, nil
}

type nopHub struct{}

func (nopHub) Register(*gorilla.Conn, int64) {}
func (nopHub) Unregister(*gorilla.Conn) {}

type okLogin struct{}

func (okLogin) Login(context.Context, string, string) (int64, error) { return 7, nil }

func setupRouter(t *testing.T) (http.Handler, *auth.TokenManager) {
	t.Helper()
	staticDir := t.TempDir()
	for _, page := range []string{"index", "webcam", "login"} {
		if err := os.WriteFile(filepath.Join(staticDir, page+".html"), []byte("<html>"+page+"</html>"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := &config.Config{StaticDirectory: staticDir, UploadMaxBytes: 1 << 20, StorageBackend: "s3"}
	log := logger.NewLogger(&config.Config{LogDirectory: t.TempDir()})
	t.Cleanup(func() { log.Close() })

	tokens := auth.NewTokenManager("route-secret", time.Hour)
	manager := pipeline.NewManager(pipeline.Options{
		Acquire: func() (pipeline.Source, error) { return nil, errors.New("no camera") },
		Logger:  log,
	})

	return SetupRoutes(Services{
		Sessions:   manager,
		Evidence:   emptyEvidence{},
		Categories: model.NewCategories(model.Category{ID: 1}, model.Category{ID: 2}),
		Uploader:   noUploads{},
		Hub:        nopHub{},
		Login:      okLogin{},
		Tokens:     tokens,
	}, cfg, log), tokens
}

func TestSetupRoutes(t *testing.T) {
	router, tokens := setupRouter(t)
	token, _, err := tokens.GenerateToken(7)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		method   string
		target   string
		loggedIn bool
		expected int
		body     string
	}{
		{"login page is public", http.MethodGet, "/login", false, http.StatusOK, "login"},
		{"index redirects to login", http.MethodGet, "/", false, http.StatusSeeOther, ""},
		{"index with session", http.MethodGet, "/", true, http.StatusOK, "index"},
		{"webcam page", http.MethodGet, "/webcam-stream/7/", true, http.StatusOK, "webcam"},
		{"unknown page", http.MethodGet, "/settings", true, http.StatusNotFound, ""},
		{"api needs session", http.MethodGet, "/api/evidence", false, http.StatusUnauthorized, ""},
		{"evidence list", http.MethodGet, "/api/evidence", true, http.StatusOK, `"records":[]`},
		{"evidence missing", http.MethodGet, "/api/evidence/3", true, http.StatusNotFound, ""},
		{"sessions", http.MethodGet, "/api/sessions", true, http.StatusOK, "[]"},
		{"stream without camera", http.MethodGet, "/video_feed/7/", true, http.StatusServiceUnavailable, ""},
		{"stream of another user", http.MethodGet, "/video_feed/8/", true, http.StatusForbidden, ""},
		{"upload is public", http.MethodPost, "/api/upload?userId=7", false, http.StatusOK, "success"},
		{"upload wrong method", http.MethodGet, "/api/upload", true, http.StatusMethodNotAllowed, ""},
		{"logs", http.MethodGet, "/logs/info", true, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader("data"))
			if tt.loggedIn {
				req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.expected {
				t.Fatalf("Expected %d, got %d: %s", tt.expected, rec.Code, rec.Body.String())
			}
			if tt.body != "" && !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("Expected %q in body %q", tt.body, rec.Body.String())
			}
		})
	}
}

func TestSetupRoutes_LoginSetsCookie(t *testing.T) {
	router, tokens := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("username=kim&password=pw"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/webcam-stream/7/" {
		t.Fatalf("Unexpected login response %d %q", rec.Code, rec.Header().Get("Location"))
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("Expected one cookie, got %v", cookies)
	}
	if claims, err := tokens.ValidateToken(cookies[0].Value); err != nil || claims.UserID != 7 {
		t.Errorf("Unexpected session token: %v", err)
	}
}
