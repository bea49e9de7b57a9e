package route

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/TeamViewMore/Poksin-Webcam/internal/config"
	"github.com/TeamViewMore/Poksin-Webcam/internal/handler"
	"github.com/TeamViewMore/Poksin-Webcam/internal/logger"
	"github.com/TeamViewMore/Poksin-Webcam/internal/middleware"
	"github.com/TeamViewMore/Poksin-Webcam/internal/model"
)

// Services groups what the handlers depend on.
type Services struct {
	Sessions   handler.SessionManager
	Evidence   handler.EvidenceReader
	Categories model.Categories
	Uploader   handler.Uploader
	Hub        handler.NoticeHub
	Login      handler.LoginClient
	Tokens     interface {
		handler.TokenIssuer
		middleware.TokenValidator
	}
}

// pageHandler serves staticDir/name.html if the file exists; otherwise 404.
func pageHandler(staticDir, name string) http.HandlerFunc {
	filePath := filepath.Join(staticDir, name+".html")
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers HTTP routes, static file serving, API endpoints,
// and wraps the mux with the session middleware.
func SetupRoutes(svc Services, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDirectory))))

	if cfg.StorageBackend == "local" {
		mux.Handle("GET /media/", http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.MediaDirectory()))))
	}

	// Pages
	mux.HandleFunc("GET /{$}", pageHandler(cfg.StaticDirectory, "index"))
	mux.HandleFunc("GET /webcam-stream/{id}/", pageHandler(cfg.StaticDirectory, "webcam"))

	// Live stream
	mux.HandleFunc("GET /video_feed/{id}/", handler.VideoFeedHandler(svc.Sessions, logger))
	mux.HandleFunc("GET /video_feed/{id}/watch", handler.WatchHandler(svc.Sessions))

	// API endpoints
	mux.HandleFunc("POST /api/upload", handler.UploadHandler(svc.Uploader, cfg.UploadMaxBytes, logger))
	mux.HandleFunc("GET /api/evidence", handler.ListEvidenceHandler(svc.Evidence, svc.Categories, logger))
	mux.HandleFunc("GET /api/evidence/{id}", handler.GetEvidenceHandler(svc.Evidence, logger))
	mux.HandleFunc("GET /api/sessions", handler.SessionsHandler(svc.Sessions, logger))
	mux.HandleFunc("GET /api/events", handler.EventsWebsocketHandler(svc.Hub, logger))

	// Log endpoints
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(logger))
	mux.HandleFunc("POST /logs/{level}/clear", handler.ClearLogsHandler(logger))

	// Auth endpoints
	mux.HandleFunc("GET /login", handler.LoginPageHandler(cfg.StaticDirectory))
	mux.HandleFunc("POST /login", handler.LoginHandler(svc.Login, svc.Tokens, logger))
	mux.HandleFunc("GET /logout", handler.LogoutHandler)

	return middleware.AuthMiddleware(svc.Tokens)(mux)
}
