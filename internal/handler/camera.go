package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/TeamViewMore/Poksin-Webcam/internal/logger"
	"github.com/TeamViewMore/Poksin-Webcam/internal/middleware"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/pipeline"
)

// SessionManager opens capture sessions and exposes the watcher feed.
type SessionManager interface {
	Open(userID int64) (*pipeline.Session, error)
	Sessions() []pipeline.SessionInfo
	Watch() http.Handler
}

// pathUserID reads the {id} path segment and checks it against the logged-in user.
func pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return 0, false
	}
	if current, ok := middleware.UserID(r.Context()); ok && current != id {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return 0, false
	}
	return id, true
}

// VideoFeedHandler streams the annotated live feed of a new capture session as
// multipart/x-mixed-replace. The session ends when the device fails or the client leaves.
func VideoFeedHandler(sessions SessionManager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUserID(w, r)
		if !ok {
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		session, err := sessions.Open(userID)
		if errors.Is(err, pipeline.ErrDeviceBusy) {
			http.Error(w, "Camera is in use, watch the running stream instead", http.StatusConflict)
			return
		}
		if err != nil {
			logger.Error("Failed to open capture session for user %d: %v", userID, err)
			http.Error(w, "Camera unavailable", http.StatusServiceUnavailable)
			return
		}
		defer session.Close()

		w.Header().Set("Content-Type", pipeline.ContentType)
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			part, err := session.Next(r.Context())
			if err != nil {
				if err != io.EOF {
					logger.Info("Stream of session %s stopped: %v", session.ID, err)
				}
				return
			}
			if _, err := w.Write(part); err != nil {
				logger.Info("Viewer of session %s disconnected: %v", session.ID, err)
				return
			}
			flusher.Flush()
		}
	}
}

// WatchHandler serves the running session's annotated frames to extra viewers.
func WatchHandler(sessions SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := pathUserID(w, r); !ok {
			return
		}
		sessions.Watch().ServeHTTP(w, r)
	}
}

// SessionsHandler lists running capture sessions.
func SessionsHandler(sessions SessionManager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(sessions.Sessions()); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}
