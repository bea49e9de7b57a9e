package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/TeamViewMore/Poksin-Webcam/internal/logger"
	"github.com/TeamViewMore/Poksin-Webcam/internal/middleware"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NoticeHub delivers evidence notices to dashboard connections.
type NoticeHub interface {
	Register(conn *websocket.Conn, userID int64)
	Unregister(conn *websocket.Conn)
}

// EventsWebsocketHandler subscribes a dashboard to the logged-in user's evidence notices.
func EventsWebsocketHandler(hub NoticeHub, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		hub.Register(connection, userID)
		defer hub.Unregister(connection)

		// Reads only detect the close; dashboards send nothing.
		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Dashboard of user %d disconnected normally", userID)
				} else {
					logger.Warning("Dashboard of user %d disconnected with error: %v", userID, err)
				}
				return
			}
		}
	}
}
