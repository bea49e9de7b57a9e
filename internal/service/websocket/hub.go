package websocket

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TeamViewMore/Poksin-Webcam/internal/dto"
	"github.com/TeamViewMore/Poksin-Webcam/internal/logger"
)

const writeWait = 5 * time.Second

// client is one dashboard connection. userID 0 receives every notice.
type client struct {
	conn   *websocket.Conn
	userID int64
}

type message struct {
	userID  int64
	payload []byte
}

// HubService pushes evidence notices to connected dashboards.
type HubService struct {
	clients    map[*websocket.Conn]*client
	broadcast  chan message
	register   chan *client
	unregister chan *websocket.Conn
	stop       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
	logger     *logger.Logger
}

// NewHubService creates a hub. Run must be started before clients register.
func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]*client),
		broadcast:  make(chan message, 64),
		register:   make(chan *client),
		unregister: make(chan *websocket.Conn),
		stop:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serializes registration and delivery until Stop.
func (h *HubService) Run() {
	for {
		select {
		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c.conn] = c
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Dashboard connected (user %d). Total: %d", c.userID, total)

		case conn := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Dashboard disconnected. Total: %d", total)

		case msg := <-h.broadcast:
			h.mutex.Lock()
			for conn, c := range h.clients {
				if c.userID != 0 && c.userID != msg.userID {
					continue
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
					h.logger.Error("Error sending notice: %v", err)
					delete(h.clients, conn)
					conn.Close()
				}
			}
			h.mutex.Unlock()

		case <-h.stop:
			h.mutex.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// Register adds a connection that receives notices for userID (0 for all).
// After Stop the connection is closed instead.
func (h *HubService) Register(conn *websocket.Conn, userID int64) {
	select {
	case h.register <- &client{conn: conn, userID: userID}:
	case <-h.stop:
		conn.Close()
	}
}

// Unregister removes and closes a connection.
func (h *HubService) Unregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.stop:
		conn.Close()
	}
}

// Publish queues notice for delivery. It never blocks the caller on slow dashboards.
func (h *HubService) Publish(notice dto.EvidenceNotice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}
	select {
	case h.broadcast <- message{userID: notice.UserID, payload: payload}:
		return nil
	default:
		return fmt.Errorf("dashboard queue full, notice %d dropped", notice.EvidenceID)
	}
}

// Stop closes every connection and ends Run.
func (h *HubService) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// GetClientCount returns the number of connected dashboards.
func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
