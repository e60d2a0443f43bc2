// websocket.go - Push channel for ingestion status events
package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/tablechat/backend/internal/ingest"
)

// wsEvent is the JSON envelope sent to websocket subscribers.
type wsEvent struct {
	Type      string             `json:"type"`
	Event     ingest.StatusEvent `json:"event"`
	Timestamp int64              `json:"timestamp"`
}

// Hub broadcasts ingestion status events to connected websocket clients.
// It implements ingest.Notifier.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewHub creates a websocket hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Publish broadcasts a status event to all connected clients. Clients whose
// write fails are dropped.
func (h *Hub) Publish(evt ingest.StatusEvent) {
	msg := wsEvent{
		Type:      "ingest:status",
		Event:     evt,
		Timestamp: time.Now().UnixMilli(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// HandleWebSocket upgrades the connection and keeps it subscribed until the
// client goes away. Incoming messages are only read to detect closure.
func (h *Hub) HandleWebSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.clients[ws] = struct{}{}
	h.mu.Unlock()

	fmt.Println("[WebSocket] Client subscribed to ingest events")

	defer func() {
		h.mu.Lock()
		delete(h.clients, ws)
		h.mu.Unlock()
		ws.Close()
	}()

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				fmt.Printf("[WebSocket] Connection error: %v\n", err)
			}
			return nil
		}
	}
}
