package telemetry

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// newUpgrader creates a WebSocket upgrader. When allowAllOrigins is false,
// only same-origin requests are accepted (Origin header must match Host).
func newUpgrader(allowAllOrigins bool) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowAllOrigins {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // non-browser clients don't send Origin
			}
			host := r.Host
			return strings.Contains(origin, host)
		},
	}
}

// Hub fans out telemetry Snapshots to connected dashboard WebSocket
// clients.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader
	logger   *slog.Logger
	done     chan struct{}
}

// NewHub creates a new telemetry broadcast hub.
func NewHub(logger *slog.Logger, allowAllOrigins bool) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:  make(map[*websocket.Conn]bool),
		upgrader: newUpgrader(allowAllOrigins),
		logger:   logger.With("component", "telemetry.Hub"),
		done:     make(chan struct{}),
	}
}

// Run blocks until Close is called.
func (h *Hub) Run() {
	<-h.done
}

// Close shuts down the hub and all connections.
func (h *Hub) Close() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.Close()
		delete(h.clients, conn)
	}
}

// HandleWebSocket upgrades an HTTP connection to a telemetry stream.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	h.logger.Debug("telemetry client connected", "remote", conn.RemoteAddr())

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			_ = conn.Close()
			h.logger.Debug("telemetry client disconnected", "remote", conn.RemoteAddr())
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// Broadcast pushes a Snapshot to every connected client.
func (h *Hub) Broadcast(snap Snapshot) {
	msg, err := json.Marshal(map[string]interface{}{
		"type": "telemetry",
		"data": snap,
	})
	if err != nil {
		h.logger.Error("failed to marshal telemetry message", "error", err)
		return
	}

	// Collect dead connections under RLock, then clean up under WLock to
	// avoid upgrading a held RLock to a Lock.
	h.mu.RLock()
	var dead []*websocket.Conn
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("failed to write to telemetry client", "error", err)
			dead = append(dead, conn)
		}
	}
	h.mu.RUnlock()

	if len(dead) > 0 {
		h.mu.Lock()
		for _, c := range dead {
			delete(h.clients, c)
			_ = c.Close()
		}
		h.mu.Unlock()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
