package adminapi

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"deadfall/internal/ai"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // loopback-only surface
}

// Hub fans a periodic snapshot push out to every connected spectator
// websocket: register/unregister/broadcast channels guarded by a single
// goroutine, backpressure handled by dropping a broadcast rather than
// blocking the simulation loop that calls Push.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}

	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
}

// NewHub returns a hub that must be started with Run in its own
// goroutine.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run processes register/unregister/broadcast events until stop is
// closed.
func (h *Hub) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = struct{}{}
			h.mu.Unlock()
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					go func(c *websocket.Conn) { h.unregister <- c }(conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ServeHTTP upgrades the request to a websocket and registers it with
// the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[adminapi] websocket upgrade failed: %v", err)
		return
	}
	h.register <- conn
}

// Push enqueues one snapshot for broadcast, dropping it silently if
// the broadcast channel is saturated (spectators are a best-effort
// feed, never a backpressure source on the simulation loop).
func (h *Hub) Push(snap *ai.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- payload:
	default:
	}
}

// ClientCount reports the number of currently connected spectators.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartPushLoop periodically pushes provider's current snapshot to
// every connected spectator until stop is closed.
func StartPushLoop(hub *Hub, provider StateProvider, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if hub.ClientCount() == 0 {
				continue
			}
			hub.Push(provider.Snapshot())
		}
	}
}
