// Package ws fans overlay events out to connected dashboard clients.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"car2x-dashboard/internal/log"
	"car2x-dashboard/internal/metrics"
	"car2x-dashboard/internal/overlay"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub broadcasts overlay events to every connected client and hands a fresh
// snapshot to each new connection. It implements overlay.Sink.
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	snapshot func() any
	log      zerolog.Logger
}

// NewHub builds a hub; snapshot produces the initial-state document sent on
// connect.
func NewHub(snapshot func() any) *Hub {
	return &Hub{
		clients:  make(map[*websocket.Conn]struct{}),
		snapshot: snapshot,
		log:      log.WithComponent("ws"),
	}
}

// Publish implements overlay.Sink.
func (h *Hub) Publish(ev overlay.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal overlay event")
		return
	}
	h.mu.Lock()
	for c := range h.clients {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			c.Close()
			delete(h.clients, c)
		}
	}
	metrics.WSClients.Set(float64(len(h.clients)))
	h.mu.Unlock()
}

// HandleWebSocket upgrades the request and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	h.add(conn)
	go h.readPump(conn)

	if h.snapshot != nil {
		if data, err := json.Marshal(h.snapshot()); err == nil {
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
	}
}

func (h *Hub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	metrics.WSClients.Set(float64(len(h.clients)))
	h.mu.Unlock()
}

func (h *Hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, c)
	metrics.WSClients.Set(float64(len(h.clients)))
	h.mu.Unlock()
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) readPump(c *websocket.Conn) {
	defer func() {
		h.remove(c)
		_ = c.Close()
	}()
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
