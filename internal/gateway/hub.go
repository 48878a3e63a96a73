package gateway

import (
	"log"
	"net/http"
	"sync"
	"time"

	"integrate-dash/internal/metrics"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans the latest portfolio snapshot out to WebSocket clients. New
// clients receive the latest snapshot immediately on connect.
type Hub struct {
	Metrics *metrics.Metrics

	mu      sync.RWMutex
	clients map[*wsClient]bool
	latest  []byte
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// NewHub creates an empty hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		Metrics: m,
		clients: make(map[*wsClient]bool),
	}
}

// Broadcast stores the snapshot as the latest state and sends it to every
// connected client. Slow clients are skipped rather than blocked on.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	h.latest = payload
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
		}
	}
	h.mu.Unlock()
}

// Latest returns the most recent snapshot payload, or nil before the first
// build completes.
func (h *Hub) Latest() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades the request and registers the client.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 16),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	latest := h.latest
	h.mu.Unlock()

	if h.Metrics != nil {
		h.Metrics.WSClients.Set(float64(count))
	}
	log.Printf("[gateway] ws client connected (%d total)", count)

	if latest != nil {
		client.send <- latest
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) removeClient(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if h.Metrics != nil {
		h.Metrics.WSClients.Set(float64(count))
	}
	log.Printf("[gateway] ws client disconnected (%d total)", count)
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Clients only receive; incoming frames just keep the connection alive.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
