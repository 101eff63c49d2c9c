package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ernie/pitchside/internal/domain"
)

// getClientIP extracts the real client IP, checking proxy headers first
func getClientIP(r *http.Request) string {
	// X-Forwarded-For may contain multiple IPs, first is the client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// WebSocketClient represents a connected WebSocket client
type WebSocketClient struct {
	hub        *WebSocketHub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
}

// WebSocketHub fans events out to connected WebSocket clients
type WebSocketHub struct {
	name       string
	clients    map[*WebSocketClient]bool
	broadcast  chan []byte
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	onCount    func(n int)
	lastCount  int
	done       chan struct{}
	mu         sync.RWMutex
	log        zerolog.Logger
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub(name string, log zerolog.Logger) *WebSocketHub {
	return &WebSocketHub{
		name:       name,
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		done:       make(chan struct{}),
		log:        log.With().Str("hub", name).Logger(),
	}
}

// OnCount registers a callback run from the hub loop whenever the number
// of clients changes. Must be set before Run.
func (h *WebSocketHub) OnCount(f func(n int)) {
	h.onCount = f
}

// Run starts the hub's main loop
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.counted(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Info().Str("remote", client.remoteAddr).Int("clients", n).Msg("WebSocket client connected")
			h.counted(n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Info().Str("remote", client.remoteAddr).Int("clients", n).Msg("WebSocket client disconnected")
			h.counted(n)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's buffer is full, close connection
					close(client.send)
					delete(h.clients, client)
					h.log.Warn().Str("remote", client.remoteAddr).Msg("WebSocket client too slow, dropped")
				}
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.counted(n)
		}
	}
}

// counted reports n to the callback when it differs from the last report
func (h *WebSocketHub) counted(n int) {
	if n == h.lastCount {
		return
	}
	h.lastCount = n
	if h.onCount != nil {
		h.onCount(n)
	}
}

// Broadcast sends an event to all connected clients
func (h *WebSocketHub) Broadcast(event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("event", event.Type).Msg("Marshaling event")
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.log.Warn().Str("event", event.Type).Msg("Broadcast channel full, dropping event")
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// serveWebSocket upgrades the request and attaches the connection to hub
func (r *Router) serveWebSocket(hub *WebSocketHub, w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WebSocketClient{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 256),
		remoteAddr: getClientIP(req),
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// handleWebSocket serves the spectator feed
func (r *Router) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	r.serveWebSocket(r.liveHub, w, req)
}

// handleHostWebSocket serves delivery instructions to the game server shim
func (r *Router) handleHostWebSocket(w http.ResponseWriter, req *http.Request) {
	r.serveWebSocket(r.hostHub, w, req)
}

// readPump reads messages from the WebSocket (and handles close)
func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				c.hub.log.Warn().Err(err).Str("remote", c.remoteAddr).Msg("WebSocket read error")
			}
			break
		}
		// inbound traffic goes through the HTTP intake, not the socket
	}
}

// writePump sends messages to the WebSocket, one event per frame
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
