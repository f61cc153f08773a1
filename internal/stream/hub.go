// Package stream pushes fleet lifecycle events to operator dashboards over
// WebSocket.
package stream

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fleetd/internal/events"
)

const (
	sendBuffer   = 64
	pingInterval = 30 * time.Second
	readTimeout  = 90 * time.Second
	writeTimeout = 10 * time.Second
)

// Frame is the wire format for messages sent over the WebSocket.
type Frame struct {
	ID    string        `json:"id"`
	Type  string        `json:"type"` // "event" or "hello"
	Event *events.Event `json:"event,omitempty"`
}

// Hub fans bus events out to connected WebSocket clients.
type Hub struct {
	bus      *events.Bus
	upgrader websocket.Upgrader

	mu          sync.Mutex
	clients     map[string]*client
	unsubscribe func()
}

type client struct {
	id     string
	conn   *websocket.Conn
	guid   string
	types  map[events.EventType]bool
	send   chan Frame
	done   chan struct{}
	closed sync.Once
}

// NewHub creates a hub over bus.
func NewHub(bus *events.Bus) *Hub {
	return &Hub{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// Start subscribes the hub to every bus event.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unsubscribe != nil {
		return
	}
	h.unsubscribe = h.bus.Subscribe(h.broadcast)
}

// HandleConnection upgrades the request to a WebSocket and streams events
// until the client disconnects.
//
// Query parameters:
//   - guid: optional, only events for this agent
//   - types: optional, comma-separated event types
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed: %v", err)
		return
	}

	c := &client{
		id:    uuid.NewString(),
		conn:  conn,
		guid:  r.URL.Query().Get("guid"),
		types: parseTypes(r.URL.Query().Get("types")),
		send:  make(chan Frame, sendBuffer),
		done:  make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	log.Printf("[WS] Stream client %s connected from %s", c.id, r.RemoteAddr)

	c.send <- Frame{ID: uuid.NewString(), Type: "hello"}
	go h.writeLoop(c)
	h.readLoop(c)

	h.remove(c)
	log.Printf("[WS] Stream client %s disconnected", c.id)
}

// readLoop discards client messages and detects disconnects.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(4 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error for %s: %v", c.id, err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
}

// writeLoop is the only writer of data frames for c.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case f := <-c.send:
			data, err := json.Marshal(f)
			if err != nil {
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				c.close()
				return
			}
		}
	}
}

func (h *Hub) broadcast(e events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.clients {
		if !c.wants(e) {
			continue
		}
		select {
		case c.send <- Frame{ID: uuid.NewString(), Type: "event", Event: &e}:
		default:
			log.Printf("[WS] Client %s too slow, dropping %s", c.id, e.Type)
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if h.clients[c.id] == c {
		delete(h.clients, c.id)
	}
	h.mu.Unlock()
	c.close()
}

func (c *client) wants(e events.Event) bool {
	if c.guid != "" && c.guid != e.AgentGUID {
		return false
	}
	return c.types == nil || c.types[e.Type]
}

func (c *client) close() {
	c.closed.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func parseTypes(raw string) map[events.EventType]bool {
	if raw == "" {
		return nil
	}
	out := make(map[events.EventType]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out[events.EventType(t)] = true
		}
	}
	return out
}

// ActiveConnections returns the number of connected stream clients.
func (h *Hub) ActiveConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll unsubscribes from the bus and terminates every connection.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
	for id, c := range h.clients {
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(5*time.Second),
		)
		c.close()
		delete(h.clients, id)
	}
}
