package status

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event types broadcast by the daemon.
const (
	EventBlink        = "status.blink"
	EventFanState     = "fan.state"
	EventNetworkState = "network.state"
	EventBusState     = "bus.state"

	msgTypeEvent = "event"

	// sendBufferSize is the per-client outbound message buffer size.
	sendBufferSize = 64

	// maxMessageSize bounds inbound frames; clients only send pings.
	maxMessageSize = 512
)

// Message is the JSON frame sent to websocket clients.
type Message struct {
	Type      string `json:"type"`
	EventType string `json:"event_type"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload,omitempty"`
}

// BlinkPayload is the payload of EventBlink.
type BlinkPayload struct {
	RateHz   float64 `json:"rate_hz"`
	Blinking bool    `json:"blinking"`
}

// LinkPayload is the payload of EventNetworkState and EventBusState.
type LinkPayload struct {
	State string `json:"state"`
	Up    bool   `json:"up"`
}

// FanStatePayload is the payload of EventFanState.
type FanStatePayload struct {
	Device      string `json:"device"`
	Source      string `json:"source"`
	Power       bool   `json:"power"`
	Speed       string `json:"speed"`
	Oscillation bool   `json:"oscillation"`
}

// Logger defines the logging interface for the hub.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Hub fans events out to websocket clients. The latest message of each event
// type is kept and replayed to clients when they connect.
type Hub struct {
	pingInterval time.Duration
	pongTimeout  time.Duration
	logger       Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	latest  map[string][]byte
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Status is read-only and served on the local network
		return true
	},
}

// NewHub creates a hub with the given keepalive settings.
func NewHub(pingInterval, pongTimeout time.Duration) *Hub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if pongTimeout <= 0 {
		pongTimeout = 10 * time.Second
	}
	return &Hub{
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		logger:       noopLogger{},
		clients:      make(map[*client]struct{}),
		latest:       make(map[string][]byte),
	}
}

// SetLogger sets the logger for the hub.
func (h *Hub) SetLogger(logger Logger) {
	h.logger = logger
}

// Follow subscribes the hub to a Light so every rate change is broadcast.
func (h *Hub) Follow(light *Light) {
	light.Observe(func(rateHz float64) {
		h.Broadcast(EventBlink, BlinkPayload{RateHz: rateHz, Blinking: rateHz > 0})
	})
}

// Broadcast sends an event to every connected client.
func (h *Hub) Broadcast(eventType string, payload any) {
	data, err := json.Marshal(Message{
		Type:      msgTypeEvent,
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal status event", "event_type", eventType, "error", err)
		return
	}

	h.mu.Lock()
	h.latest[eventType] = data
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.trySend(data)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket and streams events.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	for _, data := range h.latest {
		c.trySend(data)
	}
	h.mu.Unlock()
	h.logger.Debug("status client connected", "clients", h.ClientCount())

	go c.writePump()
	go c.readPump()
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if existed {
		close(c.send)
	}
	h.logger.Debug("status client disconnected", "clients", h.ClientCount())
}

// readPump discards inbound frames; it exists to service pongs and detect close.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	wait := c.hub.pingInterval + c.hub.pongTimeout
	c.conn.SetReadLimit(maxMessageSize)
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("status websocket read error", "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.pongTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.pongTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend queues data without blocking. Slow clients miss events.
func (c *client) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
	}
}
