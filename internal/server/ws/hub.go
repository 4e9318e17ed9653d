// Package ws streams per-order status events to websocket subscribers.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/routerlabs/dexrouter/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 512

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 64
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. In production, restrict this to known origins.
		return true
	},
}

// wsConn is the subset of *websocket.Conn the hub relies on.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// client is one websocket subscriber following a single order.
type client struct {
	hub     *Hub
	orderID string
	conn    wsConn
	send    chan []byte

	closeOnce sync.Once
}

func newClient(h *Hub, orderID string, conn wsConn) *client {
	return &client{
		hub:     h,
		orderID: orderID,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// Hub tracks at most one websocket subscriber per order ID and delivers
// status events to it. Delivery is fire-and-forget: events for orders without
// a subscriber, or for a subscriber whose buffer is full, are dropped.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	logger  *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		logger:  logger.With(slog.String("component", "ws")),
	}
}

// register attaches a client for its order, replacing and closing any prior
// subscriber for the same order.
func (h *Hub) register(c *client) {
	h.mu.Lock()
	prev := h.clients[c.orderID]
	h.clients[c.orderID] = c
	h.mu.Unlock()

	if prev != nil {
		prev.close()
	}

	h.logger.Debug("client connected",
		slog.String("order_id", c.orderID),
		slog.Int("total_clients", h.ConnectionCount()),
	)
}

// unregister detaches a client if it is still the current subscriber for its
// order.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if h.clients[c.orderID] == c {
		delete(h.clients, c.orderID)
	}
	h.mu.Unlock()

	c.close()

	h.logger.Debug("client disconnected",
		slog.String("order_id", c.orderID),
		slog.Int("total_clients", h.ConnectionCount()),
	)
}

// Send delivers a status event to the order's subscriber, if any. It never
// blocks; when the subscriber cannot keep up the event is dropped.
func (h *Hub) Send(orderID string, event domain.StatusEvent) {
	h.mu.RLock()
	c := h.clients[orderID]
	h.mu.RUnlock()

	if c == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal status event failed",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return
	}

	defer func() {
		// The send channel may close concurrently with delivery.
		_ = recover()
	}()

	select {
	case c.send <- data:
	default:
		h.logger.Warn("dropping event for slow client",
			slog.String("order_id", orderID),
			slog.String("status", string(event.Status)),
		)
	}
}

// IsConnected reports whether the order currently has a subscriber.
func (h *Hub) IsConnected(orderID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[orderID] != nil
}

// ConnectionCount returns the number of attached subscribers.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// connectedAck is the first frame sent to a new subscriber.
type connectedAck struct {
	Type    string `json:"type"`
	OrderID string `json:"order_id"`
}

// HandleOrderStream upgrades the request to a websocket connection streaming
// status events for one order.
// GET /ws/orders/{id}
func (h *Hub) HandleOrderStream(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")
	if orderID == "" {
		http.Error(w, "missing order id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(h, orderID, conn)
	h.register(c)

	ack, _ := json.Marshal(connectedAck{Type: "connected", OrderID: orderID})
	select {
	case c.send <- ack:
	default:
	}

	go c.writePump()
	go c.readPump()
}

// readPump discards client frames, keeping the read side alive for pong
// handling and close detection.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close error",
					slog.String("order_id", c.orderID),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// writePump pumps events from the hub to the websocket connection and sends
// periodic ping frames for keepalive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
