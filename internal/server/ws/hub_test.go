package ws

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routerlabs/dexrouter/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubConn records frames written by the write pump.
type stubConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   chan struct{}
	once     sync.Once
}

func newStubConn() *stubConn {
	return &stubConn{closed: make(chan struct{})}
}

func (c *stubConn) WriteMessage(messageType int, data []byte) error {
	if messageType != websocket.TextMessage {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, append([]byte(nil), data...))
	return nil
}

func (c *stubConn) SetWriteDeadline(t time.Time) error { return nil }
func (c *stubConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *stubConn) SetReadLimit(limit int64)           {}
func (c *stubConn) SetPongHandler(h func(string) error) {}

func (c *stubConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, io.EOF
}

func (c *stubConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *stubConn) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.messages...)
}

func attach(h *Hub, orderID string, conn *stubConn) *client {
	c := newClient(h, orderID, conn)
	h.register(c)
	go c.writePump()
	return c
}

func TestSendDeliversEventToSubscriber(t *testing.T) {
	h := NewHub(testLogger())
	conn := newStubConn()
	c := attach(h, "order-1", conn)
	defer h.unregister(c)

	h.Send("order-1", domain.StatusEvent{
		OrderID: "order-1",
		Status:  domain.OrderStatusRouting,
	})

	require.Eventually(t, func() bool {
		return len(conn.written()) == 1
	}, time.Second, 5*time.Millisecond)

	var ev domain.StatusEvent
	require.NoError(t, json.Unmarshal(conn.written()[0], &ev))
	assert.Equal(t, "order-1", ev.OrderID)
	assert.Equal(t, domain.OrderStatusRouting, ev.Status)
}

func TestSendWithoutSubscriberIsNoop(t *testing.T) {
	h := NewHub(testLogger())
	h.Send("missing", domain.StatusEvent{OrderID: "missing", Status: domain.OrderStatusRouting})
	assert.Equal(t, 0, h.ConnectionCount())
}

func TestRegisterReplacesPriorSubscriber(t *testing.T) {
	h := NewHub(testLogger())

	first := newStubConn()
	second := newStubConn()
	attach(h, "order-1", first)
	c2 := attach(h, "order-1", second)
	defer h.unregister(c2)

	assert.Equal(t, 1, h.ConnectionCount())

	h.Send("order-1", domain.StatusEvent{
		OrderID: "order-1",
		Status:  domain.OrderStatusConfirmed,
	})

	require.Eventually(t, func() bool {
		return len(second.written()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, first.written())
}

func TestSendAfterUnregisterDropsEvent(t *testing.T) {
	h := NewHub(testLogger())
	conn := newStubConn()
	c := attach(h, "order-1", conn)

	h.unregister(c)
	require.False(t, h.IsConnected("order-1"))

	h.Send("order-1", domain.StatusEvent{
		OrderID: "order-1",
		Status:  domain.OrderStatusFailed,
	})

	// Give the write pump a moment; nothing should arrive.
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, conn.written())
}

func TestIsConnected(t *testing.T) {
	h := NewHub(testLogger())
	assert.False(t, h.IsConnected("order-1"))

	conn := newStubConn()
	c := attach(h, "order-1", conn)
	assert.True(t, h.IsConnected("order-1"))

	h.unregister(c)
	assert.False(t, h.IsConnected("order-1"))
}
