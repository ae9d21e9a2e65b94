package relay

import (
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// Conn is the subset of the websocket connection the relay needs.
// *websocket.Conn satisfies it; tests substitute scripted fakes.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one live connection. userID stays empty until the auth frame is
// accepted and is only ever written by the connection's own reader goroutine.
type Client struct {
	conn   Conn
	userID string

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(conn Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, 16),
	}
}

// UserID returns the identity bound to the connection, or "" before auth.
func (c *Client) UserID() string {
	return c.userID
}

// enqueue hands a frame to the write pump without blocking: a slow consumer
// drops frames rather than stalling the sender's task.
func (c *Client) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writePump drains the send channel onto the transport and closes the
// transport once the channel is closed, flushing buffered frames first.
func (c *Client) writePump() {
	for data := range c.send {
		_ = c.conn.WriteMessage(websocket.TextMessage, data)
	}
	_ = c.conn.Close()
}

// close is idempotent and safe against concurrent enqueues.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
