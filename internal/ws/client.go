package ws

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

// Client wraps one websocket connection. It satisfies registry.Conn.
type Client struct {
	conn      *websocket.Conn
	send      chan any
	connected time.Time

	mu     sync.Mutex
	closed bool
}

func NewClient(conn *websocket.Conn, buffer int) *Client {
	return &Client{
		conn:      conn,
		send:      make(chan any, buffer),
		connected: time.Now().UTC(),
	}
}

// Send enqueues v for the write pump without blocking. The payload is
// dropped when the peer cannot keep up or the connection is closing.
func (c *Client) Send(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- v:
	default:
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

// writePump serializes all writes to the socket and keeps it alive with
// pings. It exits when Close drains the channel or a write fails.
func (c *Client) writePump(pingInterval, writeDeadline time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case v, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteJSON(v); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}
