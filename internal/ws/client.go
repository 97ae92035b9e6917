package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"relay-service/internal/models"
)

// sendQueueSize bounds the per-connection outbound queue. A subscriber
// that falls this far behind starts losing frames.
const sendQueueSize = 64

// Conn is the subset of *websocket.Conn the client uses.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one live websocket connection with its own outbound queue.
type Client struct {
	conn Conn
	info ConnInfo
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient wraps an upgraded connection. The caller must start WritePump.
func NewClient(conn Conn, info ConnInfo) *Client {
	return &Client{
		conn: conn,
		info: info,
		send: make(chan []byte, sendQueueSize),
	}
}

// UserID returns the authenticated identity bound at handshake time.
func (c *Client) UserID() int64 {
	return c.info.UserID
}

// RequestID returns the request id captured at handshake time.
func (c *Client) RequestID() string {
	return c.info.RequestID
}

// Info returns the connection metadata.
func (c *Client) Info() ConnInfo {
	return c.info
}

// Send marshals the event and enqueues it without blocking. It reports
// whether the frame was accepted; a full queue or a closed connection
// drops the frame.
func (c *Client) Send(event models.ServerEvent) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal failed: %v", err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// WritePump drains the outbound queue onto the socket. It exits when the
// queue is closed or a write fails, closing the underlying connection
// either way.
func (c *Client) WritePump() {
	defer c.conn.Close()
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			return
		}
	}
}

// Close shuts the outbound queue exactly once. Safe to call concurrently
// with Send.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
