// Package notifications delivers engagement notifications: it persists them and pushes
// them to the live WebSocket channel of the recipient.
package notifications

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"ripple/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 16384

	// Outbound messages buffered per client before sends are dropped.
	sendBufferSize = 256
)

var (
	ErrChannelClosed = errors.New("channel closed")
	ErrBufferFull    = errors.New("send buffer full")
)

// Channel is an open live connection to one identity.
type Channel interface {
	Send(payload []byte) error
	Close() error
}

// wsConn is the part of a WebSocket connection the client pumps use.
type wsConn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is the middleman between a websocket connection and the registry.
type Client struct {
	conn   wsConn
	UserID uint

	mu     sync.Mutex
	send   chan []byte
	closed bool

	// OnActivity is called for every inbound frame.
	OnActivity func(userID uint)
}

// NewClient creates a client for the user's connection.
func NewClient(conn wsConn, userID uint) *Client {
	return &Client{
		conn:   conn,
		UserID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
}

// Send queues payload for the write pump without blocking.
func (c *Client) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		observability.WebSocketBackpressureDrops.WithLabelValues("closed").Inc()
		return ErrChannelClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues("full").Inc()
		return ErrBufferFull
	}
}

// Close stops the write pump, which sends a close frame and closes the connection.
// It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return nil
}

// ReadPump reads frames until the connection fails or closes, passing each to handle.
func (c *Client) ReadPump(handle func(c *Client, message []byte)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		if c.OnActivity != nil {
			c.OnActivity(c.UserID)
		}
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				observability.Logger.Warn("websocket read failed",
					slog.Uint64("user_id", uint64(c.UserID)),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		if c.OnActivity != nil {
			c.OnActivity(c.UserID)
		}
		if handle != nil {
			handle(c, message)
		}
	}
}

// WritePump writes queued messages and keepalive pings until the client is closed.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
