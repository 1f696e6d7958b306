package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection wraps one live WebSocket session. Writes are serialized
// through a single writer goroutine; the rest of the system only ever
// references the connection by its opaque ID.
type Connection struct {
	id        string
	conn      *websocket.Conn
	writeCh   chan []byte
	writeWait time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps an upgraded WebSocket connection and starts its
// writer goroutine. sendBuffer bounds how far a slow client may fall
// behind before writes start failing.
func NewConnection(conn *websocket.Conn, sendBuffer int, writeWait time.Duration) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:        uuid.New().String(),
		conn:      conn,
		writeCh:   make(chan []byte, sendBuffer),
		writeWait: writeWait,
		ctx:       ctx,
		cancel:    cancel,
	}

	go c.writeLoop()

	return c
}

// ID returns the opaque connection identifier.
func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues a JSON message for delivery. It fails rather than
// block when the client's send buffer is full past the write timeout.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(c.writeWait):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close shuts down the writer goroutine and the underlying socket.
// Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}
