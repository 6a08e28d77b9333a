package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vibehive/contract"
	"vibehive/domain/event"
	"vibehive/errors"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var _ contract.Connection = (*Connection)(nil)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Connection wraps a websocket and serializes outbound writes through a buffered queue.
// A client too slow to drain its queue is disconnected rather than buffered for.
type Connection struct {
	id  string
	log *slog.Logger

	ws     *websocket.Conn
	send   chan []byte
	once   sync.Once
	closed chan struct{}
}

func NewConnection(log *slog.Logger, ws *websocket.Conn, bufferSize int) *Connection {
	id := uuid.NewString()
	return &Connection{
		id:     id,
		log:    log.With("connection", id),
		ws:     ws,
		send:   make(chan []byte, bufferSize),
		closed: make(chan struct{}),
	}
}

func (c *Connection) ID() string { return c.id }

// Start launches the write loop. It must be called exactly once per connection.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Consume enqueues the event for delivery without ever waiting for the client.
func (c *Connection) Consume(_ context.Context, e event.DomainEvent) error {
	payload, err := encodeEvent(e)
	if err != nil {
		return err
	}
	return c.enqueue(payload)
}

func (c *Connection) enqueue(payload []byte) error {
	select {
	case <-c.closed:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		c.log.Warn("Send buffer full, closing connection")
		c.Close(websocket.ClosePolicyViolation, "send buffer full")
		return errors.ErrConnectionBacklog
	}
}

// Close terminates the connection and stops the write loop.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.closed)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

// Done is closed once the connection is closed.
func (c *Connection) Done() <-chan struct{} { return c.closed }

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.log.Debug("Write failed", "error", err)
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.log.Debug("Ping failed", "error", err)
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
