package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeusync/scenesync/internal/core/models"
)

// Connection is the websocket of one user. Writes are serialized; gorilla
// connections support one concurrent writer.
type Connection struct {
	id           string
	user         models.UserID
	conn         *websocket.Conn
	writeTimeout time.Duration
	connectedAt  time.Time
	closed       atomic.Bool
	done         chan struct{}

	messagesSent atomic.Uint64
	bytesSent    atomic.Uint64

	writeMu sync.Mutex
}

func newConnection(conn *websocket.Conn, user models.UserID, writeTimeout time.Duration) *Connection {
	return &Connection{
		id:           uuid.NewString(),
		user:         user,
		conn:         conn,
		writeTimeout: writeTimeout,
		connectedAt:  time.Now(),
		done:         make(chan struct{}),
	}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) User() models.UserID { return c.user }

func (c *Connection) ConnectedAt() time.Time { return c.connectedAt }

func (c *Connection) IsClosed() bool { return c.closed.Load() }

// MessagesSent and BytesSent count successful writes.
func (c *Connection) MessagesSent() uint64 { return c.messagesSent.Load() }

func (c *Connection) BytesSent() uint64 { return c.bytesSent.Load() }

// write sends one frame of the given gorilla message type.
func (c *Connection) write(messageType int, data []byte) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		return err
	}

	c.messagesSent.Add(1)
	c.bytesSent.Add(uint64(len(data)))
	return nil
}

// ping writes a ping control frame.
func (c *Connection) ping() error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	wait := c.writeTimeout
	if wait <= 0 {
		wait = time.Second
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wait))
}

// keepAlive pings every period until the connection closes or a ping fails.
func (c *Connection) keepAlive(period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return nil
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return err
			}
		}
	}
}

// Close sends a close frame and closes the socket. Multiple calls are safe.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}
