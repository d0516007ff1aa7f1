package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/scenesync/internal/core/dispatch"
	"github.com/zeusync/scenesync/internal/core/models"
	"github.com/zeusync/scenesync/internal/core/observability/log"
)

// Sink delivers dispatched payloads over per-user websockets. Websockets
// have a single ordered channel, so the reliable flag is ignored.
type Sink struct {
	mu           sync.RWMutex
	conns        map[models.UserID]*Connection
	messageType  int
	writeTimeout time.Duration
	logger       log.Log
}

// NewSink sends uncompressed JSON as text frames and everything else as
// binary frames.
func NewSink(opts dispatch.Options, writeTimeout time.Duration, logger log.Log) *Sink {
	messageType := websocket.BinaryMessage
	if opts.Encoding == dispatch.EncodingJSON && opts.Compression != dispatch.CompressionZstd {
		messageType = websocket.TextMessage
	}
	return &Sink{
		conns:        make(map[models.UserID]*Connection),
		messageType:  messageType,
		writeTimeout: writeTimeout,
		logger:       logger.With(log.String("component", "websocket")),
	}
}

// Attach makes conn the connection of user, closing any previous one.
func (s *Sink) Attach(user models.UserID, conn *websocket.Conn) *Connection {
	c := newConnection(conn, user, s.writeTimeout)

	s.mu.Lock()
	old := s.conns[user]
	s.conns[user] = c
	s.mu.Unlock()

	if old != nil {
		s.logger.Info("Replacing connection", log.User(string(user)), log.String("connection_id", old.ID()))
		_ = old.Close()
	}
	return c
}

// Detach forgets c if it is still the connection of its user, and closes it.
// It reports whether c was current.
func (s *Sink) Detach(c *Connection) bool {
	s.mu.Lock()
	current := s.conns[c.User()] == c
	if current {
		delete(s.conns, c.User())
	}
	s.mu.Unlock()

	_ = c.Close()
	return current
}

func (s *Sink) Send(ctx context.Context, user models.UserID, _ bool, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	c, ok := s.conns[user]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConnected, user)
	}
	if err := c.write(s.messageType, payload); err != nil {
		return fmt.Errorf("write to %s: %w", user, err)
	}
	return nil
}

// Has reports whether user has a live connection.
func (s *Sink) Has(user models.UserID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.conns[user]
	return ok
}

func (s *Sink) Connected() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Close closes every connection.
func (s *Sink) Close() error {
	s.mu.Lock()
	conns := s.conns
	s.conns = make(map[models.UserID]*Connection)
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return nil
}
