// Package client is a Go client for scenesync servers. It connects as one
// user and surfaces every transaction the server sends.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/scenesync/internal/core/dispatch"
	"github.com/zeusync/scenesync/internal/core/observability/log"
)

// Client represents one user's connection to an environment.
type Client struct {
	conn *websocket.Conn

	frames chan Frame

	frameHandlers []FrameHandler
	eventHandlers map[EventType][]EventHandler
	handlerMutex  sync.RWMutex

	// Lifecycle
	connected atomic.Bool
	closed    atomic.Bool
	received  atomic.Uint64

	config Config
	logger log.Log

	workerGroup sync.WaitGroup
}

// Config holds configuration for the client
type Config struct {
	// ServerURL is the websocket endpoint, e.g. ws://localhost:8080/ws.
	ServerURL string
	// User is sent as ?user=; empty lets the server pick one.
	User string
	// Compression must match the server's dispatch.compression.
	Compression    dispatch.Compression
	ConnectTimeout time.Duration
	// FrameBuffer is how many frames Next can lag behind before frames are dropped.
	FrameBuffer int
	Logger      log.Log
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	return Config{
		ServerURL:      "ws://localhost:8080/ws",
		Compression:    dispatch.CompressionNone,
		ConnectTimeout: 10 * time.Second,
		FrameBuffer:    256,
	}
}

// FrameHandler is called for every frame, in arrival order, on the receiving
// goroutine.
type FrameHandler func(frame Frame) error

// EventHandler defines a function type for handling client events
type EventHandler func(event Event)

type EventType string

const (
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"
)

// Event represents a client event
type Event struct {
	Type      EventType
	Timestamp time.Time
	Error     error
}

func NewClient(config Config) (*Client, error) {
	if _, err := url.Parse(config.ServerURL); err != nil || config.ServerURL == "" {
		return nil, fmt.Errorf("%w: server url %q", ErrInvalidConfig, config.ServerURL)
	}
	switch config.Compression {
	case dispatch.CompressionNone, dispatch.CompressionZstd:
	case "":
		config.Compression = dispatch.CompressionNone
	default:
		return nil, fmt.Errorf("%w: compression %q", ErrInvalidConfig, config.Compression)
	}
	if config.FrameBuffer <= 0 {
		config.FrameBuffer = DefaultClientConfig().FrameBuffer
	}
	logger := config.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	client := &Client{
		frames:        make(chan Frame, config.FrameBuffer),
		eventHandlers: make(map[EventType][]EventHandler),
		config:        config,
		logger:        logger.With(log.String("component", "client"), log.User(config.User)),
	}
	return client, nil
}

// Connect dials the server. Transactions start arriving once the server has
// activated the user.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if c.connected.Load() {
		return ErrAlreadyConnected
	}

	target, err := url.Parse(c.config.ServerURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.config.User != "" {
		q := target.Query()
		q.Set("user", c.config.User)
		target.RawQuery = q.Encode()
	}

	c.logger.Info("Connecting to server", log.String("url", target.String()))

	if c.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		c.logger.Error("Failed to connect to server", log.Error(err))
		return err
	}

	c.conn = conn
	c.connected.Store(true)

	c.workerGroup.Add(1)
	go func() {
		defer c.workerGroup.Done()
		c.frameReceiver()
	}()

	c.emitEvent(Event{Type: EventTypeConnected, Timestamp: time.Now()})
	return nil
}

// Disconnect closes the connection. The server treats it as the user leaving.
func (c *Client) Disconnect() error {
	if !c.connected.CompareAndSwap(true, false) {
		return ErrNotConnected
	}

	c.logger.Info("Disconnecting from server")

	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	err := c.conn.Close()
	c.workerGroup.Wait()

	c.emitEvent(Event{Type: EventTypeDisconnected, Timestamp: time.Now()})
	return err
}

// Close closes the client and releases all resources
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.connected.Load() {
		_ = c.Disconnect()
	}
	c.workerGroup.Wait()
	close(c.frames)
	c.logger.Info("Client closed")
	return nil
}

// Next returns the next received frame.
func (c *Client) Next(ctx context.Context) (Frame, error) {
	select {
	case f, ok := <-c.frames:
		if !ok {
			return Frame{}, ErrClientClosed
		}
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (c *Client) OnFrame(handler FrameHandler) {
	c.handlerMutex.Lock()
	defer c.handlerMutex.Unlock()
	c.frameHandlers = append(c.frameHandlers, handler)
}

func (c *Client) OnEvent(eventType EventType, handler EventHandler) {
	c.handlerMutex.Lock()
	defer c.handlerMutex.Unlock()
	c.eventHandlers[eventType] = append(c.eventHandlers[eventType], handler)
}

func (c *Client) IsConnected() bool { return c.connected.Load() }

func (c *Client) IsClosed() bool { return c.closed.Load() }

// Received returns how many frames arrived so far.
func (c *Client) Received() uint64 { return c.received.Load() }

func (c *Client) frameReceiver() {
	c.logger.Debug("Frame receiver started")
	defer c.logger.Debug("Frame receiver stopped")

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.connected.CompareAndSwap(true, false) {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Warn("Connection lost", log.Error(err))
					c.emitEvent(Event{Type: EventTypeError, Timestamp: time.Now(), Error: err})
				}
				_ = c.conn.Close()
				c.emitEvent(Event{Type: EventTypeDisconnected, Timestamp: time.Now()})
			}
			return
		}

		if c.config.Compression == dispatch.CompressionZstd {
			if data, err = dispatch.Decompress(data); err != nil {
				c.logger.Warn("Dropping undecodable frame", log.Error(err))
				c.emitEvent(Event{Type: EventTypeError, Timestamp: time.Now(), Error: err})
				continue
			}
		}
		c.handleFrame(Frame{Data: data, Text: kind == websocket.TextMessage, Received: time.Now()})
	}
}

func (c *Client) handleFrame(frame Frame) {
	c.received.Add(1)

	c.handlerMutex.RLock()
	handlers := c.frameHandlers
	c.handlerMutex.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(frame); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		c.logger.Error("Frame handler error", log.Error(err))
	}

	select {
	case c.frames <- frame:
	default:
		c.logger.Warn("Frame buffer full, dropping frame", log.Int("bytes", len(frame.Data)))
	}
}

// emitEvent runs the handlers of event.Type synchronously.
func (c *Client) emitEvent(event Event) {
	c.handlerMutex.RLock()
	handlers := c.eventHandlers[event.Type]
	c.handlerMutex.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}
