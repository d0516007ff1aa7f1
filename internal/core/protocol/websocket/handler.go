package websocket

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/scenesync/internal/core/models"
	"github.com/zeusync/scenesync/internal/core/observability/log"
	"github.com/zeusync/scenesync/internal/core/users"
)

// Membership is the part of the user registry a connection drives.
type Membership interface {
	Join(id models.UserID) (models.UserID, error)
	SetActive(id models.UserID) error
	Leave(id models.UserID) error
}

type HandlerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageSize  int64
	// PongWait is how long a silent client is kept. The server pings at nine
	// tenths of it. Zero disables both.
	PongWait time.Duration
}

func (c HandlerConfig) pingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		MaxMessageSize:  64 * 1024,
		PongWait:        60 * time.Second,
	}
}

// Handler upgrades requests of the form ?user=<id> to websockets. A connected
// user is joined and activated; when the socket fails the user leaves.
type Handler struct {
	sink     *Sink
	users    Membership
	config   HandlerConfig
	upgrader websocket.Upgrader
	logger   log.Log
}

func NewHandler(sink *Sink, users Membership, config HandlerConfig, logger log.Log) *Handler {
	return &Handler{
		sink:   sink,
		users:  users,
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.With(log.String("component", "websocket")),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requested := models.UserID(r.URL.Query().Get("user"))
	user, err := h.users.Join(requested)
	takeover := false
	if errors.Is(err, users.ErrUserExists) && h.sink.Has(requested) {
		user, err, takeover = requested, nil, true
	}
	if err != nil {
		h.logger.Warn("Join refused", log.String("remote", r.RemoteAddr), log.Error(err))
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Upgrade failed", log.User(string(user)), log.Error(err))
		if !takeover {
			_ = h.users.Leave(user)
		}
		return
	}

	c := h.sink.Attach(user, conn)
	logger := h.logger.With(log.User(string(user)), log.String("connection_id", c.ID()))
	logger.Info("Client connected", log.String("remote", conn.RemoteAddr().String()), log.Bool("takeover", takeover))

	if err := h.activate(user); err != nil {
		logger.Warn("Activation handlers failed", log.Error(err))
	}

	if period := h.config.pingPeriod(); period > 0 {
		go func() {
			if err := c.keepAlive(period); err != nil && !c.IsClosed() {
				logger.Debug("Ping failed", log.Error(err))
			}
		}()
	}

	h.readLoop(c, conn, logger)

	if !h.sink.Detach(c) {
		logger.Info("Client replaced")
		return
	}
	if err := h.users.Leave(user); err != nil {
		logger.Warn("Leave handlers failed", log.Error(err))
	}
	logger.Info("Client disconnected")
}

// activate marks user active. A user activated again is refreshed; one that
// left while its old connection was being replaced joins again.
func (h *Handler) activate(user models.UserID) error {
	err := h.users.SetActive(user)
	if !errors.Is(err, users.ErrUnknownUser) {
		return err
	}
	if _, err := h.users.Join(user); err != nil {
		return err
	}
	return h.users.SetActive(user)
}

// readLoop drains client frames until the socket fails. Clients only send
// control traffic.
func (h *Handler) readLoop(c *Connection, conn *websocket.Conn, logger log.Log) {
	if h.config.MaxMessageSize > 0 {
		conn.SetReadLimit(h.config.MaxMessageSize)
	}
	extend := func() {
		if h.config.PongWait > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
		}
	}
	extend()
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !c.IsClosed() && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Read failed", log.Error(err))
			}
			return
		}
		extend()
		logger.Debug("Ignoring client frame", log.Int("bytes", len(data)))
	}
}
