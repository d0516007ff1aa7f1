package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zeusync/scenesync/internal/core/observability/log"
	"github.com/zeusync/scenesync/internal/core/protocol/websocket"
	"github.com/zeusync/scenesync/internal/environment"
)

// Server exposes one environment over HTTP: websocket clients on WSPath and
// prometheus metrics on MetricsPath. It drives the environment's tick loop
// while running.
type Server struct {
	env     *environment.Environment
	sink    *websocket.Sink
	handler http.Handler

	// Server state
	running atomic.Bool
	closed  atomic.Bool

	config Config
	logger log.Log

	mu       sync.Mutex
	http     *http.Server
	listener net.Listener
	cancel   context.CancelFunc

	workerGroup sync.WaitGroup
}

type Config struct {
	ListenAddr  string
	MetricsPath string
	WSPath      string
	// ShutdownTimeout bounds the graceful HTTP shutdown in Close.
	ShutdownTimeout time.Duration
}

func DefaultServerConfig() Config {
	return Config{
		ListenAddr:      "127.0.0.1:8080",
		MetricsPath:     "/metrics",
		WSPath:          "/ws",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Stats is a snapshot of the server.
type Stats struct {
	Users       int
	ActiveUsers int
	Connections int
	Nodes       int
	Pending     int
	Running     bool
}

func NewServer(config Config, env *environment.Environment, sink *websocket.Sink, handler *websocket.Handler, logger log.Log) *Server {
	server := &Server{
		env:     env,
		sink:    sink,
		handler: handler,
		config:  config,
		logger:  logger.With(log.String("component", "server")),
	}

	server.logger.Info("Server created",
		log.String("listen_addr", config.ListenAddr),
		log.String("ws_path", config.WSPath),
		log.String("metrics_path", config.MetricsPath))

	return server
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.config.WSPath, s.handler)
	mux.Handle(s.config.MetricsPath, promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start listens on ListenAddr and starts the tick loop. It returns once the
// listener is bound.
func (s *Server) Start(ctx context.Context) error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}

	s.logger.Info("Starting server")

	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		s.running.Store(false)
		s.logger.Error("Failed to create listener", log.Error(err))
		return errors.Join(ErrListenerFailed, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	httpServer := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return runCtx },
	}

	s.mu.Lock()
	s.listener = listener
	s.http = httpServer
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Info("Server listening", log.String("addr", listener.Addr().String()))

	s.workerGroup.Add(2)
	go func() {
		defer s.workerGroup.Done()
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", log.Error(err))
		}
	}()
	go func() {
		defer s.workerGroup.Done()
		s.logger.Debug("Tick loop started")
		if err := s.env.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("Tick loop stopped", log.Error(err))
		}
		s.logger.Debug("Tick loop stopped")
	}()

	s.logger.Info("Server started successfully")
	return nil
}

// Addr returns the bound address while running.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the HTTP server down, disconnects every client and stops the
// tick loop. A last flush sends what was queued before the stop.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return ErrServerNotRunning
	}

	s.logger.Info("Stopping server")

	s.mu.Lock()
	httpServer, cancel := s.http, s.cancel
	s.http, s.listener, s.cancel = nil, nil, nil
	s.mu.Unlock()

	var errs []error
	if err := httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	cancel()
	s.workerGroup.Wait()

	if err := s.env.Flush(ctx); err != nil {
		s.logger.Warn("Final flush failed", log.Error(err))
	}
	if err := s.sink.Close(); err != nil {
		errs = append(errs, err)
	}

	s.logger.Info("Server stopped")
	return errors.Join(errs...)
}

// Close stops the server if needed and releases the environment.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.logger.Info("Closing server")

	var errs []error
	if s.running.Load() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		errs = append(errs, s.Stop(ctx))
		cancel()
	}
	errs = append(errs, s.env.Close())

	s.logger.Info("Server closed")
	return errors.Join(errs...)
}

func (s *Server) GetStats() Stats {
	return Stats{
		Users:       s.env.Users().Len(),
		ActiveUsers: s.env.Users().Active().Len(),
		Connections: s.sink.Connected(),
		Nodes:       s.env.Nodes(),
		Pending:     s.env.Pending(),
		Running:     s.running.Load(),
	}
}
