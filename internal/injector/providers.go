package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/scenesync/internal/config"
	"github.com/zeusync/scenesync/internal/core/dispatch"
	"github.com/zeusync/scenesync/internal/core/events/bus"
	"github.com/zeusync/scenesync/internal/core/models"
	"github.com/zeusync/scenesync/internal/core/observability/log"
	"github.com/zeusync/scenesync/internal/core/protocol/websocket"
	"github.com/zeusync/scenesync/internal/core/users"
	"github.com/zeusync/scenesync/internal/environment"
	"github.com/zeusync/scenesync/internal/server"
)

var EnvironmentSet = wire.NewSet(
	NewLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	NewEventBus,
	models.NewRegistry,
	users.NewRegistry,
	NewSink,
	wire.Bind(new(dispatch.Sink), new(*websocket.Sink)),
	NewDispatcher,
	NewEnvironment,
)

var ServerSet = wire.NewSet(
	EnvironmentSet,
	wire.Bind(new(websocket.Membership), new(*users.Registry)),
	NewHandler,
	NewServerConfig,
	server.NewServer,
)

func NewLogger(cfg config.Config) *log.Logger {
	return log.New(cfg.LogLevel())
}

// NewEventBus returns a bus that logs failed deliveries.
func NewEventBus(logger log.Log) bus.EventBus {
	b := bus.New()
	b.AddObserver(bus.NewLogObserver(logger))
	return b
}

func NewSink(cfg config.Config, logger log.Log) *websocket.Sink {
	return websocket.NewSink(cfg.DispatchOptions(), cfg.Server.WriteTimeout, logger)
}

func NewDispatcher(cfg config.Config, sink dispatch.Sink, logger log.Log) (*dispatch.Dispatcher, func(), error) {
	d, err := dispatch.NewDispatcher(sink, cfg.DispatchOptions(), logger)
	if err != nil {
		return nil, nil, err
	}
	return d, func() { _ = d.Close() }, nil
}

func NewEnvironment(
	cfg config.Config,
	entities *models.Registry,
	eventBus bus.EventBus,
	userRegistry *users.Registry,
	dispatcher *dispatch.Dispatcher,
	logger log.Log,
) (*environment.Environment, func(), error) {
	envConfig := environment.DefaultConfig()
	envConfig.TickInterval = cfg.Environment.TickInterval
	envConfig.Reliable = cfg.Environment.Reliable

	env, err := environment.New(envConfig, entities, eventBus, userRegistry, dispatcher, logger)
	if err != nil {
		return nil, nil, err
	}
	return env, func() { _ = env.Close() }, nil
}

func NewHandler(sink *websocket.Sink, membership websocket.Membership, logger log.Log) *websocket.Handler {
	return websocket.NewHandler(sink, membership, websocket.DefaultHandlerConfig(), logger)
}

func NewServerConfig(cfg config.Config) server.Config {
	return server.Config{
		ListenAddr:      cfg.Server.ListenAddr,
		MetricsPath:     cfg.Server.MetricsPath,
		WSPath:          cfg.Server.WSPath,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
}
