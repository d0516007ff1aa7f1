//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/scenesync/internal/config"
	"github.com/zeusync/scenesync/internal/core/observability/log"
	"github.com/zeusync/scenesync/internal/environment"
	"github.com/zeusync/scenesync/internal/server"
)

func ProvideLogger(cfg config.Config) *log.Logger {
	wire.Build(NewLogger)
	return nil
}

// InitializeEnvironment wires an environment whose payloads go to the
// websocket sink.
func InitializeEnvironment(cfg config.Config) (*environment.Environment, func(), error) {
	wire.Build(EnvironmentSet)
	return nil, nil, nil
}

func InitializeServer(cfg config.Config) (*server.Server, func(), error) {
	wire.Build(ServerSet)
	return nil, nil, nil
}
