//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/xrplace/internal/config"
	"github.com/zeusync/xrplace/internal/core/observability/log"
	"github.com/zeusync/xrplace/internal/server"
)

func InitializeApp(configPath string) (*App, func(), error) {
	wire.Build(
		config.Load,
		ProvideLogger,
		wire.Bind(new(log.Log), new(*log.Logger)),
		server.New,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
