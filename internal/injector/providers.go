package injector

import (
	"github.com/zeusync/xrplace/internal/config"
	"github.com/zeusync/xrplace/internal/core/observability/log"
	"github.com/zeusync/xrplace/internal/server"
)

// App is everything cmd/server needs to run.
type App struct {
	Config config.Config
	Logger *log.Logger
	Server *server.Server
}

// ProvideLogger builds the process logger at the configured level. The
// cleanup flushes buffered entries.
func ProvideLogger(cfg config.Config) (*log.Logger, func()) {
	logger := log.New(cfg.Log.Level)
	return logger, func() { _ = logger.Sync() }
}
