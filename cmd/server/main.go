package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/xrplace/internal/core/observability/log"
	"github.com/zeusync/xrplace/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file; XRPLACE_* variables override it")
	flag.Parse()

	app, cleanup, err := injector.InitializeApp(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = app.Server.Start(ctx); err != nil {
		app.Logger.Error("Error starting server", log.Error(err))
		return
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()
	if err = app.Server.Stop(shutdownCtx); err != nil {
		app.Logger.Error("Error stopping server", log.Error(err))
	}
	if err = app.Server.Close(); err != nil {
		app.Logger.Error("Error closing server", log.Error(err))
	}
}
