// Package main is the entry point for the social graph API server.
//
// The main package stays small: it reads configuration, builds the logger
// and hands both to internal/server, which owns every other dependency.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sakif/social-graph/internal/config"
	"github.com/sakif/social-graph/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger level comes from config, so this one error goes to a default logger.
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Text output for humans. Set LOG_LEVEL=debug for lock and event tracing.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.Level,
	}))

	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
