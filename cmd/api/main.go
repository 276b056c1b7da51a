package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"paystreak/internal/infrastructure"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := infrastructure.Bootstrap(ctx)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	slog.Info("paystreak starting")
	if err := app.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}
