package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/celestiaorg/geoimport/internal/app"
	"github.com/celestiaorg/geoimport/internal/config"
	"github.com/celestiaorg/geoimport/internal/logger"
)

// shutdownTimeout bounds how long running jobs may take to drain
const shutdownTimeout = 30 * time.Second

func main() {
	dotEnvErr := config.LoadDotEnv()
	logger.InitializeAndConfigure()
	if dotEnvErr != nil {
		logger.Fatalf("Error loading .env file: %v", dotEnvErr)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	server, err := app.New(cfg)
	if err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Errorf("HTTP server stopped: %v", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Shutdown finished with errors: %v", err)
	}
}
