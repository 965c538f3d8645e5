package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"bizzshort/internal/config"
	"bizzshort/internal/infra/db"
	httpinfra "bizzshort/internal/infra/http"
	"bizzshort/internal/infra/logging"

	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Printf("invalid config: %v", err)
		return 1
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		log.Printf("failed to init logger: %v", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	store, err := db.NewStore(cfg, logger)
	if err != nil {
		logger.Error("failed to init store", zap.Error(err))
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpinfra.NewServer(cfg, store, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server exited", zap.Error(err))
		return 1
	}
	logger.Info("server stopped")
	return 0
}
