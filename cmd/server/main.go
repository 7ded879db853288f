package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Dhoini/saas-platform/internal/app"
	"github.com/Dhoini/saas-platform/internal/config"
	"github.com/Dhoini/saas-platform/pkg/logger"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		logger.New(logger.INFO).Fatal("Failed to load configuration: %v", err)
	}

	log := logger.NewWithFormat(logger.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	defer func() { _ = log.Sync() }()
	log.Infow("Starting SaaS platform", "env", cfg.App.Env, "port", cfg.App.Port, "database", cfg.Database.Driver, "events", cfg.Events.Driver)

	// Graceful shutdown по SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("Failed to initialize application", "error", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Errorw("Application stopped with error", "error", err)
		os.Exit(1)
	}
}
