package main

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/Dhoini/saas-platform/internal/app"
	"github.com/Dhoini/saas-platform/internal/auth"
	"github.com/Dhoini/saas-platform/internal/config"
	"github.com/Dhoini/saas-platform/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		logger.New(logger.INFO).Fatal("Failed to load configuration: %v", err)
	}
	log := logger.NewWithFormat(logger.ParseLevel(cfg.Log.Level), cfg.Log.Format).Named("seed")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalw("Invalid timezone", "error", err)
	}

	storage, err := app.OpenStorage(ctx, cfg, loc, log)
	if err != nil {
		log.Fatalw("Failed to open storage", "error", err)
	}
	defer storage.Close()

	if !storage.Persistent() {
		log.Warn("Seeding in-memory storage has no lasting effect")
	}

	seeder := &app.Seeder{
		Storage: storage,
		Hasher:  auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		Rand:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		Now:     time.Now,
		Log:     log,
	}

	log.Info("Starting database seed...")
	if err := seeder.Seed(ctx, app.DefaultSeedAccounts); err != nil {
		storage.Close()
		log.Fatalw("Seed failed", "error", err)
	}
	log.Info("Database seed completed")
}
