package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/saas-platform/internal/config"
	"github.com/Dhoini/saas-platform/internal/db"
	"github.com/Dhoini/saas-platform/internal/metrics"
	"github.com/Dhoini/saas-platform/internal/repository"
	"github.com/Dhoini/saas-platform/internal/repository/memory"
	"github.com/Dhoini/saas-platform/internal/repository/postgres"
	"github.com/Dhoini/saas-platform/pkg/logger"
)

// Storage - репозитории приложения и ресурсы, которыми они владеют
type Storage struct {
	Users         repository.UserRepository
	Subscriptions repository.SubscriptionRepository
	Events        repository.EventRepository
	WebhookEvents repository.WebhookEventRepository

	// CacheInvalidator задан, когда подписки кешируются в Redis
	CacheInvalidator repository.SubscriptionCacheInvalidator

	client *db.Client
	redis  *repository.RedisCacheRepository
	log    *logger.Logger
}

// OpenStorage подключает хранилище согласно database.driver и, при необходимости, Redis
func OpenStorage(ctx context.Context, cfg *config.Config, loc *time.Location, log *logger.Logger) (*Storage, error) {
	st := &Storage{log: log}

	switch cfg.Database.Driver {
	case "memory":
		log.Warn("Using in-memory storage, data will be lost on restart")
		store := memory.NewStore(loc)
		st.Users = store.Users()
		st.Subscriptions = store.Subscriptions()
		st.Events = store.Events()
		st.WebhookEvents = store.WebhookEvents()
	default:
		tz := db.SessionTimeZone(loc)
		if tz == "" {
			log.Warn("Database session timezone is not set, daily analytics use the server zone; set app.timezone")
		}
		client, err := db.Connect(ctx, db.Config{
			DSN:      cfg.Database.DSN,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
			TimeZone: tz,
		}, log)
		if err != nil {
			return nil, err
		}
		st.client = client

		if cfg.Database.Migrate {
			if err := db.Migrate(cfg.Database.DSN, log); err != nil {
				client.Close()
				return nil, err
			}
		}

		sqlDB := client.DB()
		st.Users = postgres.NewUserRepository(sqlDB, log)
		st.Subscriptions = postgres.NewSubscriptionRepository(sqlDB, log)
		st.Events = postgres.NewEventRepository(sqlDB, log)
		st.WebhookEvents = postgres.NewWebhookEventRepository(sqlDB)
	}

	if cfg.Redis.Enabled {
		cache, err := repository.NewRedisCacheRepository(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		st.redis = cache
		cached := repository.NewCachedSubscriptionRepository(st.Subscriptions, cache, log)
		st.Subscriptions = cached
		st.CacheInvalidator = cached
	}

	return st, nil
}

// HealthCheck проверяет БД; для хранилища в памяти всегда успешен
func (s *Storage) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.HealthCheck(ctx)
}

// Persistent сообщает, подключена ли PostgreSQL
func (s *Storage) Persistent() bool {
	return s.client != nil
}

// PoolStats возвращает состояние пула соединений или nil
func (s *Storage) PoolStats() *metrics.PoolStats {
	if s.client == nil {
		return nil
	}
	stat := s.client.Stat()
	return &metrics.PoolStats{
		Total:    stat.TotalConns(),
		Idle:     stat.IdleConns(),
		Acquired: stat.AcquiredConns(),
	}
}

// Close освобождает соединения
func (s *Storage) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.log.Warnw("Failed to close Redis client", "error", err)
		}
	}
	if s.client != nil {
		s.client.Close()
	}
}
