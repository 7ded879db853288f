package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	grpcapi "github.com/Dhoini/saas-platform/internal/api/grpc"
	"github.com/Dhoini/saas-platform/internal/api/rest"
	"github.com/Dhoini/saas-platform/internal/api/rest/handlers"
	"github.com/Dhoini/saas-platform/internal/auth"
	"github.com/Dhoini/saas-platform/internal/config"
	stripeint "github.com/Dhoini/saas-platform/internal/integration/stripe"
	"github.com/Dhoini/saas-platform/internal/kafka"
	"github.com/Dhoini/saas-platform/internal/kafka/producer"
	"github.com/Dhoini/saas-platform/internal/metrics"
	"github.com/Dhoini/saas-platform/internal/middleware"
	"github.com/Dhoini/saas-platform/internal/scheduler"
	"github.com/Dhoini/saas-platform/internal/service"
	"github.com/Dhoini/saas-platform/pkg/logger"
)

// App представляет собой контейнер для всех компонентов приложения
type App struct {
	Config    *config.Config
	Logger    *logger.Logger
	Registry  *prometheus.Registry
	Router    *gin.Engine
	Storage   *Storage
	Publisher kafka.Publisher

	http      *rest.Server
	grpc      *grpcapi.Server
	scheduler *scheduler.Scheduler
}

// New создает и связывает все компоненты приложения
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	// Инициализация Prometheus
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewAppMetrics(registry, log)
	systemMetrics := metrics.NewSystemMetrics(registry, log)

	storage, err := OpenStorage(ctx, cfg, loc, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	publisher, err := newPublisher(ctx, cfg, log)
	if err != nil {
		storage.Close()
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}

	tokens := auth.NewSessionIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenLifetime)
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	gateway := stripeint.NewClient(stripeint.Config{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	}, log)

	deps := service.Deps{Publisher: publisher, Log: log}
	authSvc := service.NewAuthService(storage.Users, hasher, tokens, appMetrics, deps)
	userSvc := service.NewUserService(storage.Users, storage.CacheInvalidator, deps)
	billingSvc := service.NewBillingService(storage.Users, storage.Subscriptions, storage.WebhookEvents, gateway,
		service.BillingConfig{FrontendURL: cfg.App.FrontendURL, Prices: cfg.PriceTable()}, appMetrics, deps)
	analyticsSvc := service.NewAnalyticsService(storage.Events, loc, appMetrics, deps)

	var dbChecker handlers.HealthChecker
	if storage.Persistent() {
		dbChecker = storage
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, log)
	cookie := handlers.SessionCookie{TTL: cfg.Auth.TokenLifetime, Secure: cfg.IsProduction()}

	router := rest.SetupRouter(rest.RouterDeps{
		Auth:          handlers.NewAuthHandler(authSvc, cookie, log),
		Users:         handlers.NewUserHandler(userSvc, cookie, log),
		Subscriptions: handlers.NewSubscriptionHandler(billingSvc, log),
		Analytics:     handlers.NewAnalyticsHandler(analyticsSvc, loc, log),
		Health:        handlers.NewHealthHandler(dbChecker, log),
		Gate:          middleware.NewAuthGate(tokens, storage.Users, log),
		RateLimiter:   limiter,
		Metrics:       appMetrics,
		Registry:      registry,
		FrontendURL:   cfg.App.FrontendURL,
		Log:           log,
	})

	a := &App{
		Config:    cfg,
		Logger:    log,
		Registry:  registry,
		Router:    router,
		Storage:   storage,
		Publisher: publisher,
		http:      rest.NewServer(router, cfg.App.Port, log),
	}

	jobs := &scheduler.Jobs{
		Limiter:  limiter,
		Webhooks: storage.WebhookEvents,
		System:   systemMetrics,
		Pool:     storage.PoolStats,
		Log:      log.Named("scheduler"),
	}
	if cfg.GRPC.Enabled {
		var grpcChecker grpcapi.HealthChecker
		if storage.Persistent() {
			grpcChecker = storage
		}
		a.grpc = grpcapi.NewServer(grpcChecker, log.Named("grpc"))
		jobs.Health = a.grpc.SyncHealth
	} else if storage.Persistent() {
		jobs.Health = func(ctx context.Context) bool { return storage.HealthCheck(ctx) == nil }
	}

	a.scheduler = scheduler.NewScheduler(jobs, log)
	if err := a.scheduler.Register(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// newPublisher выбирает транспорт доменных событий по events.driver
func newPublisher(ctx context.Context, cfg *config.Config, log *logger.Logger) (kafka.Publisher, error) {
	kcfg := kafka.NewConfig(cfg.Events.Driver, cfg.Events.Brokers, cfg.Events.Topic)

	switch kcfg.Driver {
	case kafka.DriverKafka:
		if err := kafka.EnsureTopic(ctx, kcfg, log); err != nil {
			log.Warnw("Could not ensure Kafka topic, relying on broker auto-creation", "topic", kcfg.Topic, "error", err)
		}
		return kafka.NewKafkaProducer(kcfg, log)
	case kafka.DriverSarama:
		return producer.Dial(kcfg, log)
	default:
		log.Info("Domain event publishing disabled")
		return kafka.NopPublisher{}, nil
	}
}

// Run запускает серверы и блокируется до отмены ctx или ошибки сервера
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		errCh <- a.http.Start()
	}()
	if a.grpc != nil {
		go func() {
			errCh <- a.grpc.Start(a.Config.GRPC.Port)
		}()
	}
	a.scheduler.Start()

	var runErr error
	select {
	case <-ctx.Done():
		a.Logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			runErr = err
			a.Logger.Errorw("Server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.App.ShutdownTimeout)
	defer cancel()
	return errors.Join(runErr, a.Shutdown(shutdownCtx))
}

// Shutdown останавливает серверы, планировщик и закрывает ресурсы
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if a.grpc != nil {
		a.grpc.Stop()
	}

	select {
	case <-a.scheduler.Stop().Done():
	case <-ctx.Done():
		a.Logger.Warn("Scheduler jobs did not finish before shutdown timeout")
	}

	a.close()
	a.Logger.Info("Server stopped gracefully")
	return errors.Join(errs...)
}

func (a *App) close() {
	if err := a.Publisher.Close(); err != nil {
		a.Logger.Warnw("Failed to close event publisher", "error", err)
	}
	a.Storage.Close()
}
