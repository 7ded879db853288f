package db

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/Dhoini/saas-platform/pkg/logger"
)

// Config параметры подключения к PostgreSQL
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	ConnectAttempts uint64
	// TimeZone - параметр сессии timezone; DATE() по timestamptz считается в нем
	TimeZone string
}

// Client владеет пулом соединений. Создается один раз при старте
// и передается в репозитории; Close вызывается при завершении процесса.
type Client struct {
	pool *pgxpool.Pool
	db   *sqlx.DB
	log  *logger.Logger
}

// Connect создает пул и проверяет соединение.
// Недоступная база при старте переживается ограниченным числом повторов.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	log.Infow("Connecting to PostgreSQL")

	poolConfig, err := NewPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	attempts := cfg.ConnectAttempts
	if attempts == 0 {
		attempts = 5
	}

	var pool *pgxpool.Pool
	connect := func() error {
		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return fmt.Errorf("unable to create connection pool: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			log.Warnw("PostgreSQL is not ready yet", "error", err)
			return fmt.Errorf("unable to ping database: %w", err)
		}
		pool = p
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), attempts-1), ctx)
	if err := backoff.Retry(connect, policy); err != nil {
		log.Errorw("Failed to connect to PostgreSQL", "error", err, "attempts", attempts)
		return nil, err
	}

	log.Infow("Successfully connected to PostgreSQL", "maxConns", poolConfig.MaxConns, "timezone", cfg.TimeZone)
	return &Client{
		pool: pool,
		db:   sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx"),
		log:  log,
	}, nil
}

// NewPoolConfig разбирает DSN и применяет настройки пула и сессии
func NewPoolConfig(cfg Config) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Настраиваем пул соединений
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	if cfg.TimeZone != "" {
		poolConfig.ConnConfig.RuntimeParams["timezone"] = cfg.TimeZone
	}
	return poolConfig, nil
}

// SessionTimeZone возвращает имя зоны для параметра timezone.
// Для time.Local имя берется из TZ; пустая строка оставляет зону сервера.
func SessionTimeZone(loc *time.Location) string {
	if loc == nil {
		return ""
	}
	if name := loc.String(); name != "Local" {
		return name
	}
	tz := strings.TrimPrefix(os.Getenv("TZ"), ":")
	if tz == "" || strings.HasPrefix(tz, "/") {
		return ""
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return ""
	}
	return tz
}

// DB возвращает sqlx-обертку над пулом для репозиториев
func (c *Client) DB() *sqlx.DB {
	return c.db
}

// Stat возвращает статистику пула (для метрик)
func (c *Client) Stat() *pgxpool.Stat {
	return c.pool.Stat()
}

// HealthCheck выполняет SELECT 1
func (c *Client) HealthCheck(ctx context.Context) error {
	var one int
	if err := c.db.GetContext(ctx, &one, "SELECT 1"); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Close закрывает соединения с базой данных
func (c *Client) Close() {
	if err := c.db.Close(); err != nil {
		c.log.Warnw("Failed to close sql.DB wrapper", "error", err)
	}
	c.pool.Close()
	c.log.Infow("PostgreSQL connection pool closed")
}

// RunInTx выполняет fn в транзакции. Ошибка fn или паника откатывают транзакцию.
func RunInTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
