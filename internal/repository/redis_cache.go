package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Dhoini/saas-platform/internal/domain"
	"github.com/Dhoini/saas-platform/pkg/logger"
)

const (
	// Префикс ключа подписки пользователя
	subscriptionKeyPrefix = "subscription:user:"

	// TTL для кэша
	defaultCacheTTL = 15 * time.Minute
)

// SubscriptionCache - кеш подписок по user id.
// Get возвращает (nil, nil), если записи нет.
type SubscriptionCache interface {
	Get(ctx context.Context, userID string) (*domain.Subscription, error)
	Set(ctx context.Context, sub *domain.Subscription) error
	Delete(ctx context.Context, userIDs ...string) error
}

// RedisCacheRepository реализует кеширование подписок в Redis
type RedisCacheRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCacheRepository подключается к Redis и проверяет соединение
func NewRedisCacheRepository(ctx context.Context, addr, password string, db int, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Проверяем соединение с Redis
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", addr)
	return NewRedisCacheFromClient(client, defaultCacheTTL, log), nil
}

// NewRedisCacheFromClient оборачивает уже созданный клиент
func NewRedisCacheFromClient(client redis.UniversalClient, ttl time.Duration, log *logger.Logger) *RedisCacheRepository {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCacheRepository{client: client, ttl: ttl, log: log}
}

// Close закрывает соединение с Redis
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// Ping проверяет доступность Redis
func (r *RedisCacheRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func subscriptionKey(userID string) string {
	return subscriptionKeyPrefix + userID
}

// Set кеширует подписку
func (r *RedisCacheRepository) Set(ctx context.Context, sub *domain.Subscription) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	if err := r.client.Set(ctx, subscriptionKey(sub.UserID), data, r.ttl).Err(); err != nil {
		r.log.Errorw("Failed to cache subscription in Redis", "error", err, "userID", sub.UserID)
		return fmt.Errorf("failed to cache subscription: %w", err)
	}
	return nil
}

// Get получает подписку из кеша
func (r *RedisCacheRepository) Get(ctx context.Context, userID string) (*domain.Subscription, error) {
	data, err := r.client.Get(ctx, subscriptionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription from cache: %w", err)
	}

	var sub domain.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached subscription: %w", err)
	}
	return &sub, nil
}

// Delete удаляет подписки пользователей из кеша
func (r *RedisCacheRepository) Delete(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, subscriptionKey(id))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete subscriptions from cache: %w", err)
	}
	return nil
}
