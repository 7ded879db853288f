package repository

import (
	"context"

	"github.com/Dhoini/saas-platform/internal/domain"
	"github.com/Dhoini/saas-platform/pkg/logger"
)

// SubscriptionCacheInvalidator реализуется декораторами с кешем.
// Используется, когда подписка исчезает вместе с пользователем.
type SubscriptionCacheInvalidator interface {
	InvalidateUser(ctx context.Context, userID string)
}

// CachedSubscriptionRepository реализует SubscriptionRepository с кешированием чтения.
// Любая запись сначала идет в основное хранилище, затем сбрасывает кеш.
type CachedSubscriptionRepository struct {
	repo  SubscriptionRepository
	cache SubscriptionCache
	log   *logger.Logger
}

// NewCachedSubscriptionRepository создает новый репозиторий с кешированием
func NewCachedSubscriptionRepository(repo SubscriptionRepository, cache SubscriptionCache, log *logger.Logger) *CachedSubscriptionRepository {
	return &CachedSubscriptionRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

var (
	_ SubscriptionRepository       = (*CachedSubscriptionRepository)(nil)
	_ SubscriptionCacheInvalidator = (*CachedSubscriptionRepository)(nil)
)

// GetByUserID получает подписку (сначала из кеша, потом из БД)
func (r *CachedSubscriptionRepository) GetByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	cached, err := r.cache.Get(ctx, userID)
	if err != nil {
		// Продолжаем выполнение при ошибке кеша
		r.log.Warnw("Error getting subscription from cache", "error", err, "userID", userID)
	}
	if cached != nil {
		r.log.Debugw("Subscription found in cache", "userID", userID)
		return cached, nil
	}

	sub, err := r.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, sub); err != nil {
		r.log.Warnw("Failed to cache subscription after fetching", "error", err, "userID", userID)
	}
	return sub, nil
}

// SetCustomerID обновляет БД и сбрасывает кеш
func (r *CachedSubscriptionRepository) SetCustomerID(ctx context.Context, userID, customerID string) error {
	if err := r.repo.SetCustomerID(ctx, userID, customerID); err != nil {
		return err
	}
	r.invalidate(ctx, userID)
	return nil
}

// UpdateByUserID обновляет БД и сбрасывает кеш
func (r *CachedSubscriptionRepository) UpdateByUserID(ctx context.Context, userID string, upd domain.SubscriptionUpdate) error {
	if err := r.repo.UpdateByUserID(ctx, userID, upd); err != nil {
		return err
	}
	r.invalidate(ctx, userID)
	return nil
}

// UpdateByCustomerID обновляет БД и сбрасывает кеш всех затронутых пользователей
func (r *CachedSubscriptionRepository) UpdateByCustomerID(ctx context.Context, customerID string, upd domain.SubscriptionUpdate) ([]string, error) {
	userIDs, err := r.repo.UpdateByCustomerID(ctx, customerID, upd)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, userIDs...)
	return userIDs, nil
}

// InvalidateUser сбрасывает кеш подписки пользователя
func (r *CachedSubscriptionRepository) InvalidateUser(ctx context.Context, userID string) {
	r.invalidate(ctx, userID)
}

func (r *CachedSubscriptionRepository) invalidate(ctx context.Context, userIDs ...string) {
	if err := r.cache.Delete(ctx, userIDs...); err != nil {
		r.log.Warnw("Failed to invalidate subscription cache", "error", err, "userIDs", userIDs)
	}
}
