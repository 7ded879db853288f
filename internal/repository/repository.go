package repository

import (
	"context"
	"time"

	"github.com/Dhoini/saas-platform/internal/domain"
)

// UserRepository - хранилище учетных записей (Credential Store)
type UserRepository interface {
	// Create атомарно сохраняет пользователя и его подписку.
	// Нарушение уникальности email возвращает ErrDuplicate.
	Create(ctx context.Context, user *domain.User, sub *domain.Subscription) error

	// GetByID возвращает пользователя вместе с подпиской
	GetByID(ctx context.Context, id string) (*domain.UserWithSubscription, error)

	// GetByEmail возвращает пользователя по email (точное совпадение)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdateName меняет отображаемое имя
	UpdateName(ctx context.Context, id string, name *string) error

	// Delete удаляет пользователя; подписка и события удаляются каскадно
	Delete(ctx context.Context, id string) error

	// List возвращает страницу пользователей (новые первыми) и общее количество
	List(ctx context.Context, offset, limit int) ([]domain.UserWithSubscription, int, error)
}

// SubscriptionRepository - хранилище записей подписок
type SubscriptionRepository interface {
	// GetByUserID возвращает подписку пользователя
	GetByUserID(ctx context.Context, userID string) (*domain.Subscription, error)

	// SetCustomerID сохраняет Stripe customer id
	SetCustomerID(ctx context.Context, userID, customerID string) error

	// UpdateByUserID применяет обновление к подписке пользователя
	UpdateByUserID(ctx context.Context, userID string, upd domain.SubscriptionUpdate) error

	// UpdateByCustomerID применяет обновление ко всем подпискам с данным customer id
	// и возвращает id затронутых пользователей (может быть пустым)
	UpdateByCustomerID(ctx context.Context, customerID string, upd domain.SubscriptionUpdate) ([]string, error)
}

// EventRepository - журнал событий аналитики (только добавление)
type EventRepository interface {
	Create(ctx context.Context, event *domain.Event) error
	List(ctx context.Context, userID string, window domain.TimeRange) ([]domain.Event, error)
	CountByEvent(ctx context.Context, userID string, window domain.TimeRange) ([]domain.EventCount, error)
	// Daily группирует события начиная с since по календарной дате и имени, новые даты первыми
	Daily(ctx context.Context, userID string, since time.Time) ([]domain.DailyBucket, error)
	Top(ctx context.Context, userID string, limit int) ([]domain.EventCount, error)
	// Count считает события; since == nil означает "за все время"
	Count(ctx context.Context, userID string, since *time.Time) (int, error)
	CountDistinct(ctx context.Context, userID string) (int, error)
}

// WebhookEventRepository - журнал обработанных событий Stripe
type WebhookEventRepository interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string, at time.Time) error
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
