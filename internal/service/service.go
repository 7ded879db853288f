package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Dhoini/saas-platform/internal/kafka"
	"github.com/Dhoini/saas-platform/pkg/logger"
)

// Clock возвращает текущее время; подменяется в тестах
type Clock func() time.Time

// IDGenerator выдает идентификаторы новых записей
type IDGenerator func() string

// Deps - общие зависимости сервисов
type Deps struct {
	Publisher kafka.Publisher
	Log       *logger.Logger
	Now       Clock
	NewID     IDGenerator
}

func (d Deps) withDefaults() Deps {
	if d.Publisher == nil {
		d.Publisher = kafka.NopPublisher{}
	}
	if d.Log == nil {
		d.Log = logger.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return d
}

// publish отправляет доменное событие; ошибка публикации только логируется
func (d Deps) publish(ctx context.Context, eventType, userID string, payload any) {
	err := d.Publisher.Publish(ctx, kafka.Event{
		Type:       eventType,
		UserID:     userID,
		OccurredAt: d.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		d.Log.Warnw("Failed to publish domain event", "type", eventType, "userID", userID, "error", err)
	}
}
