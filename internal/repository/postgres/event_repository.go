package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Dhoini/saas-platform/internal/domain"
	"github.com/Dhoini/saas-platform/internal/repository"
	"github.com/Dhoini/saas-platform/pkg/logger"
)

// eventRow - строка analytics_events; metadata читается как текст
type eventRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Event     string    `db:"event"`
	Metadata  *string   `db:"metadata"`
	Timestamp time.Time `db:"timestamp"`
}

func (r eventRow) toDomain() domain.Event {
	e := domain.Event{ID: r.ID, UserID: r.UserID, Event: r.Event, Timestamp: r.Timestamp}
	if r.Metadata != nil {
		e.Metadata = json.RawMessage(*r.Metadata)
	}
	return e
}

// EventRepository журнал аналитики на PostgreSQL
type EventRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewEventRepository создает новый репозиторий событий
func NewEventRepository(db *sqlx.DB, log *logger.Logger) *EventRepository {
	return &EventRepository{db: db, log: log}
}

var _ repository.EventRepository = (*EventRepository)(nil)

// Create добавляет событие
func (r *EventRepository) Create(ctx context.Context, event *domain.Event) error {
	var metadata *string
	if len(event.Metadata) > 0 {
		s := string(event.Metadata)
		metadata = &s
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO analytics_events (id, user_id, event, metadata, "timestamp")
		VALUES ($1, $2, $3, $4::jsonb, $5)`,
		event.ID, event.UserID, event.Event, metadata, event.Timestamp,
	)
	if err != nil {
		r.log.Errorw("Failed to insert analytics event", "error", err, "userID", event.UserID, "event", event.Event)
		return fmt.Errorf("failed to record event: %w", mapError(err))
	}
	return nil
}

// List возвращает события пользователя, новые первыми
func (r *EventRepository) List(ctx context.Context, userID string, window domain.TimeRange) ([]domain.Event, error) {
	var rows []eventRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, event, metadata::text AS metadata, "timestamp"
		FROM analytics_events
		WHERE user_id = $1
		  AND ($2::timestamptz IS NULL OR "timestamp" >= $2)
		  AND ($3::timestamptz IS NULL OR "timestamp" <= $3)
		ORDER BY "timestamp" DESC`, userID, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]domain.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toDomain())
	}
	return events, nil
}

// CountByEvent считает события по имени в окне
func (r *EventRepository) CountByEvent(ctx context.Context, userID string, window domain.TimeRange) ([]domain.EventCount, error) {
	counts := []domain.EventCount{}
	err := r.db.SelectContext(ctx, &counts, `
		SELECT event, COUNT(*) AS count
		FROM analytics_events
		WHERE user_id = $1
		  AND ($2::timestamptz IS NULL OR "timestamp" >= $2)
		  AND ($3::timestamptz IS NULL OR "timestamp" <= $3)
		GROUP BY event
		ORDER BY count DESC, event`, userID, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	return counts, nil
}

// Daily группирует события по дате (часовой пояс сессии) и имени
func (r *EventRepository) Daily(ctx context.Context, userID string, since time.Time) ([]domain.DailyBucket, error) {
	buckets := []domain.DailyBucket{}
	err := r.db.SelectContext(ctx, &buckets, `
		SELECT to_char(DATE("timestamp"), 'YYYY-MM-DD') AS date, event, COUNT(*) AS count
		FROM analytics_events
		WHERE user_id = $1 AND "timestamp" >= $2
		GROUP BY DATE("timestamp"), event
		ORDER BY DATE("timestamp") DESC, event`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily analytics: %w", err)
	}
	return buckets, nil
}

// Top возвращает самые частые события
func (r *EventRepository) Top(ctx context.Context, userID string, limit int) ([]domain.EventCount, error) {
	counts := []domain.EventCount{}
	err := r.db.SelectContext(ctx, &counts, `
		SELECT event, COUNT(*) AS count
		FROM analytics_events
		WHERE user_id = $1
		GROUP BY event
		ORDER BY count DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top events: %w", err)
	}
	return counts, nil
}

// Count считает события начиная с since (nil - за все время)
func (r *EventRepository) Count(ctx context.Context, userID string, since *time.Time) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM analytics_events
		WHERE user_id = $1 AND ($2::timestamptz IS NULL OR "timestamp" >= $2)`, userID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// CountDistinct считает уникальные имена событий
func (r *EventRepository) CountDistinct(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(DISTINCT event) FROM analytics_events WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count event types: %w", err)
	}
	return n, nil
}
