package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Dhoini/saas-platform/internal/repository"
)

// WebhookEventRepository журнал обработанных событий Stripe
type WebhookEventRepository struct {
	db *sqlx.DB
}

// NewWebhookEventRepository создает новый журнал
func NewWebhookEventRepository(db *sqlx.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

var _ repository.WebhookEventRepository = (*WebhookEventRepository)(nil)

func (r *WebhookEventRepository) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM processed_webhook_events WHERE event_id = $1)`, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to check webhook event: %w", err)
	}
	return exists, nil
}

func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, eventID, eventType string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO processed_webhook_events (event_id, event_type, processed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING`, eventID, eventType, at)
	if err != nil {
		return fmt.Errorf("failed to mark webhook event processed: %w", err)
	}
	return nil
}

func (r *WebhookEventRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM processed_webhook_events WHERE processed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune webhook events: %w", err)
	}
	return res.RowsAffected()
}
