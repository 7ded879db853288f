package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/Dhoini/saas-platform/internal/domain"
	"github.com/Dhoini/saas-platform/internal/repository"
	"github.com/Dhoini/saas-platform/pkg/logger"
)

const subscriptionColumns = `id, user_id, plan, status, stripe_customer_id, stripe_subscription_id,
	stripe_price_id, current_period_end, created_at, updated_at`

// SubscriptionRepository реализация хранилища подписок на PostgreSQL
type SubscriptionRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewSubscriptionRepository создает новый репозиторий подписок
func NewSubscriptionRepository(db *sqlx.DB, log *logger.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{db: db, log: log}
}

var _ repository.SubscriptionRepository = (*SubscriptionRepository)(nil)

// GetByUserID возвращает подписку пользователя
func (r *SubscriptionRepository) GetByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := r.db.GetContext(ctx, &sub, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1`, userID)
	if err != nil {
		if err = mapError(err); errors.Is(err, repository.ErrNotFound) {
			r.log.Warnw("Subscription not found by user ID", "userID", userID)
			return nil, err
		}
		r.log.Errorw("Failed to get subscription from DB", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

// SetCustomerID сохраняет Stripe customer id для подписки пользователя
func (r *SubscriptionRepository) SetCustomerID(ctx context.Context, userID, customerID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions SET stripe_customer_id = $2, updated_at = now()
		WHERE user_id = $1`, userID, customerID)
	if err != nil {
		r.log.Errorw("Failed to store Stripe customer ID", "error", err, "userID", userID)
		return fmt.Errorf("failed to set customer id: %w", err)
	}
	return requireAffected(res)
}

// UpdateByUserID применяет обновление к подписке пользователя
func (r *SubscriptionRepository) UpdateByUserID(ctx context.Context, userID string, upd domain.SubscriptionUpdate) error {
	set, args := buildSubscriptionSet(upd)
	args = append(args, userID)
	query := fmt.Sprintf(`UPDATE subscriptions SET %s WHERE user_id = $%d`, set, len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.Errorw("Failed to update subscription by user", "error", err, "userID", userID)
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return requireAffected(res)
}

// UpdateByCustomerID обновляет все подписки с данным customer id.
// Совпадений может быть ноль или несколько, возвращаются id затронутых пользователей.
func (r *SubscriptionRepository) UpdateByCustomerID(ctx context.Context, customerID string, upd domain.SubscriptionUpdate) ([]string, error) {
	set, args := buildSubscriptionSet(upd)
	args = append(args, customerID)
	query := fmt.Sprintf(`UPDATE subscriptions SET %s WHERE stripe_customer_id = $%d RETURNING user_id`, set, len(args))

	var userIDs []string
	if err := r.db.SelectContext(ctx, &userIDs, query, args...); err != nil {
		r.log.Errorw("Failed to update subscriptions by customer", "error", err, "customerID", customerID)
		return nil, fmt.Errorf("failed to update subscriptions: %w", err)
	}
	if len(userIDs) > 1 {
		r.log.Warnw("Stripe customer shared by several subscriptions", "customerID", customerID, "count", len(userIDs))
	}
	return userIDs, nil
}

// buildSubscriptionSet собирает SET-часть запроса; updated_at обновляется всегда
func buildSubscriptionSet(upd domain.SubscriptionUpdate) (string, []any) {
	var (
		parts []string
		args  []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		parts = append(parts, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Plan != nil {
		add("plan", string(*upd.Plan))
	}
	if upd.Status != nil {
		add("status", string(*upd.Status))
	}
	if upd.StripeSubscriptionID != nil {
		add("stripe_subscription_id", *upd.StripeSubscriptionID)
	}
	switch {
	case upd.ClearPriceID:
		parts = append(parts, "stripe_price_id = NULL")
	case upd.StripePriceID != nil:
		add("stripe_price_id", *upd.StripePriceID)
	}
	switch {
	case upd.ClearPeriodEnd:
		parts = append(parts, "current_period_end = NULL")
	case upd.CurrentPeriodEnd != nil:
		add("current_period_end", *upd.CurrentPeriodEnd)
	}
	parts = append(parts, "updated_at = now()")

	return strings.Join(parts, ", "), args
}
