package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Dhoini/saas-platform/internal/db"
	"github.com/Dhoini/saas-platform/internal/domain"
	"github.com/Dhoini/saas-platform/internal/repository"
	"github.com/Dhoini/saas-platform/pkg/logger"
)

const userWithSubscriptionColumns = `
	u.id, u.email, u.password_hash, u.name, u.role, u.created_at, u.updated_at,
	s.id AS sub_id, s.plan AS sub_plan, s.status AS sub_status,
	s.stripe_customer_id, s.stripe_subscription_id, s.stripe_price_id, s.current_period_end,
	s.created_at AS sub_created_at, s.updated_at AS sub_updated_at`

// userRow - пользователь и подписка из LEFT JOIN
type userRow struct {
	domain.User
	SubID                *string    `db:"sub_id"`
	SubPlan              *string    `db:"sub_plan"`
	SubStatus            *string    `db:"sub_status"`
	StripeCustomerID     *string    `db:"stripe_customer_id"`
	StripeSubscriptionID *string    `db:"stripe_subscription_id"`
	StripePriceID        *string    `db:"stripe_price_id"`
	CurrentPeriodEnd     *time.Time `db:"current_period_end"`
	SubCreatedAt         *time.Time `db:"sub_created_at"`
	SubUpdatedAt         *time.Time `db:"sub_updated_at"`
}

func (r userRow) toDomain() *domain.UserWithSubscription {
	out := &domain.UserWithSubscription{User: r.User}
	if r.SubID == nil {
		return out
	}
	sub := &domain.Subscription{
		ID:                   *r.SubID,
		UserID:               r.User.ID,
		StripeCustomerID:     r.StripeCustomerID,
		StripeSubscriptionID: r.StripeSubscriptionID,
		StripePriceID:        r.StripePriceID,
		CurrentPeriodEnd:     r.CurrentPeriodEnd,
	}
	if r.SubPlan != nil {
		sub.Plan = domain.Plan(*r.SubPlan)
	}
	if r.SubStatus != nil {
		sub.Status = domain.SubscriptionStatus(*r.SubStatus)
	}
	if r.SubCreatedAt != nil {
		sub.CreatedAt = *r.SubCreatedAt
	}
	if r.SubUpdatedAt != nil {
		sub.UpdatedAt = *r.SubUpdatedAt
	}
	out.Subscription = sub
	return out
}

// UserRepository реализация хранилища пользователей на PostgreSQL
type UserRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewUserRepository создает новый репозиторий пользователей
func NewUserRepository(db *sqlx.DB, log *logger.Logger) *UserRepository {
	return &UserRepository{db: db, log: log}
}

var _ repository.UserRepository = (*UserRepository)(nil)

// Create сохраняет пользователя и подписку FREE/ACTIVE в одной транзакции
func (r *UserRepository) Create(ctx context.Context, user *domain.User, sub *domain.Subscription) error {
	err := db.RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, password_hash, name, role, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			user.ID, user.Email, user.PasswordHash, user.Name, string(user.Role), user.CreatedAt, user.UpdatedAt,
		)
		if err != nil {
			return mapError(err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO subscriptions (id, user_id, plan, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			sub.ID, sub.UserID, string(sub.Plan), string(sub.Status), sub.CreatedAt, sub.UpdatedAt,
		)
		return mapError(err)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			r.log.Warnw("Duplicate user on insert", "email", user.Email)
			return repository.ErrDuplicate
		}
		r.log.Errorw("Failed to create user in DB", "error", err, "userID", user.ID)
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID возвращает пользователя с подпиской
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.UserWithSubscription, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, `
		SELECT `+userWithSubscriptionColumns+`
		FROM users u
		LEFT JOIN subscriptions s ON s.user_id = u.id
		WHERE u.id = $1`, id)
	if err != nil {
		if err = mapError(err); errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		r.log.Errorw("Failed to get user by ID from DB", "error", err, "userID", id)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return row.toDomain(), nil
}

// GetByEmail возвращает пользователя по email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.db.GetContext(ctx, &user, `
		SELECT id, email, password_hash, name, role, created_at, updated_at
		FROM users
		WHERE email = $1`, email)
	if err != nil {
		if err = mapError(err); errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// UpdateName обновляет отображаемое имя
func (r *UserRepository) UpdateName(ctx context.Context, id string, name *string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET name = $2, updated_at = now() WHERE id = $1`, id, name)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", mapError(err))
	}
	return requireAffected(res)
}

// Delete удаляет пользователя; ON DELETE CASCADE удаляет подписку и события
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		r.log.Errorw("Failed to delete user from DB", "error", err, "userID", id)
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireAffected(res)
}

// List возвращает страницу пользователей, новые первыми
func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]domain.UserWithSubscription, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	var rows []userRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+userWithSubscriptionColumns+`
		FROM users u
		LEFT JOIN subscriptions s ON s.user_id = u.id
		ORDER BY u.created_at DESC, u.id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]domain.UserWithSubscription, 0, len(rows))
	for _, row := range rows {
		users = append(users, *row.toDomain())
	}
	return users, total, nil
}
