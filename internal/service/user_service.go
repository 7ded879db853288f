package service

import (
	"context"
	"errors"
	"math"

	"github.com/Dhoini/saas-platform/internal/domain"
	"github.com/Dhoini/saas-platform/internal/kafka"
	"github.com/Dhoini/saas-platform/internal/repository"
)

// Параметры постраничной выборки пользователей
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// UserService интерфейс сервиса профиля и администрирования пользователей
type UserService interface {
	GetProfile(ctx context.Context, userID string) (*domain.UserWithSubscription, error)
	UpdateProfile(ctx context.Context, userID string, name *string) (*domain.UserWithSubscription, error)
	DeleteAccount(ctx context.Context, userID string) error
	List(ctx context.Context, page, limit int) ([]domain.UserWithSubscription, domain.Pagination, error)
}

type userService struct {
	users repository.UserRepository
	cache repository.SubscriptionCacheInvalidator
	deps  Deps
}

// NewUserService создает новый сервис пользователей; cache может быть nil
func NewUserService(users repository.UserRepository, cache repository.SubscriptionCacheInvalidator, deps Deps) UserService {
	return &userService{
		users: users,
		cache: cache,
		deps:  deps.withDefaults(),
	}
}

// GetProfile возвращает профиль пользователя
func (s *userService) GetProfile(ctx context.Context, userID string) (*domain.UserWithSubscription, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOrInternal(err, "User", userID)
	}
	return user, nil
}

// UpdateProfile меняет отображаемое имя и возвращает обновленный профиль
func (s *userService) UpdateProfile(ctx context.Context, userID string, name *string) (*domain.UserWithSubscription, error) {
	if err := s.users.UpdateName(ctx, userID, name); err != nil {
		return nil, notFoundOrInternal(err, "User", userID)
	}
	s.deps.Log.Infow("Profile updated", "userID", userID)
	return s.GetProfile(ctx, userID)
}

// DeleteAccount удаляет пользователя вместе с подпиской и событиями
func (s *userService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		return notFoundOrInternal(err, "User", userID)
	}
	if s.cache != nil {
		s.cache.InvalidateUser(ctx, userID)
	}

	s.deps.Log.Infow("Account deleted", "userID", userID)
	s.deps.publish(ctx, kafka.EventUserDeleted, userID, nil)
	return nil
}

// List возвращает страницу пользователей, новые первыми
func (s *userService) List(ctx context.Context, page, limit int) ([]domain.UserWithSubscription, domain.Pagination, error) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	if page-1 > math.MaxInt/limit {
		return nil, domain.Pagination{}, domain.NewValidationError("Invalid page parameter")
	}

	users, total, err := s.users.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, domain.Pagination{}, domain.NewInternalError("failed to list users", err)
	}
	return users, domain.NewPagination(page, limit, total), nil
}

func notFoundOrInternal(err error, entity, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NewNotFoundError(entity, id)
	}
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return domain.NewInternalError("failed to access "+entity, err)
}
