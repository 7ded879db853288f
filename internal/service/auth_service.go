package service

import (
	"context"
	"errors"

	"github.com/Dhoini/saas-platform/internal/auth"
	"github.com/Dhoini/saas-platform/internal/domain"
	"github.com/Dhoini/saas-platform/internal/kafka"
	"github.com/Dhoini/saas-platform/internal/metrics"
	"github.com/Dhoini/saas-platform/internal/repository"
)

// Сообщения об ошибках аутентификации
const (
	MsgUserExists         = "User already exists with this email"
	MsgInvalidCredentials = "Invalid credentials"
	MsgUserNotFound       = "User not found"
)

// RegisterInput - данные регистрации
type RegisterInput struct {
	Email    string
	Password string
	Name     *string
}

// AuthResult - пользователь и выпущенный для него токен сессии
type AuthResult struct {
	User  *domain.UserWithSubscription
	Token string
}

// AuthService интерфейс сервиса регистрации и входа
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Me(ctx context.Context, userID string) (*domain.UserWithSubscription, error)
	Refresh(ctx context.Context, userID string) (*AuthResult, error)
}

// PasswordHasher хеширует и сверяет пароли
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenIssuer выпускает токены сессии
type TokenIssuer interface {
	Issue(user *domain.User) (string, error)
}

type authService struct {
	users   repository.UserRepository
	hasher  PasswordHasher
	tokens  TokenIssuer
	metrics metrics.AppMetrics
	deps    Deps
}

// NewAuthService создает новый сервис аутентификации
func NewAuthService(users repository.UserRepository, hasher PasswordHasher, tokens TokenIssuer, m metrics.AppMetrics, deps Deps) AuthService {
	if m == nil {
		m = metrics.NewNopMetrics()
	}
	return &authService{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		metrics: m,
		deps:    deps.withDefaults(),
	}
}

// Register создает пользователя с подпиской FREE/ACTIVE и выпускает токен.
// Предварительная проверка email носит информационный характер: окончательное
// решение принимает уникальный индекс хранилища.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	log := s.deps.Log
	if in.Email == "" || in.Password == "" {
		return nil, domain.NewValidationError("Email and password are required")
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		s.metrics.IncAuth("register", metrics.OutcomeConflict)
		log.Warnw("Registration rejected, email already taken", "email", in.Email)
		return nil, domain.NewConflictError(MsgUserExists, repository.ErrDuplicate)
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.metrics.IncAuth("register", metrics.OutcomeFailed)
		return nil, domain.NewInternalError("failed to check email", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.metrics.IncAuth("register", metrics.OutcomeFailed)
		return nil, domain.NewInternalError("failed to hash password", err)
	}

	now := s.deps.Now().UTC()
	user := &domain.User{
		ID:           s.deps.NewID(),
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	sub := domain.NewDefaultSubscription(s.deps.NewID(), user.ID, now)

	if err := s.users.Create(ctx, user, sub); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Параллельная регистрация прошла предварительную проверку раньше нас
			s.metrics.IncAuth("register", metrics.OutcomeConflict)
			log.Warnw("Registration lost unique email race", "email", in.Email)
			return nil, domain.NewConflictError(MsgUserExists, err)
		}
		s.metrics.IncAuth("register", metrics.OutcomeFailed)
		return nil, domain.NewInternalError("failed to create user", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, domain.NewInternalError("failed to issue token", err)
	}

	s.metrics.IncAuth("register", metrics.OutcomeSuccess)
	log.Infow("User registered", "userID", user.ID)
	s.deps.publish(ctx, kafka.EventUserRegistered, user.ID, map[string]string{"email": user.Email})

	return &AuthResult{
		User:  &domain.UserWithSubscription{User: *user, Subscription: sub},
		Token: token,
	}, nil
}

// Login проверяет учетные данные. Неизвестный email и неверный пароль
// дают одинаковую ошибку.
func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if email == "" || password == "" {
		return nil, domain.NewValidationError("Email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.IncAuth("login", metrics.OutcomeRejected)
			return nil, domain.NewUnauthenticatedError(MsgInvalidCredentials)
		}
		s.metrics.IncAuth("login", metrics.OutcomeFailed)
		return nil, domain.NewInternalError("failed to load user", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.metrics.IncAuth("login", metrics.OutcomeRejected)
			return nil, domain.NewUnauthenticatedError(MsgInvalidCredentials)
		}
		s.metrics.IncAuth("login", metrics.OutcomeFailed)
		return nil, domain.NewInternalError("failed to verify password", err)
	}

	result, err := s.issueFor(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	s.metrics.IncAuth("login", metrics.OutcomeSuccess)
	s.deps.Log.Infow("User logged in", "userID", user.ID)
	return result, nil
}

// Me возвращает текущего пользователя с подпиской
func (s *authService) Me(ctx context.Context, userID string) (*domain.UserWithSubscription, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("User", userID)
		}
		return nil, domain.NewInternalError("failed to load user", err)
	}
	return user, nil
}

// Refresh перевыпускает токен по актуальной записи пользователя
func (s *authService) Refresh(ctx context.Context, userID string) (*AuthResult, error) {
	return s.issueFor(ctx, userID)
}

func (s *authService) issueFor(ctx context.Context, userID string) (*AuthResult, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(&user.User)
	if err != nil {
		return nil, domain.NewInternalError("failed to issue token", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
