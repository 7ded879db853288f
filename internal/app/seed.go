package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/Dhoini/saas-platform/internal/domain"
	"github.com/Dhoini/saas-platform/internal/repository"
	"github.com/Dhoini/saas-platform/internal/service"
	"github.com/Dhoini/saas-platform/pkg/logger"
)

// SeedAccount - учетная запись для начального наполнения БД
type SeedAccount struct {
	Email    string
	Password string
	Name     string
	Role     domain.Role
	Plan     domain.Plan
}

// DefaultSeedAccounts - администратор и тестовый пользователь
var DefaultSeedAccounts = []SeedAccount{
	{Email: "admin@example.com", Password: "admin123", Name: "Admin User", Role: domain.RoleAdmin, Plan: domain.PlanEnterprise},
	{Email: "test@example.com", Password: "test123", Name: "Test User", Role: domain.RoleUser, Plan: domain.PlanFree},
}

// SampleEvents - имена событий для демонстрационной аналитики
var SampleEvents = []string{"llm_request", "api_call", "dashboard_view", "subscription_view", "profile_update"}

// Seeder наполняет хранилище демонстрационными данными
type Seeder struct {
	Storage *Storage
	Hasher  service.PasswordHasher
	Rand    *rand.Rand
	Now     func() time.Time
	Log     *logger.Logger
}

// Seed создает учетные записи (существующие пропускаются) и события
// для последнего пользователя из списка
func (s *Seeder) Seed(ctx context.Context, accounts []SeedAccount) error {
	var last *domain.User
	for _, acc := range accounts {
		user, created, err := s.ensureAccount(ctx, acc)
		if err != nil {
			return err
		}
		if created {
			s.Log.Infow("Created user", "email", acc.Email, "role", acc.Role, "plan", acc.Plan)
		} else {
			s.Log.Infow("User already exists, skipping", "email", acc.Email)
		}
		last = user
	}

	if last == nil {
		return nil
	}
	n, err := s.seedEvents(ctx, last.ID)
	if err != nil {
		return err
	}
	s.Log.Infow("Created sample analytics data", "userID", last.ID, "events", n)
	return nil
}

func (s *Seeder) ensureAccount(ctx context.Context, acc SeedAccount) (*domain.User, bool, error) {
	existing, err := s.Storage.Users.GetByEmail(ctx, acc.Email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup %s: %w", acc.Email, err)
	}

	hash, err := s.Hasher.Hash(acc.Password)
	if err != nil {
		return nil, false, err
	}

	now := s.Now()
	name := acc.Name
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        acc.Email,
		PasswordHash: hash,
		Name:         &name,
		Role:         acc.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	sub := domain.NewDefaultSubscription(uuid.NewString(), user.ID, now)
	sub.Plan = acc.Plan

	if err := s.Storage.Users.Create(ctx, user, sub); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return s.ensureAccount(ctx, acc)
		}
		return nil, false, fmt.Errorf("create %s: %w", acc.Email, err)
	}
	return user, true, nil
}

func (s *Seeder) seedEvents(ctx context.Context, userID string) (int, error) {
	metadata, err := json.Marshal(map[string]any{"source": "seed", "timestamp": s.Now().UTC()})
	if err != nil {
		return 0, err
	}

	total := 0
	for _, name := range SampleEvents {
		count := s.Rand.IntN(10) + 1
		for i := 0; i < count; i++ {
			ev := &domain.Event{
				ID:        uuid.NewString(),
				UserID:    userID,
				Event:     name,
				Metadata:  metadata,
				Timestamp: s.Now(),
			}
			if err := s.Storage.Events.Create(ctx, ev); err != nil {
				return total, fmt.Errorf("create event %s: %w", name, err)
			}
			total++
		}
	}
	return total, nil
}
