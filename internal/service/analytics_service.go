package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Dhoini/saas-platform/internal/domain"
	"github.com/Dhoini/saas-platform/internal/kafka"
	"github.com/Dhoini/saas-platform/internal/metrics"
	"github.com/Dhoini/saas-platform/internal/repository"
)

// Значения по умолчанию для выборок аналитики
const (
	DefaultDailyWindowDays = 30
	DefaultTopEventsLimit  = 10
)

// AnalyticsService интерфейс журнала событий
type AnalyticsService interface {
	Record(ctx context.Context, userID, event string, metadata json.RawMessage) (*domain.Event, error)
	List(ctx context.Context, userID string, window domain.TimeRange) ([]domain.Event, error)
	Aggregate(ctx context.Context, userID string, window domain.TimeRange) ([]domain.EventCount, error)
	DailyBuckets(ctx context.Context, userID string, days int) ([]domain.DailyBucket, error)
	TopEvents(ctx context.Context, userID string, limit int) ([]domain.EventCount, error)
	Summary(ctx context.Context, userID string) (*domain.AnalyticsSummary, error)
}

type analyticsService struct {
	events  repository.EventRepository
	loc     *time.Location
	metrics metrics.AppMetrics
	deps    Deps
}

// NewAnalyticsService создает сервис аналитики. loc - часовой пояс календарных дней.
func NewAnalyticsService(events repository.EventRepository, loc *time.Location, m metrics.AppMetrics, deps Deps) AnalyticsService {
	if loc == nil {
		loc = time.Local
	}
	if m == nil {
		m = metrics.NewNopMetrics()
	}
	return &analyticsService{
		events:  events,
		loc:     loc,
		metrics: m,
		deps:    deps.withDefaults(),
	}
}

// Record сохраняет событие с серверной меткой времени
func (s *analyticsService) Record(ctx context.Context, userID, event string, metadata json.RawMessage) (*domain.Event, error) {
	if strings.TrimSpace(event) == "" {
		return nil, domain.NewValidationError("Event name is required")
	}
	if len(metadata) > 0 && !json.Valid(metadata) {
		return nil, domain.NewValidationError("Metadata must be valid JSON")
	}
	if string(metadata) == "null" {
		metadata = nil
	}

	ev := &domain.Event{
		ID:        s.deps.NewID(),
		UserID:    userID,
		Event:     event,
		Metadata:  metadata,
		Timestamp: s.deps.Now(),
	}
	if err := s.events.Create(ctx, ev); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("User", userID)
		}
		return nil, domain.NewInternalError("failed to record event", err)
	}

	s.metrics.IncEventTracked()
	s.deps.publish(ctx, kafka.EventAnalyticsTracked, userID, map[string]string{"event": event})
	return ev, nil
}

// List возвращает события пользователя, новые первыми
func (s *analyticsService) List(ctx context.Context, userID string, window domain.TimeRange) ([]domain.Event, error) {
	events, err := s.events.List(ctx, userID, window)
	if err != nil {
		return nil, domain.NewInternalError("failed to list events", err)
	}
	return events, nil
}

// Aggregate считает события по имени в окне с включительными границами
func (s *analyticsService) Aggregate(ctx context.Context, userID string, window domain.TimeRange) ([]domain.EventCount, error) {
	counts, err := s.events.CountByEvent(ctx, userID, window)
	if err != nil {
		return nil, domain.NewInternalError("failed to aggregate events", err)
	}
	return counts, nil
}

// DailyBuckets группирует события за последние days календарных дней
func (s *analyticsService) DailyBuckets(ctx context.Context, userID string, days int) ([]domain.DailyBucket, error) {
	if days <= 0 {
		days = DefaultDailyWindowDays
	}
	since := domain.StartOfDay(s.deps.Now().In(s.loc)).AddDate(0, 0, -days)

	buckets, err := s.events.Daily(ctx, userID, since)
	if err != nil {
		return nil, domain.NewInternalError("failed to load daily analytics", err)
	}
	return buckets, nil
}

// TopEvents возвращает самые частые события
func (s *analyticsService) TopEvents(ctx context.Context, userID string, limit int) ([]domain.EventCount, error) {
	if limit <= 0 {
		limit = DefaultTopEventsLimit
	}
	top, err := s.events.Top(ctx, userID, limit)
	if err != nil {
		return nil, domain.NewInternalError("failed to load top events", err)
	}
	return top, nil
}

// Summary возвращает общее число событий, за сегодня, за 7 дней и число типов
func (s *analyticsService) Summary(ctx context.Context, userID string) (*domain.AnalyticsSummary, error) {
	now := s.deps.Now().In(s.loc)
	today := domain.StartOfDay(now)
	weekAgo := now.AddDate(0, 0, -7)

	var (
		summary domain.AnalyticsSummary
		err     error
	)
	if summary.TotalEvents, err = s.events.Count(ctx, userID, nil); err != nil {
		return nil, domain.NewInternalError("failed to count events", err)
	}
	if summary.TodayEvents, err = s.events.Count(ctx, userID, &today); err != nil {
		return nil, domain.NewInternalError("failed to count today's events", err)
	}
	if summary.WeekEvents, err = s.events.Count(ctx, userID, &weekAgo); err != nil {
		return nil, domain.NewInternalError("failed to count week's events", err)
	}
	if summary.UniqueEventTypes, err = s.events.CountDistinct(ctx, userID); err != nil {
		return nil, domain.NewInternalError("failed to count event types", err)
	}
	return &summary, nil
}
