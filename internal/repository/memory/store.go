// Package memory содержит реализацию репозиториев в памяти процесса.
// Используется в тестах сервисов и при запуске с database.driver=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dhoini/saas-platform/internal/domain"
	"github.com/Dhoini/saas-platform/internal/repository"
)

// Store хранит все таблицы и обеспечивает те же инварианты, что и схема Postgres:
// уникальный email, одна подписка на пользователя, каскадное удаление.
type Store struct {
	mu        sync.RWMutex
	loc       *time.Location
	users     map[string]domain.User
	subs      map[string]domain.Subscription // ключ - user id
	events    []domain.Event
	processed map[string]processedEvent
}

type processedEvent struct {
	eventType   string
	processedAt time.Time
}

// NewStore создает пустое хранилище; даты группируются в часовом поясе loc
func NewStore(loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{
		loc:       loc,
		users:     make(map[string]domain.User),
		subs:      make(map[string]domain.Subscription),
		processed: make(map[string]processedEvent),
	}
}

// Users возвращает UserRepository поверх хранилища
func (s *Store) Users() repository.UserRepository { return &userRepo{s} }

// Subscriptions возвращает SubscriptionRepository поверх хранилища
func (s *Store) Subscriptions() repository.SubscriptionRepository { return &subscriptionRepo{s} }

// Events возвращает EventRepository поверх хранилища
func (s *Store) Events() repository.EventRepository { return &eventRepo{s} }

// WebhookEvents возвращает WebhookEventRepository поверх хранилища
func (s *Store) WebhookEvents() repository.WebhookEventRepository { return &webhookRepo{s} }

type userRepo struct{ s *Store }

func (r *userRepo) Create(_ context.Context, user *domain.User, sub *domain.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	if _, ok := r.s.users[user.ID]; ok {
		return repository.ErrDuplicate
	}
	r.s.users[user.ID] = *user
	r.s.subs[user.ID] = *sub
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id string) (*domain.UserWithSubscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.s.withSubscription(u), nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) UpdateName(_ context.Context, id string, name *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Name = cloneString(name)
	u.UpdatedAt = time.Now()
	r.s.users[id] = u
	return nil
}

func (r *userRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.users, id)
	delete(r.s.subs, id)

	kept := r.s.events[:0]
	for _, e := range r.s.events {
		if e.UserID != id {
			kept = append(kept, e)
		}
	}
	r.s.events = kept
	return nil
}

func (r *userRepo) List(_ context.Context, offset, limit int) ([]domain.UserWithSubscription, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := make([]domain.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset < 0 || offset >= total {
		return []domain.UserWithSubscription{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	page := make([]domain.UserWithSubscription, 0, end-offset)
	for _, u := range all[offset:end] {
		page = append(page, *r.s.withSubscription(u))
	}
	return page, total, nil
}

// withSubscription вызывается под блокировкой
func (s *Store) withSubscription(u domain.User) *domain.UserWithSubscription {
	out := &domain.UserWithSubscription{User: u}
	if sub, ok := s.subs[u.ID]; ok {
		cp := sub
		out.Subscription = &cp
	}
	return out
}

type subscriptionRepo struct{ s *Store }

func (r *subscriptionRepo) GetByUserID(_ context.Context, userID string) (*domain.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sub, ok := r.s.subs[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sub, nil
}

func (r *subscriptionRepo) SetCustomerID(_ context.Context, userID, customerID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sub, ok := r.s.subs[userID]
	if !ok {
		return repository.ErrNotFound
	}
	sub.StripeCustomerID = &customerID
	sub.UpdatedAt = time.Now()
	r.s.subs[userID] = sub
	return nil
}

func (r *subscriptionRepo) UpdateByUserID(_ context.Context, userID string, upd domain.SubscriptionUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sub, ok := r.s.subs[userID]
	if !ok {
		return repository.ErrNotFound
	}
	upd.Apply(&sub, time.Now())
	r.s.subs[userID] = sub
	return nil
}

func (r *subscriptionRepo) UpdateByCustomerID(_ context.Context, customerID string, upd domain.SubscriptionUpdate) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var affected []string
	now := time.Now()
	for userID, sub := range r.s.subs {
		if sub.StripeCustomerID == nil || *sub.StripeCustomerID != customerID {
			continue
		}
		upd.Apply(&sub, now)
		r.s.subs[userID] = sub
		affected = append(affected, userID)
	}
	sort.Strings(affected)
	return affected, nil
}

type eventRepo struct{ s *Store }

func (r *eventRepo) Create(_ context.Context, event *domain.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[event.UserID]; !ok {
		// аналог нарушения внешнего ключа
		return repository.ErrNotFound
	}
	r.s.events = append(r.s.events, *event)
	return nil
}

func (r *eventRepo) List(_ context.Context, userID string, window domain.TimeRange) ([]domain.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []domain.Event{}
	for _, e := range r.s.events {
		if e.UserID == userID && window.Contains(e.Timestamp) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (r *eventRepo) CountByEvent(_ context.Context, userID string, window domain.TimeRange) ([]domain.EventCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := map[string]int{}
	for _, e := range r.s.events {
		if e.UserID == userID && window.Contains(e.Timestamp) {
			counts[e.Event]++
		}
	}
	return sortedCounts(counts, 0), nil
}

func (r *eventRepo) Daily(_ context.Context, userID string, since time.Time) ([]domain.DailyBucket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	type key struct{ date, event string }
	counts := map[key]int{}
	for _, e := range r.s.events {
		if e.UserID != userID || e.Timestamp.Before(since) {
			continue
		}
		counts[key{e.Timestamp.In(r.s.loc).Format(domain.DateLayout), e.Event}]++
	}

	out := make([]domain.DailyBucket, 0, len(counts))
	for k, c := range counts {
		out = append(out, domain.DailyBucket{Date: k.date, Event: k.event, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].Event < out[j].Event
	})
	return out, nil
}

func (r *eventRepo) Top(_ context.Context, userID string, limit int) ([]domain.EventCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := map[string]int{}
	for _, e := range r.s.events {
		if e.UserID == userID {
			counts[e.Event]++
		}
	}
	return sortedCounts(counts, limit), nil
}

func (r *eventRepo) Count(_ context.Context, userID string, since *time.Time) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, e := range r.s.events {
		if e.UserID == userID && (since == nil || !e.Timestamp.Before(*since)) {
			n++
		}
	}
	return n, nil
}

func (r *eventRepo) CountDistinct(_ context.Context, userID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	seen := map[string]struct{}{}
	for _, e := range r.s.events {
		if e.UserID == userID {
			seen[e.Event] = struct{}{}
		}
	}
	return len(seen), nil
}

type webhookRepo struct{ s *Store }

func (r *webhookRepo) IsProcessed(_ context.Context, eventID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.processed[eventID]
	return ok, nil
}

func (r *webhookRepo) MarkProcessed(_ context.Context, eventID, eventType string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.processed[eventID]; !ok {
		r.s.processed[eventID] = processedEvent{eventType: eventType, processedAt: at}
	}
	return nil
}

func (r *webhookRepo) DeleteProcessedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, p := range r.s.processed {
		if p.processedAt.Before(cutoff) {
			delete(r.s.processed, id)
			n++
		}
	}
	return n, nil
}

func sortedCounts(counts map[string]int, limit int) []domain.EventCount {
	out := make([]domain.EventCount, 0, len(counts))
	for name, c := range counts {
		out = append(out, domain.EventCount{Event: name, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Event < out[j].Event
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
