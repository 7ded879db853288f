package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/saas-platform/internal/domain"
	"github.com/Dhoini/saas-platform/internal/repository"
)

func seedUser(t *testing.T, s *Store, id, email string, createdAt time.Time) {
	t.Helper()
	u := &domain.User{ID: id, Email: email, PasswordHash: "x", Role: domain.RoleUser, CreatedAt: createdAt, UpdatedAt: createdAt}
	require.NoError(t, s.Users().Create(context.Background(), u, domain.NewDefaultSubscription("sub-"+id, id, createdAt)))
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	s := NewStore(time.UTC)
	seedUser(t, s, "u1", "a@example.com", time.Now())

	err := s.Users().Create(context.Background(),
		&domain.User{ID: "u2", Email: "a@example.com"},
		domain.NewDefaultSubscription("sub-u2", "u2", time.Now()))

	assert.ErrorIs(t, err, repository.ErrDuplicate)
	_, err = s.Users().GetByID(context.Background(), "u2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEmailIsCaseSensitive(t *testing.T) {
	s := NewStore(time.UTC)
	seedUser(t, s, "u1", "a@example.com", time.Now())
	seedUser(t, s, "u2", "A@example.com", time.Now())

	u, err := s.Users().GetByEmail(context.Background(), "A@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u2", u.ID)
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := NewStore(time.UTC)
	seedUser(t, s, "u1", "a@example.com", time.Now())
	seedUser(t, s, "u2", "b@example.com", time.Now())
	require.NoError(t, s.Events().Create(ctx, &domain.Event{ID: "e1", UserID: "u1", Event: "login", Timestamp: time.Now()}))
	require.NoError(t, s.Events().Create(ctx, &domain.Event{ID: "e2", UserID: "u2", Event: "login", Timestamp: time.Now()}))

	require.NoError(t, s.Users().Delete(ctx, "u1"))

	_, err := s.Subscriptions().GetByUserID(ctx, "u1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	n, err := s.Events().Count(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Events().Count(ctx, "u2", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpdateByCustomerIDUpdatesAllMatches(t *testing.T) {
	ctx := context.Background()
	s := NewStore(time.UTC)
	seedUser(t, s, "u1", "a@example.com", time.Now())
	seedUser(t, s, "u2", "b@example.com", time.Now())
	seedUser(t, s, "u3", "c@example.com", time.Now())
	require.NoError(t, s.Subscriptions().SetCustomerID(ctx, "u1", "cus_1"))
	require.NoError(t, s.Subscriptions().SetCustomerID(ctx, "u2", "cus_1"))
	require.NoError(t, s.Subscriptions().SetCustomerID(ctx, "u3", "cus_3"))

	status := domain.SubscriptionStatusPastDue
	affected, err := s.Subscriptions().UpdateByCustomerID(ctx, "cus_1", domain.SubscriptionUpdate{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, affected)

	sub3, err := s.Subscriptions().GetByUserID(ctx, "u3")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, sub3.Status)

	affected, err = s.Subscriptions().UpdateByCustomerID(ctx, "cus_missing", domain.SubscriptionUpdate{Status: &status})
	require.NoError(t, err)
	assert.Empty(t, affected)
}

func TestListOrdersNewestFirstAndPaginates(t *testing.T) {
	s := NewStore(time.UTC)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"u1", "u2", "u3"} {
		seedUser(t, s, id, id+"@example.com", base.Add(time.Duration(i)*time.Hour))
	}

	page, total, err := s.Users().List(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "u3", page[0].ID)
	assert.Equal(t, "u2", page[1].ID)
	require.NotNil(t, page[0].Subscription)

	page, _, err = s.Users().List(context.Background(), 10, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestWebhookLedgerPrune(t *testing.T) {
	ctx := context.Background()
	s := NewStore(time.UTC)
	old := time.Now().Add(-40 * 24 * time.Hour)

	require.NoError(t, s.WebhookEvents().MarkProcessed(ctx, "evt_old", "invoice.payment_succeeded", old))
	require.NoError(t, s.WebhookEvents().MarkProcessed(ctx, "evt_new", "invoice.payment_succeeded", time.Now()))

	n, err := s.WebhookEvents().DeleteProcessedBefore(ctx, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := s.WebhookEvents().IsProcessed(ctx, "evt_new")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.WebhookEvents().IsProcessed(ctx, "evt_old")
	require.NoError(t, err)
	assert.False(t, ok)
}
