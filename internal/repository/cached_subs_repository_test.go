package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/saas-platform/internal/domain"
	"github.com/Dhoini/saas-platform/internal/repository"
	"github.com/Dhoini/saas-platform/internal/repository/memory"
	"github.com/Dhoini/saas-platform/pkg/logger"
)

type mapCache struct {
	mu      sync.Mutex
	data    map[string]domain.Subscription
	gets    int
	hits    int
	failGet bool
}

func newMapCache() *mapCache { return &mapCache{data: map[string]domain.Subscription{}} }

func (c *mapCache) Get(_ context.Context, userID string) (*domain.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.failGet {
		return nil, errors.New("redis unavailable")
	}
	sub, ok := c.data[userID]
	if !ok {
		return nil, nil
	}
	c.hits++
	return &sub, nil
}

func (c *mapCache) Set(_ context.Context, sub *domain.Subscription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[sub.UserID] = *sub
	return nil
}

func (c *mapCache) Delete(_ context.Context, userIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range userIDs {
		delete(c.data, id)
	}
	return nil
}

func setup(t *testing.T) (*memory.Store, *mapCache, *repository.CachedSubscriptionRepository) {
	t.Helper()
	store := memory.NewStore(time.UTC)
	now := time.Now()
	for _, id := range []string{"u1", "u2"} {
		require.NoError(t, store.Users().Create(context.Background(),
			&domain.User{ID: id, Email: id + "@example.com", Role: domain.RoleUser, CreatedAt: now},
			domain.NewDefaultSubscription("s-"+id, id, now)))
	}
	cache := newMapCache()
	return store, cache, repository.NewCachedSubscriptionRepository(store.Subscriptions(), cache, logger.NewNop())
}

func TestCachedGetReadsThrough(t *testing.T) {
	_, cache, repo := setup(t)
	ctx := context.Background()

	first, err := repo.GetByUserID(ctx, "u1")
	require.NoError(t, err)
	second, err := repo.GetByUserID(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, cache.gets)
	assert.Equal(t, 1, cache.hits)
}

func TestCachedWritesInvalidate(t *testing.T) {
	_, _, repo := setup(t)
	ctx := context.Background()

	_, err := repo.GetByUserID(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, repo.SetCustomerID(ctx, "u1", "cus_1"))

	sub, err := repo.GetByUserID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, sub.StripeCustomerID)
	assert.Equal(t, "cus_1", *sub.StripeCustomerID)

	plan := domain.PlanPro
	ids, err := repo.UpdateByCustomerID(ctx, "cus_1", domain.SubscriptionUpdate{Plan: &plan})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, ids)

	sub, err = repo.GetByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPro, sub.Plan)
}

func TestCachedFallsBackWhenCacheFails(t *testing.T) {
	_, cache, repo := setup(t)
	cache.failGet = true

	sub, err := repo.GetByUserID(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, "s-u2", sub.ID)
}

func TestInvalidateUserAfterDelete(t *testing.T) {
	store, _, repo := setup(t)
	ctx := context.Background()

	_, err := repo.GetByUserID(ctx, "u2")
	require.NoError(t, err)

	require.NoError(t, store.Users().Delete(ctx, "u2"))
	repo.InvalidateUser(ctx, "u2")

	_, err = repo.GetByUserID(ctx, "u2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
