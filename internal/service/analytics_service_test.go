package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/saas-platform/internal/domain"
)

// recordAt записывает событие с заданным временем
func (f *fixture) recordAt(t *testing.T, userID, event string, at time.Time) {
	t.Helper()
	saved := f.now
	f.now = at
	defer func() { f.now = saved }()
	_, err := f.analytics.Record(context.Background(), userID, event, nil)
	require.NoError(t, err)
}

func TestRecordRequiresEventName(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "events@example.com")

	_, err := f.analytics.Record(context.Background(), u.ID, "  ", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	ev, err := f.analytics.Record(context.Background(), u.ID, "signup", json.RawMessage(`{"plan":"pro"}`))
	require.NoError(t, err)
	assert.Equal(t, f.now, ev.Timestamp)
}

func TestDailyBucketsTrailingWindowNewestFirst(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "daily@example.com")
	day := 24 * time.Hour

	f.recordAt(t, u.ID, "login", f.now.Add(-1*day))
	f.recordAt(t, u.ID, "login", f.now.Add(-3*day))
	f.recordAt(t, u.ID, "login", f.now.Add(-7*day))
	f.recordAt(t, u.ID, "login", f.now.Add(-9*day))

	buckets, err := f.analytics.DailyBuckets(context.Background(), u.ID, 7)
	require.NoError(t, err)
	require.Len(t, buckets, 3)
	assert.Equal(t, "2024-03-14", buckets[0].Date)
	assert.Equal(t, "2024-03-12", buckets[1].Date)
	assert.Equal(t, "2024-03-08", buckets[2].Date)

	all, err := f.analytics.DailyBuckets(context.Background(), u.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4, "default window covers 30 days")
}

func TestTopEventsTiesBySetMembership(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "top@example.com")
	for name, n := range map[string]int{"a": 5, "b": 3, "c": 5} {
		for i := 0; i < n; i++ {
			f.recordAt(t, u.ID, name, f.now)
		}
	}

	top, err := f.analytics.TopEvents(context.Background(), u.ID, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)

	names := []string{top[0].Event, top[1].Event}
	assert.ElementsMatch(t, []string{"a", "c"}, names)
	assert.Equal(t, 5, top[0].Count)
	assert.Equal(t, 5, top[1].Count)
}

func TestAggregateInclusiveWindow(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "agg@example.com")
	start := f.now.Add(-48 * time.Hour)
	end := f.now.Add(-24 * time.Hour)

	f.recordAt(t, u.ID, "view", start)
	f.recordAt(t, u.ID, "view", end)
	f.recordAt(t, u.ID, "view", f.now)
	f.recordAt(t, u.ID, "click", start.Add(-time.Second))

	counts, err := f.analytics.Aggregate(context.Background(), u.ID, domain.TimeRange{Start: &start, End: &end})
	require.NoError(t, err)
	assert.Equal(t, []domain.EventCount{{Event: "view", Count: 2}}, counts)

	counts, err = f.analytics.Aggregate(context.Background(), u.ID, domain.TimeRange{})
	require.NoError(t, err)
	assert.Len(t, counts, 2)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "summary@example.com")

	f.recordAt(t, u.ID, "login", f.now.Add(-time.Hour))
	f.recordAt(t, u.ID, "view", f.now.Add(-3*24*time.Hour))
	f.recordAt(t, u.ID, "view", f.now.Add(-20*24*time.Hour))

	summary, err := f.analytics.Summary(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AnalyticsSummary{TotalEvents: 3, TodayEvents: 1, WeekEvents: 2, UniqueEventTypes: 2}, *summary)
}

func TestEventsAreScopedToUser(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, "scope-a@example.com")
	b := f.register(t, "scope-b@example.com")
	f.recordAt(t, a.ID, "login", f.now)

	events, err := f.analytics.List(context.Background(), b.ID, domain.TimeRange{})
	require.NoError(t, err)
	assert.Empty(t, events)
}
