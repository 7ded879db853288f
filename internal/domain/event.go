package domain

import (
	"encoding/json"
	"time"
)

// Event - запись аналитики. Неизменяема после записи.
type Event struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"userId" db:"user_id"`
	Event     string          `json:"event" db:"event"`
	Metadata  json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// EventCount - количество событий с одним именем
type EventCount struct {
	Event string `json:"event" db:"event"`
	Count int    `json:"count" db:"count"`
}

// DailyBucket - количество событий за календарный день
type DailyBucket struct {
	Date  string `json:"date" db:"date"`
	Event string `json:"event" db:"event"`
	Count int    `json:"count" db:"count"`
}

// AnalyticsSummary - сводка по событиям пользователя
type AnalyticsSummary struct {
	TotalEvents      int `json:"totalEvents"`
	TodayEvents      int `json:"todayEvents"`
	WeekEvents       int `json:"weekEvents"`
	UniqueEventTypes int `json:"uniqueEventTypes"`
}

// TimeRange - необязательное окно выборки, границы включительно
type TimeRange struct {
	Start *time.Time
	End   *time.Time
}

// Contains проверяет попадание момента в окно
func (r TimeRange) Contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}

// DateLayout - формат календарной даты в дневных выборках
const DateLayout = "2006-01-02"

// StartOfDay возвращает начало календарного дня в часовом поясе t
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
