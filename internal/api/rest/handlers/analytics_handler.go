package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Dhoini/saas-platform/internal/domain"
	"github.com/Dhoini/saas-platform/internal/middleware"
	"github.com/Dhoini/saas-platform/internal/service"
	"github.com/Dhoini/saas-platform/pkg/logger"
	"github.com/Dhoini/saas-platform/pkg/req"
	"github.com/Dhoini/saas-platform/pkg/res"
)

// TrackRequest - тело запроса записи события
type TrackRequest struct {
	Event    string          `json:"event"`
	Metadata json.RawMessage `json:"metadata"`
}

// AnalyticsHandler обработчик журнала событий
type AnalyticsHandler struct {
	svc service.AnalyticsService
	loc *time.Location
	log *logger.Logger
}

// NewAnalyticsHandler создает новый обработчик аналитики.
// loc используется для дат вида YYYY-MM-DD.
func NewAnalyticsHandler(svc service.AnalyticsService, loc *time.Location, log *logger.Logger) *AnalyticsHandler {
	if loc == nil {
		loc = time.Local
	}
	return &AnalyticsHandler{svc: svc, loc: loc, log: log}
}

// Track записывает событие текущего пользователя
func (h *AnalyticsHandler) Track(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		res.Error(c, domain.NewUnauthenticatedError("Authentication required"), h.log)
		return
	}

	body, err := req.HandleBody[TrackRequest](c)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}

	event, err := h.svc.Record(c.Request.Context(), user.ID, body.Event, body.Metadata)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}
	res.JSON(c, http.StatusCreated, gin.H{
		"message":   "Event tracked successfully",
		"analytics": event,
	})
}

// List возвращает события пользователя за период
func (h *AnalyticsHandler) List(c *gin.Context) {
	user, window, ok := h.userAndWindow(c)
	if !ok {
		return
	}

	events, err := h.svc.List(c.Request.Context(), user.ID, window)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}
	res.JSON(c, http.StatusOK, gin.H{"analytics": events})
}

// EventCounts возвращает количество событий по имени за период
func (h *AnalyticsHandler) EventCounts(c *gin.Context) {
	user, window, ok := h.userAndWindow(c)
	if !ok {
		return
	}

	counts, err := h.svc.Aggregate(c.Request.Context(), user.ID, window)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}
	res.JSON(c, http.StatusOK, gin.H{"eventCounts": counts})
}

// Daily возвращает дневную статистику за последние days дней
func (h *AnalyticsHandler) Daily(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		res.Error(c, domain.NewUnauthenticatedError("Authentication required"), h.log)
		return
	}
	days, err := intQuery(c, "days", service.DefaultDailyWindowDays)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}

	buckets, err := h.svc.DailyBuckets(c.Request.Context(), user.ID, days)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}
	res.JSON(c, http.StatusOK, gin.H{"dailyAnalytics": buckets})
}

// Top возвращает самые частые события
func (h *AnalyticsHandler) Top(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		res.Error(c, domain.NewUnauthenticatedError("Authentication required"), h.log)
		return
	}
	limit, err := intQuery(c, "limit", service.DefaultTopEventsLimit)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}

	top, err := h.svc.TopEvents(c.Request.Context(), user.ID, limit)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}
	res.JSON(c, http.StatusOK, gin.H{"topEvents": top})
}

// Summary возвращает сводку по событиям пользователя
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		res.Error(c, domain.NewUnauthenticatedError("Authentication required"), h.log)
		return
	}

	summary, err := h.svc.Summary(c.Request.Context(), user.ID)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}
	res.JSON(c, http.StatusOK, gin.H{"summary": summary})
}

func (h *AnalyticsHandler) userAndWindow(c *gin.Context) (*domain.UserWithSubscription, domain.TimeRange, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		res.Error(c, domain.NewUnauthenticatedError("Authentication required"), h.log)
		return nil, domain.TimeRange{}, false
	}
	window, err := h.parseWindow(c)
	if err != nil {
		res.Error(c, err, h.log)
		return nil, domain.TimeRange{}, false
	}
	return user, window, true
}

// parseWindow читает startDate/endDate в формате RFC3339 или YYYY-MM-DD (включительно)
func (h *AnalyticsHandler) parseWindow(c *gin.Context) (domain.TimeRange, error) {
	var window domain.TimeRange
	for _, p := range []struct {
		name  string
		dst   **time.Time
		isEnd bool
	}{
		{"startDate", &window.Start, false},
		{"endDate", &window.End, true},
	} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		t, err := h.parseDate(raw, p.isEnd)
		if err != nil {
			return domain.TimeRange{}, domain.NewValidationError("Invalid " + p.name + " parameter")
		}
		*p.dst = &t
	}
	if window.Start != nil && window.End != nil && window.End.Before(*window.Start) {
		return domain.TimeRange{}, domain.NewValidationError("endDate must not be before startDate")
	}
	return window, nil
}

// parseDate разбирает момент времени. Дата без времени в качестве конца
// окна означает последний момент этого дня.
func (h *AnalyticsHandler) parseDate(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation(domain.DateLayout, raw, h.loc)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return day, nil
}
