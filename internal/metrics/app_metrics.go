package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Dhoini/saas-platform/pkg/logger"
)

// Исходы операций для меток
const (
	OutcomeSuccess   = "success"
	OutcomeConflict  = "conflict"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
)

// AppMetrics интерфейс для метрик приложения
type AppMetrics interface {
	ObserveHTTPRequest(method, route, status string, duration time.Duration)
	IncAuth(action, outcome string)
	IncCheckout(outcome string)
	IncWebhook(kind, outcome string)
	IncSubscriptionChange(plan, status string)
	IncEventTracked()
}

type appMetrics struct {
	log                 *logger.Logger
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	authAttempts        *prometheus.CounterVec
	checkoutSessions    *prometheus.CounterVec
	webhookEvents       *prometheus.CounterVec
	subscriptionChanges *prometheus.CounterVec
	eventsTracked       prometheus.Counter
}

// NewAppMetrics регистрирует метрики приложения в registry
func NewAppMetrics(registry *prometheus.Registry, log *logger.Logger) AppMetrics {
	factory := promauto.With(registry)

	return &appMetrics{
		log: log,
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "The total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency distribution",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		authAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_attempts_total",
				Help: "The total number of register and login attempts by outcome",
			},
			[]string{"action", "outcome"},
		),
		checkoutSessions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_checkout_sessions_total",
				Help: "The total number of checkout session requests by outcome",
			},
			[]string{"outcome"},
		),
		webhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_webhook_events_total",
				Help: "The total number of processed Stripe webhook events",
			},
			[]string{"kind", "outcome"},
		),
		subscriptionChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_subscription_changes_total",
				Help: "The total number of subscription state changes by resulting plan and status",
			},
			[]string{"plan", "status"},
		),
		eventsTracked: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_events_tracked_total",
				Help: "The total number of tracked analytics events",
			},
		),
	}
}

// ObserveHTTPRequest учитывает HTTP запрос и его длительность
func (m *appMetrics) ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncAuth увеличивает счетчик попыток регистрации или входа
func (m *appMetrics) IncAuth(action, outcome string) {
	m.authAttempts.WithLabelValues(action, outcome).Inc()
}

// IncCheckout увеличивает счетчик сессий оплаты
func (m *appMetrics) IncCheckout(outcome string) {
	m.checkoutSessions.WithLabelValues(outcome).Inc()
}

// IncWebhook увеличивает счетчик вебхуков
func (m *appMetrics) IncWebhook(kind, outcome string) {
	m.webhookEvents.WithLabelValues(kind, outcome).Inc()
}

// IncSubscriptionChange увеличивает счетчик изменений подписок
func (m *appMetrics) IncSubscriptionChange(plan, status string) {
	m.subscriptionChanges.WithLabelValues(plan, status).Inc()
}

// IncEventTracked увеличивает счетчик событий аналитики
func (m *appMetrics) IncEventTracked() {
	m.eventsTracked.Inc()
}

type nopMetrics struct{}

// NewNopMetrics возвращает метрики, которые ничего не записывают
func NewNopMetrics() AppMetrics { return nopMetrics{} }

func (nopMetrics) ObserveHTTPRequest(string, string, string, time.Duration) {}
func (nopMetrics) IncAuth(string, string)                                   {}
func (nopMetrics) IncCheckout(string)                                       {}
func (nopMetrics) IncWebhook(string, string)                                {}
func (nopMetrics) IncSubscriptionChange(string, string)                     {}
func (nopMetrics) IncEventTracked()                                         {}
