package scheduler

import (
	"context"
	"time"

	"github.com/Dhoini/saas-platform/internal/metrics"
	"github.com/Dhoini/saas-platform/internal/repository"
	"github.com/Dhoini/saas-platform/pkg/logger"
)

const (
	// DefaultLimiterIdle - через сколько простоя клиент забывается ограничителем
	DefaultLimiterIdle = 10 * time.Minute
	// DefaultWebhookRetention - сколько хранить идентификаторы обработанных вебхуков
	DefaultWebhookRetention = 30 * 24 * time.Hour

	jobTimeout = 30 * time.Second
)

// LimiterCleaner удаляет неактивных клиентов ограничителя
type LimiterCleaner interface {
	Cleanup(idle time.Duration) int
}

// PoolStatsFunc возвращает состояние пула соединений или nil
type PoolStatsFunc func() *metrics.PoolStats

// HealthProbe проверяет хранилище и возвращает его доступность
type HealthProbe func(ctx context.Context) bool

// Jobs - набор обслуживающих задач
type Jobs struct {
	Limiter  LimiterCleaner
	Webhooks repository.WebhookEventRepository
	System   metrics.SystemMetrics
	Pool     PoolStatsFunc
	Health   HealthProbe

	LimiterIdle      time.Duration
	WebhookRetention time.Duration

	Now func() time.Time
	Log *logger.Logger
}

func (j *Jobs) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

// CleanupLimiter освобождает память ограничителя частоты запросов
func (j *Jobs) CleanupLimiter() {
	if j.Limiter == nil {
		return
	}
	idle := j.LimiterIdle
	if idle <= 0 {
		idle = DefaultLimiterIdle
	}
	if removed := j.Limiter.Cleanup(idle); removed > 0 {
		j.Log.Debugw("Rate limiter cleaned up", "removed", removed)
	}
}

// RecordSystemMetrics обновляет метрики рантайма и пула БД
func (j *Jobs) RecordSystemMetrics() {
	if j.System == nil {
		return
	}
	j.System.RecordGoroutines()
	j.System.RecordMemory()
	if j.Pool != nil {
		if stats := j.Pool(); stats != nil {
			j.System.RecordPool(*stats)
		}
	}
}

// PruneWebhookEvents удаляет устаревшие записи журнала вебхуков
func (j *Jobs) PruneWebhookEvents() {
	if j.Webhooks == nil {
		return
	}
	retention := j.WebhookRetention
	if retention <= 0 {
		retention = DefaultWebhookRetention
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	cutoff := j.now().Add(-retention)
	removed, err := j.Webhooks.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		j.Log.Errorw("Failed to prune processed webhook events", "error", err, "cutoff", cutoff)
		return
	}
	j.Log.Infow("Pruned processed webhook events", "removed", removed, "cutoff", cutoff)
}

// ProbeHealth проверяет доступность БД
func (j *Jobs) ProbeHealth() {
	if j.Health == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	up := j.Health(ctx)
	if j.System != nil {
		j.System.RecordDatabaseUp(up)
	}
}
