package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/Dhoini/saas-platform/pkg/logger"
)

// Расписания обслуживающих задач
const (
	LimiterCleanupSchedule = "@every 1m"
	SystemMetricsSchedule  = "@every 15s"
	HealthProbeSchedule    = "@every 30s"
	WebhookPruneSchedule   = "@daily"
)

// cronLogger направляет сообщения cron в логгер приложения
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Printf(format string, args ...interface{}) {
	l.log.Info(format, args...)
}

// Scheduler управляет cron задачами
type Scheduler struct {
	cron *cron.Cron
	jobs *Jobs
	log  *logger.Logger
}

// NewScheduler создает планировщик; паники задач перехватываются и логируются
func NewScheduler(jobs *Jobs, log *logger.Logger) *Scheduler {
	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(cronLogger{log: log}))))
	return &Scheduler{cron: c, jobs: jobs, log: log}
}

// Register добавляет задачи в расписание
func (s *Scheduler) Register() error {
	entries := []struct {
		name     string
		schedule string
		fn       func()
	}{
		{"rate limiter cleanup", LimiterCleanupSchedule, s.jobs.CleanupLimiter},
		{"system metrics", SystemMetricsSchedule, s.jobs.RecordSystemMetrics},
		{"database health probe", HealthProbeSchedule, s.jobs.ProbeHealth},
		{"webhook ledger pruning", WebhookPruneSchedule, s.jobs.PruneWebhookEvents},
	}
	for _, e := range entries {
		if _, err := s.cron.AddFunc(e.schedule, e.fn); err != nil {
			s.log.Errorw("Failed to schedule job", "job", e.name, "error", err)
			return err
		}
		s.log.Infow("Scheduled job", "job", e.name, "schedule", e.schedule)
	}
	return nil
}

// Start запускает планировщик
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Entries возвращает количество зарегистрированных задач
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Stop останавливает планировщик; контекст завершается, когда закончатся выполняемые задачи
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
