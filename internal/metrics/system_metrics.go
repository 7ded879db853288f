package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Dhoini/saas-platform/pkg/logger"
)

// PoolStats - снимок состояния пула соединений с БД
type PoolStats struct {
	Total    int32
	Idle     int32
	Acquired int32
}

// SystemMetrics интерфейс для системных метрик
type SystemMetrics interface {
	RecordGoroutines()
	RecordMemory()
	RecordPool(stats PoolStats)
	RecordDatabaseUp(up bool)
}

type systemMetrics struct {
	log          *logger.Logger
	goroutines   prometheus.Gauge
	memoryAlloc  prometheus.Gauge
	memoryTotal  prometheus.Gauge
	memorySystem prometheus.Gauge
	memoryGC     prometheus.Gauge
	poolConns    *prometheus.GaugeVec
	databaseUp   prometheus.Gauge
}

// NewSystemMetrics создает новые системные метрики
func NewSystemMetrics(registry *prometheus.Registry, log *logger.Logger) SystemMetrics {
	factory := promauto.With(registry)

	return &systemMetrics{
		log: log,
		goroutines: factory.NewGauge(prometheus.GaugeOpts{
			Name: "system_goroutines",
			Help: "Current number of goroutines",
		}),
		memoryAlloc: factory.NewGauge(prometheus.GaugeOpts{
			Name: "system_memory_alloc_bytes",
			Help: "Currently allocated memory in bytes",
		}),
		memoryTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "system_memory_total_alloc_bytes",
			Help: "Total memory allocation in bytes",
		}),
		memorySystem: factory.NewGauge(prometheus.GaugeOpts{
			Name: "system_memory_system_bytes",
			Help: "Total memory obtained from system in bytes",
		}),
		memoryGC: factory.NewGauge(prometheus.GaugeOpts{
			Name: "system_memory_gc_cycles",
			Help: "Number of completed garbage collection cycles",
		}),
		poolConns: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "db_pool_connections",
			Help: "Database pool connections by state",
		}, []string{"state"}),
		databaseUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "db_up",
			Help: "Whether the last database health check succeeded",
		}),
	}
}

// RecordGoroutines записывает количество горутин
func (m *systemMetrics) RecordGoroutines() {
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// RecordMemory записывает метрики памяти
func (m *systemMetrics) RecordMemory() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.memoryAlloc.Set(float64(memStats.Alloc))
	m.memoryTotal.Set(float64(memStats.TotalAlloc))
	m.memorySystem.Set(float64(memStats.Sys))
	m.memoryGC.Set(float64(memStats.NumGC))
}

// RecordPool записывает состояние пула соединений
func (m *systemMetrics) RecordPool(stats PoolStats) {
	m.poolConns.WithLabelValues("total").Set(float64(stats.Total))
	m.poolConns.WithLabelValues("idle").Set(float64(stats.Idle))
	m.poolConns.WithLabelValues("acquired").Set(float64(stats.Acquired))
}

// RecordDatabaseUp записывает результат проверки БД
func (m *systemMetrics) RecordDatabaseUp(up bool) {
	if up {
		m.databaseUp.Set(1)
		return
	}
	m.databaseUp.Set(0)
}
