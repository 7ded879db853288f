package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Dhoini/saas-platform/pkg/logger"
)

// HealthChecker проверяет доступность хранилища
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthResponse - ответ /health
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
}

// HealthHandler обработчик проверки работоспособности
type HealthHandler struct {
	db  HealthChecker
	now func() time.Time
	log *logger.Logger
}

// NewHealthHandler создает обработчик; db == nil означает хранилище в памяти
func NewHealthHandler(db HealthChecker, log *logger.Logger) *HealthHandler {
	return &HealthHandler{db: db, now: time.Now, log: log}
}

// HealthCheck обработчик для проверки работоспособности сервиса
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "OK",
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Database:  "memory",
	}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.db.HealthCheck(ctx); err != nil {
			h.log.Warnw("Health check failed", "error", err)
			resp.Status = "DEGRADED"
			resp.Database = "down"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "up"
		}
	}
	c.JSON(status, resp)
}
