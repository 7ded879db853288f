package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Dhoini/saas-platform/internal/metrics"
)

// Metrics учитывает запросы в Prometheus. Маршрут берется из шаблона gin,
// чтобы id в пути не раздували кардинальность.
func Metrics(m metrics.AppMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
