package rest

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dhoini/saas-platform/internal/api/rest/handlers"
	"github.com/Dhoini/saas-platform/internal/domain"
	"github.com/Dhoini/saas-platform/internal/metrics"
	"github.com/Dhoini/saas-platform/internal/middleware"
	"github.com/Dhoini/saas-platform/pkg/logger"
	"github.com/Dhoini/saas-platform/pkg/res"
)

// RouterDeps - зависимости HTTP роутера
type RouterDeps struct {
	Auth          *handlers.AuthHandler
	Users         *handlers.UserHandler
	Subscriptions *handlers.SubscriptionHandler
	Analytics     *handlers.AnalyticsHandler
	Health        *handlers.HealthHandler

	Gate        *middleware.AuthGate
	RateLimiter *middleware.RateLimiter
	Metrics     metrics.AppMetrics
	Registry    *prometheus.Registry

	FrontendURL string
	Log         *logger.Logger
}

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(d RouterDeps) *gin.Engine {
	r := gin.New()

	// Подключение middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Log))
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{d.FrontendURL},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", d.Health.HealthCheck)
	if d.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	}

	authenticate := d.Gate.Authenticate()

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			limited := auth.Group("")
			if d.RateLimiter != nil {
				limited.Use(d.RateLimiter.Handler())
			}
			limited.POST("/register", d.Auth.Register)
			limited.POST("/login", d.Auth.Login)

			auth.POST("/logout", d.Auth.Logout)
			auth.GET("/me", authenticate, d.Auth.Me)
			auth.POST("/refresh", authenticate, d.Auth.Refresh)
		}

		users := api.Group("/users", authenticate)
		{
			users.GET("/profile", d.Users.GetProfile)
			users.PUT("/profile", d.Users.UpdateProfile)
			users.DELETE("/account", d.Users.DeleteAccount)
			users.GET("", middleware.RequireRole(d.Log, domain.RoleAdmin), d.Users.ListUsers)
		}

		subs := api.Group("/subscriptions")
		{
			// Вебхук аутентифицируется подписью Stripe, а не сессией
			subs.POST("/webhook", d.Subscriptions.HandleWebhook)

			subs.GET("", authenticate, d.Subscriptions.GetSubscription)
			subs.POST("/checkout", authenticate, d.Subscriptions.CreateCheckoutSession)
			subs.POST("/portal", authenticate, d.Subscriptions.CreatePortalSession)
		}

		analytics := api.Group("/analytics", authenticate)
		{
			analytics.POST("/track", d.Analytics.Track)
			analytics.GET("", d.Analytics.List)
			analytics.GET("/events", d.Analytics.EventCounts)
			analytics.GET("/daily", d.Analytics.Daily)
			analytics.GET("/top", d.Analytics.Top)
			analytics.GET("/summary", d.Analytics.Summary)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, res.ErrorResponse{
			Error:   "Not Found",
			Message: "Route " + c.Request.Method + " " + c.Request.URL.Path + " not found",
		})
	})

	return r
}
