package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Dhoini/saas-platform/internal/middleware"
)

// SessionCookie - параметры cookie сессии
type SessionCookie struct {
	TTL    time.Duration
	Secure bool
}

// Set записывает токен в HttpOnly cookie с SameSite=Strict
func (s SessionCookie) Set(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.TokenCookie, token, int(s.TTL.Seconds()), "/", "", s.Secure, true)
}

// Clear удаляет cookie сессии
func (s SessionCookie) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.TokenCookie, "", -1, "/", "", s.Secure, true)
}
