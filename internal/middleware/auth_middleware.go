package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Dhoini/saas-platform/internal/auth"
	"github.com/Dhoini/saas-platform/internal/domain"
	"github.com/Dhoini/saas-platform/internal/repository"
	"github.com/Dhoini/saas-platform/pkg/logger"
	"github.com/Dhoini/saas-platform/pkg/res"
)

// ContextKey тип для ключей контекста во избежание коллизий.
type ContextKey string

const (
	// ContextUserKey ключ для хранения текущего пользователя в контексте gin
	ContextUserKey ContextKey = "currentUser"
	// TokenCookie - имя cookie с токеном сессии
	TokenCookie      = "token"
	authHeaderPrefix = "Bearer "
)

// AuthGate проверяет токен сессии и загружает актуальную запись пользователя.
type AuthGate struct {
	validator auth.TokenValidator
	users     repository.UserRepository
	log       *logger.Logger
}

// NewAuthGate создает middleware аутентификации
func NewAuthGate(validator auth.TokenValidator, users repository.UserRepository, log *logger.Logger) *AuthGate {
	return &AuthGate{
		validator: validator,
		users:     users,
		log:       log,
	}
}

// Authenticate требует валидный токен. Нет токена - 401, невалидный или
// истекший токен - 403, пользователь удален - 401.
func (g *AuthGate) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			res.Error(c, domain.NewUnauthenticatedError("Access token required"), g.log)
			return
		}

		claims, err := g.validator.Validate(token)
		if err != nil {
			g.log.Warnw("HTTP Authentication failed", "path", c.Request.URL.Path, "error", err)
			res.Error(c, domain.NewInvalidTokenError("Invalid or expired token", err), g.log)
			return
		}

		// Claims не считаются источником истины: роль и подписка берутся из хранилища
		user, err := g.users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				g.log.Warnw("Token refers to missing user", "userID", claims.UserID)
				res.Error(c, domain.NewUnauthenticatedError("User not found"), g.log)
				return
			}
			res.Error(c, domain.NewInternalError("failed to load user", err), g.log)
			return
		}

		c.Set(string(ContextUserKey), user)
		g.log.Debugw("User authenticated via HTTP", "userID", user.ID)
		c.Next()
	}
}

// RequireRole пропускает только пользователей с одной из ролей
func RequireRole(log *logger.Logger, roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			res.Error(c, domain.NewUnauthenticatedError("Authentication required"), log)
			return
		}
		if !hasRole(user.Role, roles) {
			log.Warnw("Insufficient permissions", "userID", user.ID, "role", user.Role, "path", c.Request.URL.Path)
			res.Error(c, domain.NewInsufficientPermissionsError("Insufficient permissions"), log)
			return
		}
		c.Next()
	}
}

// CurrentUser возвращает пользователя, загруженного Authenticate
func CurrentUser(c *gin.Context) (*domain.UserWithSubscription, bool) {
	v, ok := c.Get(string(ContextUserKey))
	if !ok {
		return nil, false
	}
	user, ok := v.(*domain.UserWithSubscription)
	return user, ok && user != nil
}

// extractToken берет токен из cookie, затем из заголовка Authorization
func extractToken(c *gin.Context) string {
	if token, err := c.Cookie(TokenCookie); err == nil && token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, authHeaderPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(header, authHeaderPrefix))
	}
	return ""
}

func hasRole(role domain.Role, allowed []domain.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
