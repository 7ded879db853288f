package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Dhoini/saas-platform/internal/domain"
	"github.com/Dhoini/saas-platform/internal/middleware"
	"github.com/Dhoini/saas-platform/internal/service"
	"github.com/Dhoini/saas-platform/pkg/logger"
	"github.com/Dhoini/saas-platform/pkg/req"
	"github.com/Dhoini/saas-platform/pkg/res"
)

// RegisterRequest - тело запроса регистрации
type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	Name     *string `json:"name" validate:"omitempty,max=100"`
}

// LoginRequest - тело запроса входа
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UserResponse - ответ с пользователем и необязательным сообщением
type UserResponse struct {
	Message string            `json:"message,omitempty"`
	User    domain.PublicUser `json:"user"`
}

// AuthHandler обработчик регистрации, входа и сессий
type AuthHandler struct {
	svc    service.AuthService
	cookie SessionCookie
	log    *logger.Logger
}

// NewAuthHandler создает новый обработчик аутентификации
func NewAuthHandler(svc service.AuthService, cookie SessionCookie, log *logger.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, cookie: cookie, log: log}
}

// Register создает пользователя и открывает сессию
func (h *AuthHandler) Register(c *gin.Context) {
	body, err := req.HandleBody[RegisterRequest](c)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}

	result, err := h.svc.Register(c.Request.Context(), service.RegisterInput{
		Email:    body.Email,
		Password: body.Password,
		Name:     body.Name,
	})
	if err != nil {
		res.Error(c, err, h.log)
		return
	}

	h.cookie.Set(c, result.Token)
	res.JSON(c, http.StatusCreated, UserResponse{
		Message: "User registered successfully",
		User:    result.User.Public(),
	})
}

// Login проверяет учетные данные и открывает сессию
func (h *AuthHandler) Login(c *gin.Context) {
	body, err := req.HandleBody[LoginRequest](c)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}

	result, err := h.svc.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}

	h.cookie.Set(c, result.Token)
	res.JSON(c, http.StatusOK, UserResponse{
		Message: "Login successful",
		User:    result.User.Public(),
	})
}

// Logout удаляет cookie сессии
func (h *AuthHandler) Logout(c *gin.Context) {
	h.cookie.Clear(c)
	res.Message(c, http.StatusOK, "Logout successful")
}

// Me возвращает текущего пользователя
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		res.Error(c, domain.NewUnauthenticatedError("Authentication required"), h.log)
		return
	}
	res.JSON(c, http.StatusOK, UserResponse{User: user.Public()})
}

// Refresh перевыпускает токен для текущего пользователя
func (h *AuthHandler) Refresh(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		res.Error(c, domain.NewUnauthenticatedError("Authentication required"), h.log)
		return
	}

	result, err := h.svc.Refresh(c.Request.Context(), user.ID)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}

	h.cookie.Set(c, result.Token)
	res.JSON(c, http.StatusOK, UserResponse{
		Message: "Token refreshed successfully",
		User:    result.User.Public(),
	})
}
