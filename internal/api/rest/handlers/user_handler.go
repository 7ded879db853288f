package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Dhoini/saas-platform/internal/domain"
	"github.com/Dhoini/saas-platform/internal/middleware"
	"github.com/Dhoini/saas-platform/internal/service"
	"github.com/Dhoini/saas-platform/pkg/logger"
	"github.com/Dhoini/saas-platform/pkg/req"
	"github.com/Dhoini/saas-platform/pkg/res"
)

// UpdateProfileRequest - тело запроса изменения профиля
type UpdateProfileRequest struct {
	Name *string `json:"name" validate:"omitempty,max=100"`
}

// UserListResponse - страница пользователей
type UserListResponse struct {
	Users      []domain.PublicUser `json:"users"`
	Pagination domain.Pagination   `json:"pagination"`
}

// UserHandler обработчик профиля и списка пользователей
type UserHandler struct {
	svc    service.UserService
	cookie SessionCookie
	log    *logger.Logger
}

// NewUserHandler создает новый обработчик пользователей
func NewUserHandler(svc service.UserService, cookie SessionCookie, log *logger.Logger) *UserHandler {
	return &UserHandler{svc: svc, cookie: cookie, log: log}
}

// GetProfile возвращает профиль текущего пользователя
func (h *UserHandler) GetProfile(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		res.Error(c, domain.NewUnauthenticatedError("Authentication required"), h.log)
		return
	}

	user, err := h.svc.GetProfile(c.Request.Context(), current.ID)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}
	res.JSON(c, http.StatusOK, user.Profile())
}

// UpdateProfile меняет имя текущего пользователя
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		res.Error(c, domain.NewUnauthenticatedError("Authentication required"), h.log)
		return
	}

	body, err := req.HandleBody[UpdateProfileRequest](c)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}

	user, err := h.svc.UpdateProfile(c.Request.Context(), current.ID, body.Name)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}
	res.JSON(c, http.StatusOK, UserResponse{
		Message: "Profile updated successfully",
		User:    user.Profile(),
	})
}

// DeleteAccount удаляет аккаунт текущего пользователя и закрывает сессию
func (h *UserHandler) DeleteAccount(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		res.Error(c, domain.NewUnauthenticatedError("Authentication required"), h.log)
		return
	}

	if err := h.svc.DeleteAccount(c.Request.Context(), current.ID); err != nil {
		res.Error(c, err, h.log)
		return
	}

	h.cookie.Clear(c)
	res.Message(c, http.StatusOK, "Account deleted successfully")
}

// ListUsers возвращает страницу пользователей (только для администраторов)
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, err := intQuery(c, "page", service.DefaultPage)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}
	limit, err := intQuery(c, "limit", service.DefaultLimit)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}

	users, pagination, err := h.svc.List(c.Request.Context(), page, limit)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}

	out := make([]domain.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Profile())
	}
	res.JSON(c, http.StatusOK, UserListResponse{Users: out, Pagination: pagination})
}

// intQuery читает положительный целочисленный параметр запроса
func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, domain.NewValidationError("Invalid " + name + " parameter")
	}
	return v, nil
}
