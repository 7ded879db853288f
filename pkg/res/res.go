package res

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Dhoini/saas-platform/internal/domain"
	"github.com/Dhoini/saas-platform/pkg/logger"
)

// ErrorResponse представляет формат JSON-ответа для ошибок.
type ErrorResponse struct {
	Error   string `json:"error"`             // Категория ошибки
	Message string `json:"message"`           // Сообщение для пользователя
	Details any    `json:"details,omitempty"` // Детали (например, ошибки валидации)
}

// MessageResponse - ответ с одним сообщением
type MessageResponse struct {
	Message string `json:"message"`
}

// JSON отправляет JSON-ответ с заданным статусом.
func JSON(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

// Message отправляет ответ {"message": ...}
func Message(c *gin.Context, status int, message string) {
	c.JSON(status, MessageResponse{Message: message})
}

// Error преобразует ошибку в ответ {error, message} и прерывает цепочку обработчиков.
// Ошибки 5xx логируются с уровнем Error, остальные с Debug.
func Error(c *gin.Context, err error, log *logger.Logger) {
	status, body := ToResponse(err)

	if status >= http.StatusInternalServerError {
		log.Errorw("Request failed", "path", c.Request.URL.Path, "status", status, "error", err)
	} else {
		log.Debugw("Request rejected", "path", c.Request.URL.Path, "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, body)
}

// ToResponse возвращает HTTP статус и тело ответа для ошибки
func ToResponse(err error) (int, ErrorResponse) {
	kind := domain.KindOf(err)

	var vErrs domain.ValidationErrors
	if errors.As(err, &vErrs) {
		return kind.HTTPStatus(), ErrorResponse{
			Error:   string(domain.KindValidation),
			Message: "Validation failed",
			Details: vErrs,
		}
	}

	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr.Kind.HTTPStatus(), ErrorResponse{
			Error:   string(appErr.Kind),
			Message: appErr.Message,
			Details: appErr.Details,
		}
	}

	if kind == domain.KindInternal {
		return http.StatusInternalServerError, ErrorResponse{
			Error:   string(domain.KindInternal),
			Message: "Something went wrong",
		}
	}
	return kind.HTTPStatus(), ErrorResponse{Error: string(kind), Message: err.Error()}
}
