package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind - закрытый набор категорий ошибок приложения.
// Каждая категория однозначно отображается в HTTP статус.
type ErrorKind string

const (
	KindValidation              ErrorKind = "ValidationError"
	KindUnauthenticated         ErrorKind = "Unauthenticated"
	KindInvalidToken            ErrorKind = "InvalidOrExpiredToken"
	KindInsufficientPermissions ErrorKind = "InsufficientPermissions"
	KindNotFound                ErrorKind = "NotFound"
	KindConflict                ErrorKind = "ConflictError"
	KindSignatureInvalid        ErrorKind = "SignatureInvalid"
	KindUpstream                ErrorKind = "UpstreamError"
	KindInternal                ErrorKind = "InternalError"
)

// HTTPStatus возвращает HTTP статус для категории
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindValidation, KindSignatureInvalid:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindInvalidToken, KindInsufficientPermissions:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstream, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Sentinel-ошибки для проверок через errors.Is
var (
	// ErrValidation неверные входные данные
	ErrValidation = errors.New("validation error")

	// ErrUnauthenticated нет учетных данных
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidToken токен невалиден или истек
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrInsufficientPermissions недостаточно прав
	ErrInsufficientPermissions = errors.New("insufficient permissions")

	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrConflict нарушение уникальности
	ErrConflict = errors.New("conflict")

	// ErrSignatureInvalid подпись вебхука не прошла проверку
	ErrSignatureInvalid = errors.New("webhook signature invalid")

	// ErrUpstream ошибка платежного провайдера
	ErrUpstream = errors.New("upstream service error")

	// ErrInternal внутренняя ошибка
	ErrInternal = errors.New("internal error")
)

var kindSentinels = map[ErrorKind]error{
	KindValidation:              ErrValidation,
	KindUnauthenticated:         ErrUnauthenticated,
	KindInvalidToken:            ErrInvalidToken,
	KindInsufficientPermissions: ErrInsufficientPermissions,
	KindNotFound:                ErrNotFound,
	KindConflict:                ErrConflict,
	KindSignatureInvalid:        ErrSignatureInvalid,
	KindUpstream:                ErrUpstream,
	KindInternal:                ErrInternal,
}

// AppError - ошибка приложения с категорией и сообщением для пользователя
type AppError struct {
	Kind    ErrorKind
	Message string
	Details any
	Err     error
}

// Error реализует интерфейс error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap возвращает оригинальную ошибку
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is сопоставляет ошибку с sentinel-ошибкой своей категории
func (e *AppError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func newAppError(kind ErrorKind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// NewValidationError создает ошибку валидации
func NewValidationError(message string) *AppError {
	return newAppError(KindValidation, message, nil)
}

// NewUnauthenticatedError создает ошибку отсутствия аутентификации
func NewUnauthenticatedError(message string) *AppError {
	return newAppError(KindUnauthenticated, message, nil)
}

// NewInvalidTokenError создает ошибку невалидного токена
func NewInvalidTokenError(message string, err error) *AppError {
	return newAppError(KindInvalidToken, message, err)
}

// NewInsufficientPermissionsError создает ошибку недостатка прав
func NewInsufficientPermissionsError(message string) *AppError {
	return newAppError(KindInsufficientPermissions, message, nil)
}

// NewNotFoundError создает ошибку "не найдено"
func NewNotFoundError(entity, id string) *AppError {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf("%s not found", entity), Details: map[string]string{"id": id}}
}

// NewConflictError создает ошибку конфликта уникальности
func NewConflictError(message string, err error) *AppError {
	return newAppError(KindConflict, message, err)
}

// NewSignatureInvalidError создает ошибку проверки подписи вебхука
func NewSignatureInvalidError(err error) *AppError {
	return newAppError(KindSignatureInvalid, "Webhook signature verification failed", err)
}

// NewUpstreamError оборачивает ошибку внешнего сервиса
func NewUpstreamError(service, message string, err error) *AppError {
	return &AppError{Kind: KindUpstream, Message: message, Details: map[string]string{"service": service}, Err: err}
}

// NewInternalError оборачивает непредвиденную ошибку
func NewInternalError(message string, err error) *AppError {
	return newAppError(KindInternal, message, err)
}

// KindOf определяет категорию произвольной ошибки.
// Все, что не является AppError или ValidationErrors, считается InternalError.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	var vErrs ValidationErrors
	if errors.As(err, &vErrs) {
		return KindValidation
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}

// ValidationError представляет ошибку валидации поля
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors представляет набор ошибок валидации
type ValidationErrors []ValidationError

// Error реализует интерфейс error
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}

	if len(e) == 1 {
		return fmt.Sprintf("validation failed: %s - %s", e[0].Field, e[0].Message)
	}

	return fmt.Sprintf("validation failed: %d errors", len(e))
}

// Add добавляет ошибку валидации
func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}

// HasErrors проверяет наличие ошибок
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// GetByField возвращает сообщение об ошибке для указанного поля
func (e ValidationErrors) GetByField(field string) string {
	for _, err := range e {
		if err.Field == field {
			return err.Message
		}
	}
	return ""
}
