package req

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/Dhoini/saas-platform/internal/domain"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator возвращает общий экземпляр валидатора; поля называются по json-тегам
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Decode декодирует JSON из io.Reader в структуру типа T.
func Decode[T any](body io.Reader) (T, error) {
	var payload T
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// IsValid валидирует структуру типа T и возвращает domain.ValidationErrors.
func IsValid[T any](payload T) error {
	err := Validator().Struct(payload)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.NewValidationError(err.Error())
	}

	var out domain.ValidationErrors
	for _, fe := range fieldErrs {
		out.Add(fe.Field(), describe(fe))
	}
	return out
}

// HandleBody декодирует и валидирует тело запроса.
func HandleBody[T any](c *gin.Context) (*T, error) {
	if c.Request.Body == nil {
		return nil, domain.NewValidationError("Request body is required")
	}

	body, err := Decode[T](c.Request.Body)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.NewValidationError("Request body is required")
		}
		return nil, &domain.AppError{Kind: domain.KindValidation, Message: "Invalid request body", Err: err}
	}

	if err := IsValid(body); err != nil {
		return nil, err
	}
	return &body, nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
