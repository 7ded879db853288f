package req

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/saas-platform/internal/domain"
)

type loginBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func contextWithBody(body string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return c
}

func TestHandleBodyValid(t *testing.T) {
	body, err := HandleBody[loginBody](contextWithBody(`{"email":"a@example.com","password":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", body.Email)
}

func TestHandleBodyFieldErrorsUseJSONNames(t *testing.T) {
	_, err := HandleBody[loginBody](contextWithBody(`{"email":"not-an-email"}`))
	require.Error(t, err)

	var vErrs domain.ValidationErrors
	require.ErrorAs(t, err, &vErrs)
	assert.Equal(t, "must be a valid email address", vErrs.GetByField("email"))
	assert.Equal(t, "password is required", vErrs.GetByField("password"))
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestHandleBodyMalformedJSON(t *testing.T) {
	_, err := HandleBody[loginBody](contextWithBody(`{"email":`))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = HandleBody[loginBody](contextWithBody(``))
	assert.ErrorIs(t, err, domain.ErrValidation)
}
