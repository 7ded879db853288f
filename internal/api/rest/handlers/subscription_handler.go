package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Dhoini/saas-platform/internal/domain"
	"github.com/Dhoini/saas-platform/internal/middleware"
	"github.com/Dhoini/saas-platform/internal/service"
	"github.com/Dhoini/saas-platform/pkg/logger"
	"github.com/Dhoini/saas-platform/pkg/req"
	"github.com/Dhoini/saas-platform/pkg/res"
)

const (
	stripeSignatureHeader = "Stripe-Signature"
	maxWebhookBodyBytes   = 65536
)

// CheckoutRequest - тело запроса создания сессии оплаты
type CheckoutRequest struct {
	PriceID string `json:"priceId"`
}

// SubscriptionResponse - текущая подписка пользователя
type SubscriptionResponse struct {
	Subscription *domain.Subscription `json:"subscription"`
}

// SubscriptionHandler обработчик подписок и вебхуков Stripe
type SubscriptionHandler struct {
	svc service.BillingService
	log *logger.Logger
}

// NewSubscriptionHandler создает новый обработчик подписок
func NewSubscriptionHandler(svc service.BillingService, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc, log: log}
}

// GetSubscription возвращает подписку текущего пользователя
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		res.Error(c, domain.NewUnauthenticatedError("Authentication required"), h.log)
		return
	}

	sub, err := h.svc.GetSubscription(c.Request.Context(), user.ID)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}
	res.JSON(c, http.StatusOK, SubscriptionResponse{Subscription: sub})
}

// CreateCheckoutSession создает сессию оплаты Stripe
func (h *SubscriptionHandler) CreateCheckoutSession(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		res.Error(c, domain.NewUnauthenticatedError("Authentication required"), h.log)
		return
	}

	body, err := req.HandleBody[CheckoutRequest](c)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}

	session, err := h.svc.CreateCheckoutSession(c.Request.Context(), user.ID, body.PriceID)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}
	res.JSON(c, http.StatusOK, session)
}

// CreatePortalSession создает сессию биллинг-портала Stripe
func (h *SubscriptionHandler) CreatePortalSession(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		res.Error(c, domain.NewUnauthenticatedError("Authentication required"), h.log)
		return
	}

	session, err := h.svc.CreatePortalSession(c.Request.Context(), user.ID)
	if err != nil {
		res.Error(c, err, h.log)
		return
	}
	res.JSON(c, http.StatusOK, session)
}

// HandleWebhook принимает вебхуки Stripe. Тело читается без изменений,
// так как подпись считается по сырым байтам.
func (h *SubscriptionHandler) HandleWebhook(c *gin.Context) {
	signature := c.GetHeader(stripeSignatureHeader)
	if signature == "" {
		res.Error(c, domain.NewValidationError("Missing Stripe signature"), h.log)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			res.Error(c, domain.NewValidationError("Webhook payload too large"), h.log)
			return
		}
		h.log.Errorw("Failed to read webhook body", "error", err)
		res.Error(c, domain.NewValidationError("Failed to read webhook body"), h.log)
		return
	}

	if err := h.svc.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		res.Error(c, err, h.log)
		return
	}
	res.JSON(c, http.StatusOK, gin.H{"received": true})
}
