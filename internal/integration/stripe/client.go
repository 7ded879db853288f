package stripe

import (
	"errors"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/Dhoini/saas-platform/pkg/logger"
)

const (
	// Ключ метаданных для связи объектов Stripe с нашим userId
	metadataUserIDKey = "userId"
)

// Config конфигурация для клиента Stripe
type Config struct {
	SecretKey     string
	WebhookSecret string

	// Backend переопределяет транспорт SDK (используется в тестах)
	Backend stripe.Backend
}

// Client - шлюз к Stripe API: клиенты, сессии оплаты, портал и вебхуки
type Client struct {
	api           *client.API
	webhookSecret string
	log           *logger.Logger
}

// NewClient создает новый клиент Stripe
func NewClient(cfg Config, log *logger.Logger) *Client {
	var backends *stripe.Backends
	if cfg.Backend != nil {
		backends = &stripe.Backends{API: cfg.Backend, Connect: cfg.Backend, Uploads: cfg.Backend}
	}

	if cfg.SecretKey == "" {
		log.Warn("Stripe secret key is empty, billing calls will fail")
	}

	return &Client{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		log:           log.Named("stripe"),
	}
}

// logStripeError - вспомогательная функция для логирования деталей ошибки Stripe.
func logStripeError(log *logger.Logger, operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"param", stripeErr.Param,
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
	} else {
		log.Errorw("Non-Stripe error during Stripe operation",
			"operation", operation,
			"error", err,
		)
	}
}
