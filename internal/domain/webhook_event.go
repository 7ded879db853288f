package domain

import "time"

// WebhookEventKind - закрытый набор событий Stripe, которые меняют подписку.
// Все остальные типы сводятся к WebhookEventUnknown.
type WebhookEventKind int

const (
	WebhookEventUnknown WebhookEventKind = iota
	WebhookEventCheckoutCompleted
	WebhookEventInvoicePaymentSucceeded
	WebhookEventSubscriptionUpdated
	WebhookEventSubscriptionDeleted
)

// Типы событий в терминах Stripe
const (
	StripeEventCheckoutCompleted       = "checkout.session.completed"
	StripeEventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	StripeEventSubscriptionUpdated     = "customer.subscription.updated"
	StripeEventSubscriptionDeleted     = "customer.subscription.deleted"
)

// ParseWebhookEventKind сопоставляет тип события Stripe с WebhookEventKind
func ParseWebhookEventKind(eventType string) WebhookEventKind {
	switch eventType {
	case StripeEventCheckoutCompleted:
		return WebhookEventCheckoutCompleted
	case StripeEventInvoicePaymentSucceeded:
		return WebhookEventInvoicePaymentSucceeded
	case StripeEventSubscriptionUpdated:
		return WebhookEventSubscriptionUpdated
	case StripeEventSubscriptionDeleted:
		return WebhookEventSubscriptionDeleted
	default:
		return WebhookEventUnknown
	}
}

// String возвращает короткое имя для логов и метрик
func (k WebhookEventKind) String() string {
	switch k {
	case WebhookEventCheckoutCompleted:
		return "checkout_completed"
	case WebhookEventInvoicePaymentSucceeded:
		return "invoice_payment_succeeded"
	case WebhookEventSubscriptionUpdated:
		return "subscription_updated"
	case WebhookEventSubscriptionDeleted:
		return "subscription_deleted"
	default:
		return "unknown"
	}
}

// ProcessorSubscription - снимок подписки на стороне Stripe
type ProcessorSubscription struct {
	ID               string
	CustomerID       string
	PriceID          string
	Status           string
	CurrentPeriodEnd time.Time
}

// Active сообщает, считает ли Stripe подписку активной
func (s ProcessorSubscription) Active() bool {
	return s.Status == "active"
}

// WebhookEvent - проверенное и разобранное событие Stripe
type WebhookEvent struct {
	ID   string
	Type string
	Kind WebhookEventKind

	// Заполнено для checkout.session.completed
	CheckoutUserID         string
	CheckoutCustomerID     string
	CheckoutSubscriptionID string

	// Заполнено для invoice.payment_succeeded
	InvoiceCustomerID     string
	InvoiceSubscriptionID string

	// Заполнено для customer.subscription.*
	Subscription *ProcessorSubscription
}

// CheckoutSession - результат создания сессии оплаты
type CheckoutSession struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// PortalSession - результат создания сессии биллинг-портала
type PortalSession struct {
	URL string `json:"url"`
}
