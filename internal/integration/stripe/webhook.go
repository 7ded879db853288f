package stripe

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/Dhoini/saas-platform/internal/domain"
)

// ParseWebhook проверяет подпись и разбирает событие Stripe.
// Ошибка подписи возвращается как KindSignatureInvalid, до любого разбора содержимого.
func (c *Client) ParseWebhook(payload []byte, signature string) (*domain.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		c.log.Warnw("Stripe webhook signature verification failed", "error", err)
		return nil, domain.NewSignatureInvalidError(err)
	}

	out := &domain.WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
		Kind: domain.ParseWebhookEventKind(string(event.Type)),
	}
	if event.Data == nil {
		if out.Kind == domain.WebhookEventUnknown {
			return out, nil
		}
		return nil, malformed(out.Type, fmt.Errorf("event has no data"))
	}

	switch out.Kind {
	case domain.WebhookEventCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, malformed(out.Type, err)
		}
		out.CheckoutUserID = session.Metadata[metadataUserIDKey]
		out.CheckoutCustomerID = customerID(session.Customer)
		out.CheckoutSubscriptionID = subscriptionID(session.Subscription)

	case domain.WebhookEventInvoicePaymentSucceeded:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, malformed(out.Type, err)
		}
		out.InvoiceCustomerID = customerID(invoice.Customer)
		out.InvoiceSubscriptionID = subscriptionID(invoice.Subscription)

	case domain.WebhookEventSubscriptionUpdated, domain.WebhookEventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, malformed(out.Type, err)
		}
		out.Subscription = ToProcessorSubscription(&sub)

	case domain.WebhookEventUnknown:
		// Содержимое неизвестных событий не разбираем
	}

	c.log.Debugw("Stripe webhook parsed", "eventID", out.ID, "type", out.Type, "kind", out.Kind.String())
	return out, nil
}

func malformed(eventType string, err error) error {
	return &domain.AppError{
		Kind:    domain.KindValidation,
		Message: fmt.Sprintf("Malformed %s payload", eventType),
		Err:     err,
	}
}
