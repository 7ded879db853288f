package stripe

import (
	"time"

	"github.com/stripe/stripe-go/v78"

	"github.com/Dhoini/saas-platform/internal/domain"
)

// ToProcessorSubscription преобразует подписку Stripe в доменный снимок.
// Цена берется из первого элемента подписки.
func ToProcessorSubscription(sub *stripe.Subscription) *domain.ProcessorSubscription {
	if sub == nil {
		return nil
	}

	out := &domain.ProcessorSubscription{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		out.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		out.PriceID = sub.Items.Data[0].Price.ID
	}
	return out
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func subscriptionID(s *stripe.Subscription) string {
	if s == nil {
		return ""
	}
	return s.ID
}
