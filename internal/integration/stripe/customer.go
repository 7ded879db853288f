package stripe

import (
	"context"

	"github.com/stripe/stripe-go/v78"

	"github.com/Dhoini/saas-platform/internal/domain"
)

// CreateCustomer создает клиента в Stripe и возвращает его Stripe ID.
// userId сохраняется в метаданных клиента.
func (c *Client) CreateCustomer(ctx context.Context, userID, email string, name *string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	if name != nil && *name != "" {
		params.Name = stripe.String(*name)
	}
	params.AddMetadata(metadataUserIDKey, userID)
	params.Context = ctx

	cus, err := c.api.Customers.New(params)
	if err != nil {
		logStripeError(c.log, "CreateCustomer", err)
		return "", domain.NewUpstreamError("stripe", "failed to create customer", err)
	}

	c.log.Infow("Stripe customer created", "stripeCustomerID", cus.ID, "userID", userID)
	return cus.ID, nil
}
