package stripe

import (
	"context"

	"github.com/stripe/stripe-go/v78"

	"github.com/Dhoini/saas-platform/internal/domain"
)

// CheckoutParams - параметры сессии оформления подписки
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	UserID     string
	SuccessURL string
	CancelURL  string
}

// CreateCheckoutSession создает сессию Stripe Checkout в режиме подписки
func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*domain.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(p.CustomerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.AddMetadata(metadataUserIDKey, p.UserID)
	params.Context = ctx

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		logStripeError(c.log, "CreateCheckoutSession", err)
		return nil, domain.NewUpstreamError("stripe", "failed to create checkout session", err)
	}

	c.log.Infow("Stripe checkout session created", "sessionID", session.ID, "userID", p.UserID, "priceID", p.PriceID)
	return &domain.CheckoutSession{SessionID: session.ID, URL: session.URL}, nil
}

// CreatePortalSession создает сессию биллинг-портала для клиента
func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*domain.PortalSession, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	session, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		logStripeError(c.log, "CreatePortalSession", err)
		return nil, domain.NewUpstreamError("stripe", "failed to create portal session", err)
	}
	return &domain.PortalSession{URL: session.URL}, nil
}

// GetSubscription получает актуальное состояние подписки из Stripe
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*domain.ProcessorSubscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := c.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		logStripeError(c.log, "GetSubscription", err)
		return nil, domain.NewUpstreamError("stripe", "failed to retrieve subscription", err)
	}
	return ToProcessorSubscription(sub), nil
}
