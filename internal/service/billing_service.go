package service

import (
	"context"
	"errors"
	"fmt"

	stripeint "github.com/Dhoini/saas-platform/internal/integration/stripe"

	"github.com/Dhoini/saas-platform/internal/domain"
	"github.com/Dhoini/saas-platform/internal/kafka"
	"github.com/Dhoini/saas-platform/internal/metrics"
	"github.com/Dhoini/saas-platform/internal/repository"
)

// PaymentGateway - операции платежного провайдера, нужные биллингу
type PaymentGateway interface {
	CreateCustomer(ctx context.Context, userID, email string, name *string) (string, error)
	CreateCheckoutSession(ctx context.Context, p stripeint.CheckoutParams) (*domain.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*domain.PortalSession, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*domain.ProcessorSubscription, error)
	ParseWebhook(payload []byte, signature string) (*domain.WebhookEvent, error)
}

// BillingService интерфейс сервиса подписок и синхронизации со Stripe
type BillingService interface {
	GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error)
	CreateCheckoutSession(ctx context.Context, userID, priceID string) (*domain.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, userID string) (*domain.PortalSession, error)
	// HandleWebhook проверяет подпись и применяет событие к подпискам
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// BillingConfig - настройки биллинга
type BillingConfig struct {
	FrontendURL string
	Prices      domain.PriceTable
}

type billingService struct {
	users    repository.UserRepository
	subs     repository.SubscriptionRepository
	webhooks repository.WebhookEventRepository
	gateway  PaymentGateway
	cfg      BillingConfig
	metrics  metrics.AppMetrics
	deps     Deps
}

// NewBillingService создает новый сервис биллинга; webhooks может быть nil (без дедупликации)
func NewBillingService(
	users repository.UserRepository,
	subs repository.SubscriptionRepository,
	webhooks repository.WebhookEventRepository,
	gateway PaymentGateway,
	cfg BillingConfig,
	m metrics.AppMetrics,
	deps Deps,
) BillingService {
	if m == nil {
		m = metrics.NewNopMetrics()
	}
	if cfg.Prices == nil {
		cfg.Prices = domain.PriceTable{}
	}
	return &billingService{
		users:    users,
		subs:     subs,
		webhooks: webhooks,
		gateway:  gateway,
		cfg:      cfg,
		metrics:  m,
		deps:     deps.withDefaults(),
	}
}

// GetSubscription возвращает подписку пользователя
func (s *billingService) GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		return nil, notFoundOrInternal(err, "Subscription", userID)
	}
	return sub, nil
}

// CreateCheckoutSession создает сессию оплаты; клиент Stripe создается при первом обращении
func (s *billingService) CreateCheckoutSession(ctx context.Context, userID, priceID string) (*domain.CheckoutSession, error) {
	if priceID == "" {
		return nil, domain.NewValidationError("Price ID is required")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOrInternal(err, "User", userID)
	}

	var customerID string
	if user.Subscription != nil && user.Subscription.StripeCustomerID != nil {
		customerID = *user.Subscription.StripeCustomerID
	}
	if customerID == "" {
		customerID, err = s.gateway.CreateCustomer(ctx, user.ID, user.Email, user.Name)
		if err != nil {
			s.metrics.IncCheckout(metrics.OutcomeFailed)
			return nil, err
		}
		if err := s.subs.SetCustomerID(ctx, user.ID, customerID); err != nil {
			s.metrics.IncCheckout(metrics.OutcomeFailed)
			return nil, notFoundOrInternal(err, "Subscription", user.ID)
		}
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, stripeint.CheckoutParams{
		CustomerID: customerID,
		PriceID:    priceID,
		UserID:     user.ID,
		SuccessURL: s.cfg.FrontendURL + "/dashboard?success=true",
		CancelURL:  s.cfg.FrontendURL + "/pricing?canceled=true",
	})
	if err != nil {
		s.metrics.IncCheckout(metrics.OutcomeFailed)
		return nil, err
	}

	s.metrics.IncCheckout(metrics.OutcomeSuccess)
	return session, nil
}

// CreatePortalSession создает сессию биллинг-портала
func (s *billingService) CreatePortalSession(ctx context.Context, userID string) (*domain.PortalSession, error) {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NewInternalError("failed to load subscription", err)
	}
	if sub == nil || sub.StripeCustomerID == nil || *sub.StripeCustomerID == "" {
		return nil, domain.NewValidationError("No subscription found")
	}
	return s.gateway.CreatePortalSession(ctx, *sub.StripeCustomerID, s.cfg.FrontendURL+"/dashboard")
}

// HandleWebhook проверяет подпись, пропускает повторно доставленные события
// и применяет изменение. Побеждает последнее примененное событие.
func (s *billingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		s.metrics.IncWebhook(domain.WebhookEventUnknown.String(), metrics.OutcomeRejected)
		return err
	}
	kind := event.Kind.String()
	log := s.deps.Log.With("eventID", event.ID, "type", event.Type)

	if s.webhooks != nil && event.ID != "" {
		processed, err := s.webhooks.IsProcessed(ctx, event.ID)
		if err != nil {
			return domain.NewInternalError("failed to check webhook ledger", err)
		}
		if processed {
			log.Infow("Stripe event already processed, skipping")
			s.metrics.IncWebhook(kind, metrics.OutcomeDuplicate)
			return nil
		}
	}

	applied, err := s.apply(ctx, event)
	if err != nil {
		log.Errorw("Failed to apply Stripe event", "error", err)
		s.metrics.IncWebhook(kind, metrics.OutcomeFailed)
		return err
	}
	if applied {
		s.metrics.IncWebhook(kind, metrics.OutcomeSuccess)
	} else {
		s.metrics.IncWebhook(kind, metrics.OutcomeIgnored)
	}

	if s.webhooks != nil && event.ID != "" {
		if err := s.webhooks.MarkProcessed(ctx, event.ID, event.Type, s.deps.Now().UTC()); err != nil {
			// Событие уже применено; повторная доставка перезапишет те же поля
			log.Warnw("Failed to record processed Stripe event", "error", err)
		}
	}
	return nil
}

// apply - единственная точка, где меняется состояние подписки по событию Stripe
func (s *billingService) apply(ctx context.Context, event *domain.WebhookEvent) (bool, error) {
	switch event.Kind {
	case domain.WebhookEventCheckoutCompleted:
		return true, s.applyCheckoutCompleted(ctx, event)
	case domain.WebhookEventInvoicePaymentSucceeded:
		return true, s.applyInvoicePaymentSucceeded(ctx, event)
	case domain.WebhookEventSubscriptionUpdated:
		return true, s.applySubscriptionUpdated(ctx, event)
	case domain.WebhookEventSubscriptionDeleted:
		return true, s.applySubscriptionDeleted(ctx, event)
	case domain.WebhookEventUnknown:
		s.deps.Log.Infow("Unhandled Stripe event type", "type", event.Type, "eventID", event.ID)
		return false, nil
	default:
		s.deps.Log.Infow("Unhandled Stripe event kind", "kind", int(event.Kind), "eventID", event.ID)
		return false, nil
	}
}

func (s *billingService) applyCheckoutCompleted(ctx context.Context, event *domain.WebhookEvent) error {
	if event.CheckoutSubscriptionID == "" {
		s.deps.Log.Warnw("Checkout session has no subscription, ignoring", "eventID", event.ID)
		return nil
	}

	remote, err := s.gateway.GetSubscription(ctx, event.CheckoutSubscriptionID)
	if err != nil {
		return err
	}

	plan := s.cfg.Prices.PlanFor(remote.PriceID)
	status := domain.SubscriptionStatusActive
	upd := domain.SubscriptionUpdate{
		Plan:                 &plan,
		Status:               &status,
		StripeSubscriptionID: &remote.ID,
	}
	if remote.PriceID != "" {
		upd.StripePriceID = &remote.PriceID
	}
	setPeriodEnd(&upd, remote)

	if event.CheckoutUserID != "" {
		if err := s.subs.UpdateByUserID(ctx, event.CheckoutUserID, upd); err != nil {
			return notFoundOrInternal(err, "Subscription", event.CheckoutUserID)
		}
		s.changed(ctx, []string{event.CheckoutUserID}, plan, status, event)
		return nil
	}

	customerID := event.CheckoutCustomerID
	if customerID == "" {
		customerID = remote.CustomerID
	}
	return s.updateByCustomer(ctx, customerID, upd, event)
}

func (s *billingService) applyInvoicePaymentSucceeded(ctx context.Context, event *domain.WebhookEvent) error {
	status := domain.SubscriptionStatusActive
	upd := domain.SubscriptionUpdate{Status: &status}

	if event.InvoiceSubscriptionID != "" {
		remote, err := s.gateway.GetSubscription(ctx, event.InvoiceSubscriptionID)
		if err != nil {
			return err
		}
		setPeriodEnd(&upd, remote)
	}
	return s.updateByCustomer(ctx, event.InvoiceCustomerID, upd, event)
}

func (s *billingService) applySubscriptionUpdated(ctx context.Context, event *domain.WebhookEvent) error {
	remote := event.Subscription
	if remote == nil {
		return domain.NewValidationError("Subscription payload is missing")
	}

	plan := s.cfg.Prices.PlanFor(remote.PriceID)
	status := domain.SubscriptionStatusCanceled
	if remote.Active() {
		status = domain.SubscriptionStatusActive
	}
	upd := domain.SubscriptionUpdate{Plan: &plan, Status: &status}
	if remote.PriceID != "" {
		upd.StripePriceID = &remote.PriceID
	}
	setPeriodEnd(&upd, remote)

	return s.updateByCustomer(ctx, remote.CustomerID, upd, event)
}

func (s *billingService) applySubscriptionDeleted(ctx context.Context, event *domain.WebhookEvent) error {
	remote := event.Subscription
	if remote == nil {
		return domain.NewValidationError("Subscription payload is missing")
	}

	plan := domain.PlanFree
	status := domain.SubscriptionStatusCanceled
	upd := domain.SubscriptionUpdate{
		Plan:           &plan,
		Status:         &status,
		ClearPriceID:   true,
		ClearPeriodEnd: true,
	}
	return s.updateByCustomer(ctx, remote.CustomerID, upd, event)
}

func (s *billingService) updateByCustomer(ctx context.Context, customerID string, upd domain.SubscriptionUpdate, event *domain.WebhookEvent) error {
	if customerID == "" {
		s.deps.Log.Warnw("Stripe event has no customer id, ignoring", "eventID", event.ID, "type", event.Type)
		return nil
	}

	userIDs, err := s.subs.UpdateByCustomerID(ctx, customerID, upd)
	if err != nil {
		return domain.NewInternalError(fmt.Sprintf("failed to update subscriptions for customer %s", customerID), err)
	}
	if len(userIDs) == 0 {
		s.deps.Log.Warnw("No subscription matches Stripe customer", "customerID", customerID, "eventID", event.ID)
		return nil
	}

	var plan domain.Plan
	if upd.Plan != nil {
		plan = *upd.Plan
	}
	s.changed(ctx, userIDs, plan, *upd.Status, event)
	return nil
}

func (s *billingService) changed(ctx context.Context, userIDs []string, plan domain.Plan, status domain.SubscriptionStatus, event *domain.WebhookEvent) {
	s.metrics.IncSubscriptionChange(string(plan), string(status))
	for _, id := range userIDs {
		s.deps.Log.Infow("Subscription updated from Stripe event", "userID", id, "type", event.Type, "plan", plan, "status", status)
		s.deps.publish(ctx, kafka.EventSubscriptionChanged, id, map[string]string{
			"plan":        string(plan),
			"status":      string(status),
			"stripeEvent": event.Type,
		})
	}
}

func setPeriodEnd(upd *domain.SubscriptionUpdate, remote *domain.ProcessorSubscription) {
	if remote == nil || remote.CurrentPeriodEnd.IsZero() {
		return
	}
	end := remote.CurrentPeriodEnd
	upd.CurrentPeriodEnd = &end
}
