package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dhoini/saas-platform/internal/auth"
	"github.com/Dhoini/saas-platform/internal/domain"
	stripeint "github.com/Dhoini/saas-platform/internal/integration/stripe"
	"github.com/Dhoini/saas-platform/internal/kafka"
	"github.com/Dhoini/saas-platform/internal/repository/memory"
	"github.com/Dhoini/saas-platform/pkg/logger"
)

const validSignature = "t=1,v1=valid"

// fakeGateway - платежный шлюз в памяти
type fakeGateway struct {
	mu            sync.Mutex
	events        map[string]*domain.WebhookEvent
	subscriptions map[string]*domain.ProcessorSubscription
	customers     []string
	checkouts     []stripeint.CheckoutParams
	portalReturn  string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		events:        map[string]*domain.WebhookEvent{},
		subscriptions: map[string]*domain.ProcessorSubscription{},
	}
}

func (g *fakeGateway) CreateCustomer(_ context.Context, userID, _ string, _ *string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := fmt.Sprintf("cus_%d", len(g.customers)+1)
	g.customers = append(g.customers, userID)
	return id, nil
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, p stripeint.CheckoutParams) (*domain.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkouts = append(g.checkouts, p)
	return &domain.CheckoutSession{SessionID: "cs_1", URL: "https://checkout.stripe.test/cs_1"}, nil
}

func (g *fakeGateway) CreatePortalSession(_ context.Context, customerID, returnURL string) (*domain.PortalSession, error) {
	g.portalReturn = returnURL
	return &domain.PortalSession{URL: "https://billing.stripe.test/" + customerID}, nil
}

func (g *fakeGateway) GetSubscription(_ context.Context, id string) (*domain.ProcessorSubscription, error) {
	sub, ok := g.subscriptions[id]
	if !ok {
		return nil, domain.NewUpstreamError("stripe", "no such subscription", nil)
	}
	return sub, nil
}

func (g *fakeGateway) ParseWebhook(payload []byte, signature string) (*domain.WebhookEvent, error) {
	if signature != validSignature {
		return nil, domain.NewSignatureInvalidError(fmt.Errorf("bad signature"))
	}
	ev, ok := g.events[string(payload)]
	if !ok {
		return nil, domain.NewValidationError("unknown payload")
	}
	return ev, nil
}

// recordingPublisher запоминает опубликованные события
type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store     *memory.Store
	gateway   *fakeGateway
	publisher *recordingPublisher
	now       time.Time
	auth      AuthService
	users     UserService
	billing   BillingService
	analytics AnalyticsService
}

var testPrices = domain.PriceTable{
	"price_basic":      domain.PlanBasic,
	"price_pro":        domain.PlanPro,
	"price_enterprise": domain.PlanEnterprise,
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.NewStore(time.UTC),
		gateway:   newFakeGateway(),
		publisher: &recordingPublisher{},
		now:       time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
	}

	var seq atomic.Int64
	deps := Deps{
		Publisher: f.publisher,
		Log:       logger.NewNop(),
		Now:       func() time.Time { return f.now },
		NewID: func() string {
			return fmt.Sprintf("id-%03d", seq.Add(1))
		},
	}

	f.auth = NewAuthService(f.store.Users(), auth.NewPasswordHasher(bcrypt.MinCost),
		auth.NewSessionIssuer("test-secret", time.Hour), nil, deps)
	f.users = NewUserService(f.store.Users(), nil, deps)
	f.billing = NewBillingService(f.store.Users(), f.store.Subscriptions(), f.store.WebhookEvents(), f.gateway,
		BillingConfig{FrontendURL: "http://localhost:3000", Prices: testPrices}, nil, deps)
	f.analytics = NewAnalyticsService(f.store.Events(), time.UTC, nil, deps)
	return f
}

func (f *fixture) register(t *testing.T, email string) *domain.UserWithSubscription {
	t.Helper()
	res, err := f.auth.Register(context.Background(), RegisterInput{Email: email, Password: "password123"})
	require.NoError(t, err)
	return res.User
}
