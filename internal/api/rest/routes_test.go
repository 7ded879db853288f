package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dhoini/saas-platform/internal/api/rest/handlers"
	"github.com/Dhoini/saas-platform/internal/auth"
	"github.com/Dhoini/saas-platform/internal/domain"
	stripeint "github.com/Dhoini/saas-platform/internal/integration/stripe"
	"github.com/Dhoini/saas-platform/internal/metrics"
	"github.com/Dhoini/saas-platform/internal/middleware"
	"github.com/Dhoini/saas-platform/internal/repository/memory"
	"github.com/Dhoini/saas-platform/internal/service"
	"github.com/Dhoini/saas-platform/pkg/logger"
	"github.com/Dhoini/saas-platform/pkg/res"
)

const (
	testWebhookSecret = "whsec_router"
	frontendURL       = "http://localhost:3000"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	store  *memory.Store
}

// fakeStripeAPI отвечает на вызовы создания клиента и сессий
func fakeStripeAPI(t *testing.T) stripe.Backend {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/customers":
			_, _ = w.Write([]byte(`{"id":"cus_router","object":"customer"}`))
		case "/v1/checkout/sessions":
			_, _ = w.Write([]byte(`{"id":"cs_router","object":"checkout.session","url":"https://checkout.stripe.test/cs_router"}`))
		case "/v1/billing_portal/sessions":
			_, _ = w.Write([]byte(`{"id":"bps_1","object":"billing_portal.session","url":"https://billing.stripe.test/cus_router"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"unknown path"}}`))
		}
	}))
	t.Cleanup(srv.Close)
	return stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.NewNop()
	store := memory.NewStore(time.UTC)
	registry := prometheus.NewRegistry()
	appMetrics := metrics.NewAppMetrics(registry, log)
	tokens := auth.NewSessionIssuer("router-secret", 7*24*time.Hour)
	deps := service.Deps{Log: log}

	gateway := stripeint.NewClient(stripeint.Config{
		SecretKey:     "sk_test_router",
		WebhookSecret: testWebhookSecret,
		Backend:       fakeStripeAPI(t),
	}, log)

	authSvc := service.NewAuthService(store.Users(), auth.NewPasswordHasher(bcrypt.MinCost), tokens, appMetrics, deps)
	userSvc := service.NewUserService(store.Users(), nil, deps)
	billingSvc := service.NewBillingService(store.Users(), store.Subscriptions(), store.WebhookEvents(), gateway,
		service.BillingConfig{FrontendURL: frontendURL, Prices: domain.PriceTable{"price_pro": domain.PlanPro}},
		appMetrics, deps)
	analyticsSvc := service.NewAnalyticsService(store.Events(), time.UTC, appMetrics, deps)

	cookie := handlers.SessionCookie{TTL: tokens.TTL()}
	router := SetupRouter(RouterDeps{
		Auth:          handlers.NewAuthHandler(authSvc, cookie, log),
		Users:         handlers.NewUserHandler(userSvc, cookie, log),
		Subscriptions: handlers.NewSubscriptionHandler(billingSvc, log),
		Analytics:     handlers.NewAnalyticsHandler(analyticsSvc, time.UTC, log),
		Health:        handlers.NewHealthHandler(nil, log),
		Gate:          middleware.NewAuthGate(tokens, store.Users(), log),
		RateLimiter:   middleware.NewRateLimiter(1000, 1000, log),
		Metrics:       appMetrics,
		Registry:      registry,
		FrontendURL:   frontendURL,
		Log:           log,
	})
	return &testServer{router: router, store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		r.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.TokenCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", middleware.TokenCookie)
	return nil
}

func (s *testServer) register(t *testing.T, email string) *http.Cookie {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{"email": email, "password": "password123"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return sessionCookie(t, w)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) res.ErrorResponse {
	t.Helper()
	var body res.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRegisterSetsSessionCookie(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{"email": "a@example.com", "password": "password123"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	c := sessionCookie(t, w)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, 7*24*3600, c.MaxAge)
	assert.False(t, c.Secure)

	var body handlers.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "a@example.com", body.User.Email)
	require.NotNil(t, body.User.Subscription)
	assert.Equal(t, domain.PlanFree, body.User.Subscription.Plan)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestRegisterDuplicateAndValidation(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "dup@example.com")

	w := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{"email": "dup@example.com", "password": "password123"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, service.MsgUserExists, decodeError(t, w).Message)

	w = s.do(t, http.MethodPost, "/api/auth/register", map[string]string{"email": "not-an-email"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, string(domain.KindValidation), body.Error)
	assert.NotNil(t, body.Details)
}

func TestLoginMessagesAreIdentical(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "b@example.com")

	wrong := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "b@example.com", "password": "nope"}, nil)
	unknown := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "ghost@example.com", "password": "nope"}, nil)

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())

	ok := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "b@example.com", "password": "password123"}, nil)
	assert.Equal(t, http.StatusOK, ok.Code)
	sessionCookie(t, ok)
}

func TestMeRefreshAndLogout(t *testing.T) {
	s := newTestServer(t)
	cookie := s.register(t, "c@example.com")

	w := s.do(t, http.MethodGet, "/api/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "c@example.com")

	w = s.do(t, http.MethodPost, "/api/auth/refresh", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	sessionCookie(t, w)

	w = s.do(t, http.MethodPost, "/api/auth/logout", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Less(t, sessionCookie(t, w).MaxAge, 0)
}

func TestDeleteAccountInvalidatesSession(t *testing.T) {
	s := newTestServer(t)
	cookie := s.register(t, "d@example.com")

	w := s.do(t, http.MethodPost, "/api/analytics/track", map[string]string{"event": "page_view"}, cookie)
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodDelete, "/api/users/account", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/users/profile", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "User not found", decodeError(t, w).Message)
}

func TestProfileUpdate(t *testing.T) {
	s := newTestServer(t)
	cookie := s.register(t, "e@example.com")

	w := s.do(t, http.MethodPut, "/api/users/profile", map[string]string{"name": "Eve"}, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/users/profile", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var profile domain.PublicUser
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	require.NotNil(t, profile.Name)
	assert.Equal(t, "Eve", *profile.Name)
	assert.NotNil(t, profile.CreatedAt)
}

func TestListUsersRequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	cookie := s.register(t, "f@example.com")

	w := s.do(t, http.MethodGet, "/api/users", nil, cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Insufficient permissions", decodeError(t, w).Message)
}

func (s *testServer) admin(t *testing.T, email string) *http.Cookie {
	t.Helper()
	hash, err := auth.NewPasswordHasher(bcrypt.MinCost).Hash("password123")
	require.NoError(t, err)
	now := time.Now()
	user := &domain.User{ID: "admin-" + email, Email: email, PasswordHash: hash, Role: domain.RoleAdmin, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.store.Users().Create(context.Background(), user, domain.NewDefaultSubscription("sub-"+email, user.ID, now)))

	w := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": "password123"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return sessionCookie(t, w)
}

func TestListUsersPagination(t *testing.T) {
	s := newTestServer(t)
	cookie := s.admin(t, "root@example.com")

	w := s.do(t, http.MethodGet, "/api/users?page=1&limit=5", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Users      []domain.PublicUser `json:"users"`
		Pagination domain.Pagination   `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Users, 1)
	assert.Equal(t, domain.Pagination{Page: 1, Limit: 5, Total: 1, Pages: 1}, body.Pagination)

	w = s.do(t, http.MethodGet, "/api/users?page=922337203685477581&limit=100", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid page parameter", decodeError(t, w).Message)

	w = s.do(t, http.MethodGet, "/api/users?page=abc", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckoutThenWebhookUpgradesPlan(t *testing.T) {
	s := newTestServer(t)
	cookie := s.register(t, "g@example.com")

	w := s.do(t, http.MethodPost, "/api/subscriptions/checkout", map[string]string{}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Price ID is required", decodeError(t, w).Message)

	w = s.do(t, http.MethodPost, "/api/subscriptions/checkout", map[string]string{"priceId": "price_pro"}, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var session domain.CheckoutSession
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	assert.Equal(t, "cs_router", session.SessionID)

	payload := []byte(fmt.Sprintf(`{"id":"evt_router_1","object":"event","type":%q,"data":{"object":{
		"id":"sub_1","object":"subscription","customer":"cus_router","status":"active",
		"current_period_end":%d,
		"items":{"object":"list","data":[{"id":"si_1","object":"subscription_item","price":{"id":"price_pro","object":"price"}}]}}}}`,
		domain.StripeEventSubscriptionUpdated, time.Now().Add(30*24*time.Hour).Unix()))
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})

	r := httptest.NewRequest(http.MethodPost, "/api/subscriptions/webhook", bytes.NewReader(signed.Payload))
	r.Header.Set("Stripe-Signature", signed.Header)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	w = s.do(t, http.MethodGet, "/api/subscriptions", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var sub handlers.SubscriptionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	assert.Equal(t, domain.PlanPro, sub.Subscription.Plan)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Subscription.Status)

	w = s.do(t, http.MethodPost, "/api/subscriptions/portal", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "billing.stripe.test")
}

func TestWebhookSignatureChecks(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/subscriptions/webhook", map[string]string{"id": "evt"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing Stripe signature", decodeError(t, w).Message)

	r := httptest.NewRequest(http.MethodPost, "/api/subscriptions/webhook", strings.NewReader(`{"id":"evt"}`))
	r.Header.Set("Stripe-Signature", "t=1,v1=forged")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(domain.KindSignatureInvalid), decodeError(t, rec).Error)

	r = httptest.NewRequest(http.MethodPost, "/api/subscriptions/webhook", bytes.NewReader(make([]byte, 70000)))
	r.Header.Set("Stripe-Signature", "t=1,v1=forged")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyticsRoutes(t *testing.T) {
	s := newTestServer(t)
	cookie := s.register(t, "h@example.com")

	for _, name := range []string{"click", "click", "view"} {
		w := s.do(t, http.MethodPost, "/api/analytics/track", map[string]any{"event": name, "metadata": map[string]int{"n": 1}}, cookie)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := s.do(t, http.MethodPost, "/api/analytics/track", map[string]string{"event": ""}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Event name is required", decodeError(t, w).Message)

	w = s.do(t, http.MethodGet, "/api/analytics/summary", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var summary struct {
		Summary domain.AnalyticsSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 3, summary.Summary.TotalEvents)
	assert.Equal(t, 2, summary.Summary.UniqueEventTypes)

	w = s.do(t, http.MethodGet, "/api/analytics/top?limit=1", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var top struct {
		TopEvents []domain.EventCount `json:"topEvents"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &top))
	assert.Equal(t, []domain.EventCount{{Event: "click", Count: 2}}, top.TopEvents)

	today := time.Now().UTC().Format(domain.DateLayout)
	w = s.do(t, http.MethodGet, "/api/analytics/events?startDate="+today, nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "eventCounts")

	w = s.do(t, http.MethodGet, "/api/analytics?startDate=yesterday", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/analytics/daily?days=0", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/analytics/daily", nil, cookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnalyticsDateOnlyEndIsWholeDay(t *testing.T) {
	s := newTestServer(t)
	cookie := s.register(t, "range@example.com")
	now := time.Now().UTC()
	today := now.Format(domain.DateLayout)
	yesterday := now.AddDate(0, 0, -1).Format(domain.DateLayout)

	for _, name := range []string{"open", "open"} {
		w := s.do(t, http.MethodPost, "/api/analytics/track", map[string]string{"event": name}, cookie)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	var list struct {
		Analytics []domain.Event `json:"analytics"`
	}
	w := s.do(t, http.MethodGet, "/api/analytics?startDate="+today+"&endDate="+today, nil, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Analytics, 2)

	w = s.do(t, http.MethodGet, "/api/analytics?endDate="+yesterday, nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	list.Analytics = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list.Analytics)

	w = s.do(t, http.MethodGet, "/api/analytics?startDate="+today+"&endDate="+yesterday, nil, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthMetricsAndNotFound(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health handlers.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "OK", health.Status)
	assert.Equal(t, "memory", health.Database)

	w = s.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")

	w = s.do(t, http.MethodGet, "/api/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not Found", decodeError(t, w).Error)
}
