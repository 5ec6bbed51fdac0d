package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-lavault/internal/auth"
	"github.com/noah-isme/backend-lavault/internal/checkout"
	"github.com/noah-isme/backend-lavault/internal/common"
	"github.com/noah-isme/backend-lavault/internal/config"
	"github.com/noah-isme/backend-lavault/internal/health"
	"github.com/noah-isme/backend-lavault/internal/obs"
	"github.com/noah-isme/backend-lavault/internal/payment"
	"github.com/noah-isme/backend-lavault/internal/project"
	"github.com/noah-isme/backend-lavault/internal/ratelimit"
)

type memProjects map[string]project.Project

func (m memProjects) Get(_ context.Context, id string) (project.Project, error) {
	p, ok := m[id]
	if !ok {
		return project.Project{}, project.ErrNotFound
	}
	return p, nil
}

type stubGateway struct{ calls int }

func (g *stubGateway) CreateCheckoutSession(context.Context, payment.CheckoutRequest) (payment.CheckoutSession, error) {
	g.calls++
	return payment.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

type testServer struct {
	handler http.Handler
	auth    *auth.Service
	gateway *stubGateway
	logs    *bytes.Buffer
}

func newTestServer(t *testing.T, rateMax int) testServer {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{
		PublicBaseURL:          config.DefaultPublicBaseURL,
		LoginPath:              "/login",
		SessionCookieName:      "session-token",
		CheckoutRateLimitMax:   rateMax,
		CheckoutRateWindow:     time.Minute,
		SecurityHeadersEnabled: true,
		SecurityBodyLimitBytes: 1 << 10,
		SecurityCSRFEnabled:    true,
	}
	sessions, err := auth.NewService(auth.Config{Secret: "test-secret"})
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	gw := &stubGateway{}
	svc, err := checkout.NewService(checkout.Config{
		Store:   memProjects{"p1": {ID: "p1", Name: "Landing page", Price: 49.9}},
		Gateway: gw,
		BaseURL: cfg.PublicBaseURL,
	})
	require.NoError(t, err)

	handler := newRouter(routes{
		cfg:         cfg,
		logger:      zerolog.New(logs),
		httpMetrics: obs.NewHTTPMetrics("lavault_test", nil, prometheus.NewRegistry()),
		auth:        auth.Middleware{Service: sessions, SessionCookie: cfg.SessionCookieName},
		checkout:    checkout.NewHandler(svc, cfg.LoginPath),
		health:      health.Handler{Probes: map[string]health.Probe{"redis": health.RedisProbe(client)}},
		limiter:     &ratelimit.Limiter{Client: client, Prefix: "rl:"},
		idem:        &common.Idem{R: client},
	})
	return testServer{handler: handler, auth: sessions, gateway: gw, logs: logs}
}

func (s testServer) bearer(t *testing.T) string {
	t.Helper()
	token, _, err := s.auth.IssueToken(auth.Session{UserID: "user-1", Email: "buyer@example.com"})
	require.NoError(t, err)
	return "Bearer " + token
}

func checkoutRequest(projectID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(url.Values{"projectId": {projectID}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestRouterHealthAndHeaders(t *testing.T) {
	s := newTestServer(t, 10)

	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	s.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRouterLogsAuthenticatedUserOnPublicRoutes(t *testing.T) {
	s := newTestServer(t, 10)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("Authorization", s.bearer(t))
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, s.logs.String(), `"user_id":"user-1"`)

	s.logs.Reset()
	rr = httptest.NewRecorder()
	s.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotContains(t, s.logs.String(), "user_id")
}

func TestRouterCheckoutRequiresSession(t *testing.T) {
	s := newTestServer(t, 10)

	req := checkoutRequest("p1")
	req.Header.Set("Origin", config.DefaultPublicBaseURL)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/login", rr.Header().Get("Location"))
	require.Zero(t, s.gateway.calls)
}

func TestRouterCheckoutRedirectsToGateway(t *testing.T) {
	s := newTestServer(t, 10)

	req := checkoutRequest("p1")
	req.Header.Set("Authorization", s.bearer(t))
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", rr.Header().Get("Location"))
	require.Equal(t, 1, s.gateway.calls)
}

func TestRouterCheckoutCookieSessionNeedsTrustedOrigin(t *testing.T) {
	s := newTestServer(t, 10)
	token := strings.TrimPrefix(s.bearer(t), "Bearer ")

	req := checkoutRequest("p1")
	req.AddCookie(&http.Cookie{Name: "session-token", Value: token})
	req.Header.Set("Origin", "https://evil.example")
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)

	req = checkoutRequest("p1")
	req.AddCookie(&http.Cookie{Name: "session-token", Value: token})
	req.Header.Set("Origin", config.DefaultPublicBaseURL)
	rr = httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, 1, s.gateway.calls)
}

func TestRouterCheckoutRateLimited(t *testing.T) {
	s := newTestServer(t, 1)
	token := s.bearer(t)

	for i, want := range []int{http.StatusSeeOther, http.StatusTooManyRequests} {
		req := checkoutRequest("p1")
		req.Header.Set("Authorization", token)
		rr := httptest.NewRecorder()
		s.handler.ServeHTTP(rr, req)
		require.Equal(t, want, rr.Code, "attempt %d", i+1)
	}
	require.Equal(t, 1, s.gateway.calls)
}

func TestRouterCheckoutIdempotencyKey(t *testing.T) {
	s := newTestServer(t, 10)
	token := s.bearer(t)

	for _, want := range []int{http.StatusSeeOther, http.StatusConflict} {
		req := checkoutRequest("p1")
		req.Header.Set("Authorization", token)
		req.Header.Set("Idempotency-Key", "buy-p1")
		rr := httptest.NewRecorder()
		s.handler.ServeHTTP(rr, req)
		require.Equal(t, want, rr.Code)
	}
	require.Equal(t, 1, s.gateway.calls)
}

func TestRouterStripeWebhookUnconfigured(t *testing.T) {
	s := newTestServer(t, 10)

	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader("{}")))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRouterPprofDisabledByDefault(t *testing.T) {
	s := newTestServer(t, 10)

	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
