package checkout

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-lavault/internal/auth"
	"github.com/noah-isme/backend-lavault/internal/common"
	"github.com/noah-isme/backend-lavault/internal/payment"
	"github.com/noah-isme/backend-lavault/internal/project"
)

type fakeStore struct {
	projects map[string]project.Project
	err      error
	calls    int
}

func (s *fakeStore) Get(_ context.Context, id string) (project.Project, error) {
	s.calls++
	if s.err != nil {
		return project.Project{}, s.err
	}
	p, ok := s.projects[id]
	if !ok {
		return project.Project{}, project.ErrNotFound
	}
	return p, nil
}

type fakeGateway struct {
	session  payment.CheckoutSession
	err      error
	requests []payment.CheckoutRequest
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return payment.CheckoutSession{}, g.err
	}
	return g.session, nil
}

var buyer = auth.Session{UserID: "user-1", Email: "buyer@example.com"}

func storeWith(price float64) *fakeStore {
	return &fakeStore{projects: map[string]project.Project{
		"p1": {ID: "p1", Name: "Landing page", Description: "Responsive template", Price: price},
	}}
}

func newTestService(t *testing.T, store project.Store, gw payment.Gateway, baseURL string) *Service {
	t.Helper()
	cfg := Config{Store: store, BaseURL: baseURL}
	if gw != nil {
		cfg.Gateway = gw
	}
	svc, err := NewService(cfg)
	require.NoError(t, err)
	return svc
}

func requireAppError(t *testing.T, err error, code, message string, status int) {
	t.Helper()
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
	require.Equal(t, message, appErr.Message)
	require.Equal(t, status, appErr.HTTPStatus)
}

func TestBuyCallsGatewayOnceWithAmountAndMetadata(t *testing.T) {
	cases := []struct {
		price float64
		want  int64
	}{
		{150, 15000},
		{19.99, 1999},
		{0.5, 50},
		{999999.99, 99999999},
	}
	for _, tc := range cases {
		gw := &fakeGateway{session: payment.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/pay/cs_1"}}
		svc := newTestService(t, storeWith(tc.price), gw, "")

		res, err := svc.Buy(context.Background(), buyer, "p1")
		require.NoError(t, err)
		require.Equal(t, Result{SessionID: "cs_1", RedirectURL: "https://checkout.stripe.com/c/pay/cs_1"}, res)

		require.Len(t, gw.requests, 1)
		req := gw.requests[0]
		require.Equal(t, tc.want, req.UnitAmount)
		require.Equal(t, "brl", req.Currency)
		require.Equal(t, "Landing page", req.ProductName)
		require.Equal(t, "Responsive template", req.ProductDescription)
		require.Equal(t, "buyer@example.com", req.CustomerEmail)
		require.Equal(t, map[string]string{"projectId": "p1", "userId": "user-1"}, req.Metadata)
		require.Equal(t, "https://free-lavault.vercel.app/?success=true", req.SuccessURL)
		require.Equal(t, "https://free-lavault.vercel.app/", req.CancelURL)
	}
}

func TestBuyUsesConfiguredBaseURL(t *testing.T) {
	gw := &fakeGateway{session: payment.CheckoutSession{ID: "cs_1"}}
	svc := newTestService(t, storeWith(10), gw, "https://lavault.example.com/")

	_, err := svc.Buy(context.Background(), buyer, "p1")
	require.NoError(t, err)
	require.Equal(t, "https://lavault.example.com/?success=true", gw.requests[0].SuccessURL)
	require.Equal(t, "https://lavault.example.com/", gw.requests[0].CancelURL)
}

func TestBuyWithoutSessionTouchesNothing(t *testing.T) {
	store := storeWith(10)
	gw := &fakeGateway{}
	svc := newTestService(t, store, gw, "")

	_, err := svc.Buy(context.Background(), auth.Session{Email: "no-id@example.com"}, "p1")
	require.Error(t, err)
	require.Zero(t, store.calls)
	require.Empty(t, gw.requests)
}

func TestBuyProjectNotFound(t *testing.T) {
	gw := &fakeGateway{}
	svc := newTestService(t, storeWith(10), gw, "")

	_, err := svc.Buy(context.Background(), buyer, "missing")
	requireAppError(t, err, "PROJECT_NOT_FOUND", "Projeto não encontrado", http.StatusNotFound)
	require.Empty(t, gw.requests)
}

func TestBuyPriceAboveLimit(t *testing.T) {
	for _, price := range []float64{1_000_000, 999999.995} {
		gw := &fakeGateway{}
		svc := newTestService(t, storeWith(price), gw, "")

		_, err := svc.Buy(context.Background(), buyer, "p1")
		requireAppError(t, err, "PRICE_LIMIT_EXCEEDED",
			"O valor deste projeto excede o limite permitido pelo processador de pagamentos.", http.StatusUnprocessableEntity)
		require.Empty(t, gw.requests)
	}
}

func TestBuyInvalidPrice(t *testing.T) {
	gw := &fakeGateway{}
	svc := newTestService(t, storeWith(-1), gw, "")

	_, err := svc.Buy(context.Background(), buyer, "p1")
	requireAppError(t, err, "INVALID_PRICE", MsgInvalidPrice, http.StatusUnprocessableEntity)
	require.Empty(t, gw.requests)
}

func TestBuyMissingGateway(t *testing.T) {
	svc := newTestService(t, storeWith(10), nil, "")

	_, err := svc.Buy(context.Background(), buyer, "p1")
	requireAppError(t, err, "GATEWAY_NOT_CONFIGURED", "Configuração do Stripe ausente.", http.StatusInternalServerError)
	require.ErrorIs(t, err, payment.ErrMissingSecretKey)
}

func TestBuyChecksProjectBeforeGatewayConfig(t *testing.T) {
	svc := newTestService(t, storeWith(10), nil, "")

	_, err := svc.Buy(context.Background(), buyer, "missing")
	requireAppError(t, err, "PROJECT_NOT_FOUND", "Projeto não encontrado", http.StatusNotFound)
}

func TestBuyPropagatesGatewayMessageAndLogsOnce(t *testing.T) {
	gw := &fakeGateway{err: &payment.GatewayError{Message: "Your account cannot currently make live charges.", StatusCode: 400}}
	svc := newTestService(t, storeWith(10), gw, "")

	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())

	res, err := svc.Buy(ctx, buyer, "p1")
	require.Empty(t, res.RedirectURL)
	requireAppError(t, err, "GATEWAY_ERROR", "Your account cannot currently make live charges.", http.StatusBadGateway)
	require.Equal(t, "Your account cannot currently make live charges.", err.Error())
	require.Len(t, gw.requests, 1)
	require.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("stripe checkout failed")))
}

func TestBuyStoreFailureIsInternal(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	gw := &fakeGateway{}
	svc := newTestService(t, store, gw, "")

	_, err := svc.Buy(context.Background(), buyer, "p1")
	require.Error(t, err)
	require.False(t, common.IsAppError(err))
	require.Empty(t, gw.requests)
}

func TestNewServiceRequiresStore(t *testing.T) {
	_, err := NewService(Config{})
	require.Error(t, err)
}
