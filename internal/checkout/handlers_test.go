package checkout

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-lavault/internal/auth"
	"github.com/noah-isme/backend-lavault/internal/common"
	"github.com/noah-isme/backend-lavault/internal/payment"
)

func formRequest(ctx context.Context, projectID string) *http.Request {
	body := url.Values{"projectId": {projectID}}.Encode()
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req.WithContext(ctx)
}

func withBuyer(ctx context.Context) context.Context {
	return common.WithIdentity(ctx, buyer.UserID, buyer.Email)
}

func TestHandlerBuyRedirectsToGateway(t *testing.T) {
	gw := &fakeGateway{session: payment.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/pay/cs_1"}}
	h := NewHandler(newTestService(t, storeWith(150), gw, ""), "/login")

	rr := httptest.NewRecorder()
	h.Buy(rr, formRequest(withBuyer(context.Background()), "p1"))

	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "https://checkout.stripe.com/c/pay/cs_1", rr.Header().Get("Location"))
}

func TestHandlerBuyAcceptsMultipartForm(t *testing.T) {
	gw := &fakeGateway{session: payment.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/pay/cs_1"}}
	h := NewHandler(newTestService(t, storeWith(150), gw, ""), "/login")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("projectId", "p1"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/checkout", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = req.WithContext(withBuyer(req.Context()))

	rr := httptest.NewRecorder()
	h.Buy(rr, req)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Len(t, gw.requests, 1)
}

func TestHandlerBuyUnauthenticatedRedirectsToLogin(t *testing.T) {
	store := storeWith(150)
	gw := &fakeGateway{}
	h := NewHandler(newTestService(t, store, gw, ""), "/login")

	rr := httptest.NewRecorder()
	h.Buy(rr, formRequest(context.Background(), "p1"))

	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/login", rr.Header().Get("Location"))
	require.Zero(t, store.calls)
	require.Empty(t, gw.requests)
}

func TestHandlerBuyBehindRequireSession(t *testing.T) {
	store := storeWith(150)
	gw := &fakeGateway{}
	h := NewHandler(newTestService(t, store, gw, ""), "/login")
	sessions, err := auth.NewService(auth.Config{Secret: "secret"})
	require.NoError(t, err)
	protected := auth.Middleware{Service: sessions, SessionCookie: "session-token"}.RequireSession("/login")(http.HandlerFunc(h.Buy))

	rr := httptest.NewRecorder()
	protected.ServeHTTP(rr, formRequest(context.Background(), "p1"))

	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/login", rr.Header().Get("Location"))
	require.Zero(t, store.calls)
	require.Empty(t, gw.requests)
}

func TestHandlerBuyGatewayFailureDoesNotRedirect(t *testing.T) {
	gw := &fakeGateway{err: &payment.GatewayError{Message: "Invalid currency: xyz", StatusCode: 400}}
	h := NewHandler(newTestService(t, storeWith(150), gw, ""), "/login")

	rr := httptest.NewRecorder()
	h.Buy(rr, formRequest(withBuyer(context.Background()), "p1"))

	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.Empty(t, rr.Header().Get("Location"))
	require.Contains(t, rr.Body.String(), "Invalid currency: xyz")
}

func TestHandlerBuyNotFound(t *testing.T) {
	h := NewHandler(newTestService(t, storeWith(150), &fakeGateway{}, ""), "/login")

	rr := httptest.NewRecorder()
	h.Buy(rr, formRequest(withBuyer(context.Background()), "nope"))

	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "Projeto não encontrado")
}

func TestHandlerBuyRequiresProjectID(t *testing.T) {
	store := storeWith(150)
	h := NewHandler(newTestService(t, store, &fakeGateway{}, ""), "/login")

	rr := httptest.NewRecorder()
	h.Buy(rr, formRequest(withBuyer(context.Background()), "  "))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "VALIDATION_ERROR")
	require.Zero(t, store.calls)
}

func TestHandlerBuyWithoutSessionURLReturnsNoContent(t *testing.T) {
	gw := &fakeGateway{session: payment.CheckoutSession{ID: "cs_1"}}
	h := NewHandler(newTestService(t, storeWith(150), gw, ""), "/login")

	rr := httptest.NewRecorder()
	h.Buy(rr, formRequest(withBuyer(context.Background()), "p1"))

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, rr.Header().Get("Location"))
}

func TestHandlerBuyJSONClients(t *testing.T) {
	gw := &fakeGateway{session: payment.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/pay/cs_1"}}
	h := NewHandler(newTestService(t, storeWith(150), gw, ""), "/login")

	req := formRequest(withBuyer(context.Background()), "p1")
	req.Header.Set("Accept", "application/json")
	rr := httptest.NewRecorder()
	h.Buy(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"data":{"sessionId":"cs_1","url":"https://checkout.stripe.com/c/pay/cs_1"}}`, rr.Body.String())
}
