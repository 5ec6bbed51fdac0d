package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/backend-lavault/internal/auth"
	"github.com/noah-isme/backend-lavault/internal/common"
	"github.com/noah-isme/backend-lavault/internal/config"
	"github.com/noah-isme/backend-lavault/internal/obs"
	"github.com/noah-isme/backend-lavault/internal/payment"
	"github.com/noah-isme/backend-lavault/internal/pricing"
	"github.com/noah-isme/backend-lavault/internal/project"
)

// User-facing failure messages.
const (
	MsgProjectNotFound      = "Projeto não encontrado"
	MsgPriceLimitExceeded   = "O valor deste projeto excede o limite permitido pelo processador de pagamentos."
	MsgInvalidPrice         = "O preço deste projeto é inválido."
	MsgGatewayNotConfigured = "Configuração do Stripe ausente."
	MsgSessionRequired      = "Sessão obrigatória."
)

// Result is the outcome of a successful checkout.
type Result struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"url,omitempty"`
}

// Config groups Service dependencies.
type Config struct {
	Store project.Store
	// Gateway may be nil when no gateway credentials are configured.
	Gateway       payment.Gateway
	BaseURL       string
	Currency      string
	MaxUnitAmount int64
}

// Service turns a project purchase request into a hosted checkout session.
type Service struct {
	store         project.Store
	gateway       payment.Gateway
	baseURL       string
	currency      string
	maxUnitAmount int64
}

// NewService constructs a Service instance.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("checkout: project store is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = config.DefaultPublicBaseURL
	}
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "brl"
	}
	maxUnit := cfg.MaxUnitAmount
	if maxUnit <= 0 {
		maxUnit = pricing.MaxUnitAmount
	}
	return &Service{
		store:         cfg.Store,
		gateway:       cfg.Gateway,
		baseURL:       baseURL,
		currency:      currency,
		maxUnitAmount: maxUnit,
	}, nil
}

// Buy looks up the project, prices it and opens a checkout session at the gateway.
// Each failure happens before any later step runs.
func (s *Service) Buy(ctx context.Context, sess auth.Session, projectID string) (Result, error) {
	ctx, span := otel.Tracer("checkout.Service").Start(ctx, "CheckoutService.Buy")
	defer span.End()

	result := "error"
	defer func() {
		span.SetAttributes(attribute.String("checkout.result", result))
		obs.CountCheckout(result)
	}()

	if strings.TrimSpace(sess.UserID) == "" {
		result = "unauthenticated"
		return Result{}, common.NewAppError("UNAUTHENTICATED", MsgSessionRequired, http.StatusUnauthorized, nil)
	}
	projectID = strings.TrimSpace(projectID)
	span.SetAttributes(attribute.String("project.id", projectID))

	p, err := s.store.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			result = "not_found"
			return Result{}, common.NewAppError("PROJECT_NOT_FOUND", MsgProjectNotFound, http.StatusNotFound, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "project lookup failed")
		return Result{}, fmt.Errorf("load project: %w", err)
	}

	amount, err := pricing.ToMinorUnits(p.Price, s.maxUnitAmount)
	if err != nil {
		if errors.Is(err, pricing.ErrExceedsLimit) {
			result = "price_limit"
			return Result{}, common.NewAppError("PRICE_LIMIT_EXCEEDED", MsgPriceLimitExceeded, http.StatusUnprocessableEntity, err)
		}
		result = "invalid_price"
		return Result{}, common.NewAppError("INVALID_PRICE", MsgInvalidPrice, http.StatusUnprocessableEntity, err)
	}

	if s.gateway == nil {
		result = "not_configured"
		return Result{}, common.NewAppError("GATEWAY_NOT_CONFIGURED", MsgGatewayNotConfigured, http.StatusInternalServerError, payment.ErrMissingSecretKey)
	}

	req := payment.CheckoutRequest{
		Currency:           s.currency,
		UnitAmount:         amount,
		ProductName:        p.Name,
		ProductDescription: p.Description,
		CustomerEmail:      sess.Email,
		Metadata: map[string]string{
			"projectId": p.ID,
			"userId":    sess.UserID,
		},
		SuccessURL: s.baseURL + "/?success=true",
		CancelURL:  s.baseURL + "/",
	}

	start := time.Now()
	cs, err := s.gateway.CreateCheckoutSession(ctx, req)
	observeGateway(err, time.Since(start))
	if err != nil {
		result = "gateway_error"
		msg := gatewayMessage(err)
		zerolog.Ctx(ctx).Error().
			Err(err).
			Str("project_id", p.ID).
			Str("user_id", sess.UserID).
			Int64("unit_amount", amount).
			Msg("stripe checkout failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		return Result{}, common.NewAppError("GATEWAY_ERROR", msg, http.StatusBadGateway, err)
	}

	result = "success"
	span.SetAttributes(attribute.String("checkout.session_id", cs.ID))
	return Result{SessionID: cs.ID, RedirectURL: cs.URL}, nil
}

func gatewayMessage(err error) string {
	var gwErr *payment.GatewayError
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message
	}
	return err.Error()
}

func observeGateway(err error, elapsed time.Duration) {
	if obs.CheckoutGatewayLatency == nil {
		return
	}
	label := "success"
	if err != nil {
		label = "error"
	}
	obs.CheckoutGatewayLatency.WithLabelValues(label).Observe(obs.DurationMillis(elapsed))
}
