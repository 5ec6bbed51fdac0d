package payment

import (
	"context"
	"errors"

	"github.com/noah-isme/backend-lavault/internal/resilience"
)

// BreakerGateway short-circuits calls to Next while its breaker is open.
// Only transient gateway failures count against the breaker.
type BreakerGateway struct {
	Next    Gateway
	Breaker *resilience.Breaker
}

func (g BreakerGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	if g.Breaker == nil {
		return g.Next.CreateCheckoutSession(ctx, req)
	}
	var sess CheckoutSession
	err := g.Breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		sess, err = g.Next.CreateCheckoutSession(ctx, req)
		return err
	}, countsAgainstBreaker)
	if errors.Is(err, resilience.ErrOpenCircuit) {
		return CheckoutSession{}, &GatewayError{Message: "Serviço de pagamento temporariamente indisponível.", StatusCode: 503, Err: err}
	}
	return sess, err
}

func countsAgainstBreaker(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Transient()
	}
	return true
}
