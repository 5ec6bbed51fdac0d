package payment

import (
	"context"
	"errors"
)

// ErrMissingSecretKey is returned when the gateway is built without credentials.
var ErrMissingSecretKey = errors.New("payment: missing gateway secret key")

// CheckoutRequest describes a single-item hosted checkout session.
// Quantity is always one.
type CheckoutRequest struct {
	Currency           string
	UnitAmount         int64
	ProductName        string
	ProductDescription string
	CustomerEmail      string
	Metadata           map[string]string
	SuccessURL         string
	CancelURL          string
}

// CheckoutSession is the gateway's answer to a CheckoutRequest.
// URL may be empty.
type CheckoutSession struct {
	ID  string
	URL string
}

// Gateway creates hosted checkout sessions.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
}

// GatewayError carries the message reported by the payment gateway.
type GatewayError struct {
	Message    string
	StatusCode int
	Code       string
	Err        error
}

func (e *GatewayError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "payment gateway error"
}

func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Transient reports whether the failure points at the gateway itself
// (network, 429 or 5xx) rather than at the request.
func (e *GatewayError) Transient() bool {
	if e == nil {
		return false
	}
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}
