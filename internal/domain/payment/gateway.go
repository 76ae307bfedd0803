package payment

import (
	"context"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrUnsupportedGateway is returned when no adapter is registered for a
	// payment method.
	ErrUnsupportedGateway = errors.New("unsupported payment gateway")
	// ErrBadSignature is returned when a signed payload fails verification.
	// A signature failure never mutates order state.
	ErrBadSignature = errors.New("payment signature mismatch")
	// ErrVerifyUnsupported is returned by gateways that have no verification
	// step (cash on delivery).
	ErrVerifyUnsupported = errors.New("gateway has no verification step")
)

// CheckoutOrder is the order data a gateway needs to start a checkout.
type CheckoutOrder struct {
	BaseID      string
	CustomerID  string
	Amount      decimal.Decimal
	Description string
	ClientIP    string
}

// Checkout describes how the client should reach the external checkout UI.
// Hosted-form gateways fill Fields for an auto-submitted POST; signed-redirect
// gateways fill PaymentURL for a plain browser redirect.
type Checkout struct {
	OrderID    string
	PaymentURL string
	Fields     map[string]string
	Amount     decimal.Decimal
}

// Notification is the normalized result of verifying a gateway payload,
// whether it arrived via async callback, browser return, or IPN.
type Notification struct {
	OrderRef     string
	Success      bool
	ExternalTxID string
	Amount       decimal.Decimal
	ResponseCode string
}

// Gateway is the common adapter contract for all payment channels. Variant
// behaviour (form fields, signatures, response codes) lives entirely in the
// implementations so the rest of the system never branches on provider.
type Gateway interface {
	// Kind is the payment method string stored on order lines.
	Kind() string
	// PaidLabel is the payment status label written on confirmation.
	PaidLabel() string
	Initiate(ctx context.Context, o CheckoutOrder) (*Checkout, error)
	Verify(params url.Values) (*Notification, error)
}

// Registry selects gateway adapters by payment method.
type Registry struct {
	gateways map[string]Gateway
}

// NewRegistry builds a Registry over the supplied gateways.
func NewRegistry(gws ...Gateway) *Registry {
	m := make(map[string]Gateway, len(gws))
	for _, gw := range gws {
		m[strings.ToLower(gw.Kind())] = gw
	}
	return &Registry{gateways: m}
}

// Get returns the adapter for the given payment method, or
// ErrUnsupportedGateway when none is registered.
func (r *Registry) Get(kind string) (Gateway, error) {
	gw, ok := r.gateways[strings.ToLower(kind)]
	if !ok {
		return nil, ErrUnsupportedGateway
	}
	return gw, nil
}
