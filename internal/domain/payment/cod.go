package payment

import (
	"context"
	"net/url"

	"github.com/lamngoc/minimart/internal/domain/order"
)

// COD is the cash-on-delivery channel. There is no external checkout and no
// confirmation step: the order service settles stock at creation time.
type COD struct{}

// NewCOD returns the cash-on-delivery adapter.
func NewCOD() *COD {
	return &COD{}
}

func (*COD) Kind() string { return order.MethodCOD }

func (*COD) PaidLabel() string { return order.PaymentStatusCOD }

// Initiate is a no-op: there is nowhere to redirect the customer.
func (*COD) Initiate(_ context.Context, o CheckoutOrder) (*Checkout, error) {
	return &Checkout{OrderID: o.BaseID, Amount: o.Amount}, nil
}

// Verify is unsupported; cash orders never produce gateway payloads.
func (*COD) Verify(url.Values) (*Notification, error) {
	return nil, ErrVerifyUnsupported
}
