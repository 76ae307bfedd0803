package payment

import (
	"context"
	"net/url"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/lamngoc/minimart/internal/domain/order"
)

// SSLCommerzConfig holds the merchant credentials and redirect endpoints for
// the hosted-form checkout.
type SSLCommerzConfig struct {
	StoreID     string
	StorePass   string
	CheckoutURL string
	SuccessURL  string
	FailURL     string
	CancelURL   string
	IPNURL      string
	Currency    string
}

// SSLCommerz integrates the hosted form-POST checkout. Initiate produces the
// field map the browser auto-submits; there is no client-side signature
// because the gateway validates the session server-side. Confirmation arrives
// through the asynchronous callback carrying a status string.
type SSLCommerz struct {
	cfg SSLCommerzConfig
}

// NewSSLCommerz returns the hosted-form gateway adapter.
func NewSSLCommerz(cfg SSLCommerzConfig) *SSLCommerz {
	return &SSLCommerz{cfg: cfg}
}

func (*SSLCommerz) Kind() string { return order.MethodSSLCommerz }

func (*SSLCommerz) PaidLabel() string { return "Paid via SSLCommerz" }

// Initiate builds the checkout form fields. The invoice number is the base
// order id so every later trigger can find the order again.
func (g *SSLCommerz) Initiate(_ context.Context, o CheckoutOrder) (*Checkout, error) {
	if o.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.Errorf("non-positive checkout amount %s for order %s", o.Amount, o.BaseID)
	}

	fields := map[string]string{
		"store_id":     g.cfg.StoreID,
		"store_passwd": g.cfg.StorePass,
		"tran_id":      o.BaseID,
		"total_amount": o.Amount.StringFixed(2),
		"currency":     g.cfg.Currency,
		"success_url":  g.cfg.SuccessURL,
		"fail_url":     g.cfg.FailURL,
		"cancel_url":   g.cfg.CancelURL,
		"ipn_url":      g.cfg.IPNURL,
		"product_name": o.Description,
		"cus_name":     o.CustomerID,
		"emi_option":   "0",
	}

	return &Checkout{
		OrderID:    o.BaseID,
		PaymentURL: g.cfg.CheckoutURL,
		Fields:     fields,
		Amount:     o.Amount,
	}, nil
}

// Verify normalizes an async callback payload. The gateway reports the
// session outcome in the status field: VALID and VALIDATED mean the payment
// was captured, anything else is a failure.
func (*SSLCommerz) Verify(params url.Values) (*Notification, error) {
	tranID := params.Get("tran_id")
	if tranID == "" {
		return nil, errors.New("callback missing tran_id")
	}

	status := params.Get("status")
	amount := decimal.Zero
	if raw := params.Get("amount"); raw != "" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			amount = decimal.NewFromFloat(f)
		}
	}

	return &Notification{
		OrderRef:     tranID,
		Success:      status == "VALID" || status == "VALIDATED",
		ExternalTxID: params.Get("val_id"),
		Amount:       amount,
		ResponseCode: status,
	}, nil
}
