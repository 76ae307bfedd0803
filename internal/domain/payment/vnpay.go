package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/lamngoc/minimart/internal/domain/order"
)

// VNPay protocol constants.
const (
	vnpVersion    = "2.1.0"
	vnpCommandPay = "pay"
	vnpDateLayout = "20060102150405"

	// VNPayCodeSuccess is the response code the gateway sends on a captured
	// payment.
	VNPayCodeSuccess = "00"
)

var hundredInt = decimal.NewFromInt(100)

// VNPayConfig holds the merchant credentials and endpoints for the signed
// query-string redirect flow.
type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
	// SessionTTL bounds how long the hosted checkout session stays payable.
	SessionTTL time.Duration
}

// VNPay integrates the signed-redirect checkout. Every outgoing parameter set
// is signed with HMAC-SHA512 over the alphabetically sorted, percent-encoded
// parameters, and every incoming payload (browser return and IPN alike) must
// carry a matching digest before it is trusted.
type VNPay struct {
	cfg VNPayConfig
	now func() time.Time
}

// NewVNPay returns the signed-redirect gateway adapter.
func NewVNPay(cfg VNPayConfig) *VNPay {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 15 * time.Minute
	}
	return &VNPay{cfg: cfg, now: time.Now}
}

func (*VNPay) Kind() string { return order.MethodVNPay }

func (*VNPay) PaidLabel() string { return "Paid via VNPay" }

// Initiate builds the redirect URL. The amount travels in minor units: the
// order total multiplied by 100.
func (g *VNPay) Initiate(_ context.Context, o CheckoutOrder) (*Checkout, error) {
	if o.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.Errorf("non-positive checkout amount %s for order %s", o.Amount, o.BaseID)
	}

	now := g.now()
	params := url.Values{}
	params.Set("vnp_Version", vnpVersion)
	params.Set("vnp_Command", vnpCommandPay)
	params.Set("vnp_TmnCode", g.cfg.TmnCode)
	params.Set("vnp_Amount", o.Amount.Mul(hundredInt).StringFixed(0))
	params.Set("vnp_CurrCode", "VND")
	params.Set("vnp_TxnRef", o.BaseID)
	params.Set("vnp_OrderInfo", o.Description)
	params.Set("vnp_OrderType", "other")
	params.Set("vnp_Locale", "vn")
	params.Set("vnp_IpAddr", o.ClientIP)
	params.Set("vnp_ReturnUrl", g.cfg.ReturnURL)
	params.Set("vnp_CreateDate", now.Format(vnpDateLayout))
	params.Set("vnp_ExpireDate", now.Add(g.cfg.SessionTTL).Format(vnpDateLayout))

	signData := buildSignData(params)
	params.Set("vnp_SecureHash", hmacSHA512(g.cfg.HashSecret, signData))

	return &Checkout{
		OrderID:    o.BaseID,
		PaymentURL: g.cfg.PayURL + "?" + params.Encode(),
		Amount:     o.Amount,
	}, nil
}

// Verify recomputes the HMAC-SHA512 digest over all parameters except the
// hash fields themselves and compares it against the supplied one. Any
// mismatch rejects the payload with ErrBadSignature. The transmitted amount
// is in minor units and is divided back by 100.
func (g *VNPay) Verify(params url.Values) (*Notification, error) {
	supplied := params.Get("vnp_SecureHash")
	if supplied == "" {
		return nil, ErrBadSignature
	}

	signed := url.Values{}
	for key, vals := range params {
		if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		if len(vals) > 0 {
			signed.Set(key, vals[0])
		}
	}

	expected := hmacSHA512(g.cfg.HashSecret, buildSignData(signed))
	if !hmac.Equal([]byte(strings.ToLower(supplied)), []byte(expected)) {
		return nil, ErrBadSignature
	}

	amount := decimal.Zero
	if raw := params.Get("vnp_Amount"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, errors.Wrap(err, "parse vnp_Amount")
		}
		amount = d.Div(hundredInt)
	}

	code := params.Get("vnp_ResponseCode")
	return &Notification{
		OrderRef:     params.Get("vnp_TxnRef"),
		Success:      code == VNPayCodeSuccess,
		ExternalTxID: params.Get("vnp_TransactionNo"),
		Amount:       amount,
		ResponseCode: code,
	}, nil
}

// buildSignData concatenates the alphabetically sorted parameters into the
// canonical signing string: key=value pairs joined by '&' with
// percent-encoded values.
func buildSignData(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params.Get(k)))
	}
	return b.String()
}

func hmacSHA512(secret, data string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// VNPayReasons maps known gateway response codes to human-readable failure
// reasons shown on the payment result page.
var VNPayReasons = map[string]string{
	"07": "Transaction flagged as suspicious",
	"09": "Card not registered for online banking",
	"10": "Card details verified incorrectly more than 3 times",
	"11": "Checkout session expired",
	"12": "Card or account is locked",
	"13": "Wrong one-time password",
	"24": "Payment cancelled by customer",
	"51": "Insufficient account balance",
	"65": "Daily transaction limit exceeded",
	"75": "Issuing bank is under maintenance",
	"79": "Wrong payment password entered too many times",
}

// VNPayReason resolves a response code to a displayable message, falling back
// to a generic one for unknown codes.
func VNPayReason(code string) string {
	if msg, ok := VNPayReasons[code]; ok {
		return msg
	}
	return "Payment was not completed"
}
