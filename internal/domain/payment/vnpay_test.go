package payment

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVNPay() *VNPay {
	g := NewVNPay(VNPayConfig{
		TmnCode:    "TESTTMN1",
		HashSecret: "test-secret",
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://shop.example.com/payments/vnpay/return",
	})
	g.now = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	return g
}

// signedParams produces a gateway payload signed with the test secret.
func signedParams(overrides map[string]string) url.Values {
	params := url.Values{}
	params.Set("vnp_TmnCode", "TESTTMN1")
	params.Set("vnp_TxnRef", "ORD-ABC123-XY9ZQ")
	params.Set("vnp_Amount", "18500000")
	params.Set("vnp_ResponseCode", "00")
	params.Set("vnp_TransactionNo", "14226112")
	params.Set("vnp_BankCode", "NCB")
	params.Set("vnp_PayDate", "20260301120500")
	for k, v := range overrides {
		params.Set(k, v)
	}
	params.Set("vnp_SecureHash", hmacSHA512("test-secret", buildSignData(params)))
	return params
}

func TestVNPay_Initiate(t *testing.T) {
	g := newTestVNPay()

	co, err := g.Initiate(context.Background(), CheckoutOrder{
		BaseID:      "ORD-ABC123-XY9ZQ",
		CustomerID:  "cust-1",
		Amount:      decimal.NewFromInt(185000),
		Description: "Order ORD-ABC123-XY9ZQ",
		ClientIP:    "203.0.113.7",
	})

	require.NoError(t, err)
	assert.Equal(t, "ORD-ABC123-XY9ZQ", co.OrderID)

	u, err := url.Parse(co.PaymentURL)
	require.NoError(t, err)
	q := u.Query()

	// Amount travels in minor units.
	assert.Equal(t, "18500000", q.Get("vnp_Amount"))
	assert.Equal(t, "VND", q.Get("vnp_CurrCode"))
	assert.Equal(t, "ORD-ABC123-XY9ZQ", q.Get("vnp_TxnRef"))
	assert.Equal(t, "2.1.0", q.Get("vnp_Version"))
	assert.Equal(t, "20260301120000", q.Get("vnp_CreateDate"))
	assert.Equal(t, "20260301121500", q.Get("vnp_ExpireDate"))
	assert.NotEmpty(t, q.Get("vnp_SecureHash"))

	// The URL itself must verify: the gateway echoes these parameters back.
	notif, err := g.Verify(q)
	require.NoError(t, err)
	assert.Equal(t, "ORD-ABC123-XY9ZQ", notif.OrderRef)
	assert.True(t, decimal.NewFromInt(185000).Equal(notif.Amount))
}

func TestVNPay_Initiate_NonPositiveAmount(t *testing.T) {
	g := newTestVNPay()

	_, err := g.Initiate(context.Background(), CheckoutOrder{
		BaseID: "ORD-ABC123-XY9ZQ",
		Amount: decimal.Zero,
	})
	require.Error(t, err)
}

func TestVNPay_Verify_Success(t *testing.T) {
	g := newTestVNPay()

	notif, err := g.Verify(signedParams(nil))

	require.NoError(t, err)
	assert.True(t, notif.Success)
	assert.Equal(t, "ORD-ABC123-XY9ZQ", notif.OrderRef)
	assert.Equal(t, "14226112", notif.ExternalTxID)
	assert.Equal(t, "00", notif.ResponseCode)
	assert.True(t, decimal.NewFromInt(185000).Equal(notif.Amount))
}

func TestVNPay_Verify_FailureCode(t *testing.T) {
	g := newTestVNPay()

	notif, err := g.Verify(signedParams(map[string]string{"vnp_ResponseCode": "24"}))

	require.NoError(t, err)
	assert.False(t, notif.Success)
	assert.Equal(t, "24", notif.ResponseCode)
}

func TestVNPay_Verify_TamperedAmount(t *testing.T) {
	g := newTestVNPay()

	params := signedParams(nil)
	params.Set("vnp_Amount", "100")

	_, err := g.Verify(params)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestVNPay_Verify_MissingHash(t *testing.T) {
	g := newTestVNPay()

	params := signedParams(nil)
	params.Del("vnp_SecureHash")

	_, err := g.Verify(params)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestVNPay_Verify_WrongSecret(t *testing.T) {
	g := NewVNPay(VNPayConfig{TmnCode: "TESTTMN1", HashSecret: "other-secret"})

	_, err := g.Verify(signedParams(nil))
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestVNPay_Verify_UppercaseHashAccepted(t *testing.T) {
	g := newTestVNPay()

	params := signedParams(nil)
	params.Set("vnp_SecureHash", strings.ToUpper(params.Get("vnp_SecureHash")))

	notif, err := g.Verify(params)
	require.NoError(t, err)
	assert.True(t, notif.Success)
}

func TestVNPay_Verify_IgnoresHashTypeField(t *testing.T) {
	g := newTestVNPay()

	// vnp_SecureHashType is excluded from signing, so adding it after the
	// fact must not break verification.
	params := signedParams(nil)
	params.Set("vnp_SecureHashType", "HMACSHA512")

	_, err := g.Verify(params)
	require.NoError(t, err)
}

func TestBuildSignData_SortedAndEscaped(t *testing.T) {
	params := url.Values{}
	params.Set("b", "two words")
	params.Set("a", "1")
	params.Set("c", "x&y")

	assert.Equal(t, "a=1&b=two+words&c=x%26y", buildSignData(params))
}

func TestVNPayReason(t *testing.T) {
	assert.Equal(t, "Payment cancelled by customer", VNPayReason("24"))
	assert.Equal(t, "Insufficient account balance", VNPayReason("51"))
	assert.Equal(t, "Payment was not completed", VNPayReason("42"))
}
