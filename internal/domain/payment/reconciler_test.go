package payment

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lamngoc/minimart/internal/domain/coupon"
	"github.com/lamngoc/minimart/internal/domain/order"
	"github.com/lamngoc/minimart/internal/domain/product"
)

type mockOrderRepo struct {
	lines  []order.Line
	getErr error

	markPaidErr error
	paidStatus  string
	paidRef     string
}

func (m *mockOrderRepo) CreateLines(_ context.Context, lines []order.Line) error {
	m.lines = append(m.lines, lines...)
	return nil
}

func (m *mockOrderRepo) GetByBaseID(_ context.Context, baseID string) ([]order.Line, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []order.Line
	for _, l := range m.lines {
		if l.BaseOrderID == baseID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) ListByCustomer(_ context.Context, _ string) ([]order.Line, error) {
	return m.lines, nil
}

func (m *mockOrderRepo) ListAll(_ context.Context) ([]order.Line, error) {
	return m.lines, nil
}

func (m *mockOrderRepo) MarkPaid(_ context.Context, baseID, paymentStatus, paymentRef string) (int64, error) {
	if m.markPaidErr != nil {
		return 0, m.markPaidErr
	}
	var n int64
	for i := range m.lines {
		if m.lines[i].BaseOrderID == baseID && m.lines[i].OrderStatus == order.StatusPending {
			m.lines[i].OrderStatus = order.StatusPaid
			m.lines[i].PaymentStatus = paymentStatus
			m.lines[i].PaymentRef = paymentRef
			n++
		}
	}
	m.paidStatus = paymentStatus
	m.paidRef = paymentRef
	return n, nil
}

func (m *mockOrderRepo) MarkFailed(_ context.Context, baseID string) (int64, error) {
	var n int64
	for i := range m.lines {
		if m.lines[i].BaseOrderID == baseID && m.lines[i].OrderStatus == order.StatusPending {
			m.lines[i].OrderStatus = order.StatusCancelled
			m.lines[i].PaymentStatus = order.PaymentStatusFailed
			n++
		}
	}
	return n, nil
}

func (m *mockOrderRepo) Cancel(_ context.Context, _ string, _ order.Cancellation) error { return nil }

func (m *mockOrderRepo) UpdateStatus(_ context.Context, _ string, _ order.Status) error { return nil }

func (m *mockOrderRepo) UpdateRefundStatus(_ context.Context, _ string, _ order.RefundStatus) error {
	return nil
}

type mockProductRepo struct {
	decremented  map[string]int
	decrementErr error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) { return nil, nil }

func (m *mockProductRepo) GetByID(_ context.Context, _ string) (*product.Product, error) {
	return nil, product.ErrNotFound
}

func (m *mockProductRepo) GetByIDs(_ context.Context, _ []string) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) DecrementStock(_ context.Context, id string, qty int) error {
	if m.decrementErr != nil {
		return m.decrementErr
	}
	if m.decremented == nil {
		m.decremented = make(map[string]int)
	}
	m.decremented[id] += qty
	return nil
}

type mockCouponRepo struct {
	coupon    *coupon.Coupon
	usages    []coupon.Usage
	insertErr error
}

func (m *mockCouponRepo) FindByCode(_ context.Context, _ string) (*coupon.Coupon, error) {
	if m.coupon == nil {
		return nil, coupon.ErrNotFound
	}
	return m.coupon, nil
}

func (m *mockCouponRepo) HasUsage(_ context.Context, _ int64, _ string) (bool, error) {
	return false, nil
}

func (m *mockCouponRepo) InsertUsage(_ context.Context, u coupon.Usage) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.usages = append(m.usages, u)
	return nil
}

func (m *mockCouponRepo) IncrementUsedCount(_ context.Context, _ int64) error { return nil }

func pendingLines(baseID, couponCode string) []order.Line {
	return []order.Line{
		{
			ID:            baseID + "-1",
			BaseOrderID:   baseID,
			CustomerID:    "cust-1",
			ProductID:     "p1",
			Quantity:      2,
			OrderTotal:    decimal.NewFromInt(335000),
			PaymentMethod: order.MethodVNPay,
			PaymentStatus: "Awaiting Payment",
			OrderStatus:   order.StatusPending,
			CouponCode:    couponCode,
			CreatedAt:     time.Now(),
		},
		{
			ID:            baseID + "-2",
			BaseOrderID:   baseID,
			CustomerID:    "cust-1",
			ProductID:     "p2",
			Quantity:      1,
			OrderTotal:    decimal.NewFromInt(335000),
			PaymentMethod: order.MethodVNPay,
			PaymentStatus: "Awaiting Payment",
			OrderStatus:   order.StatusPending,
			CouponCode:    couponCode,
			CreatedAt:     time.Now(),
		},
	}
}

func newTestReconciler(t *testing.T, orders *mockOrderRepo, products *mockProductRepo, coupons *mockCouponRepo) *Reconciler {
	t.Helper()
	if coupons == nil {
		coupons = &mockCouponRepo{}
	}
	return NewReconciler(orders, products, coupon.NewLedger(coupons), zaptest.NewLogger(t))
}

func TestReconciler_MarkPaid(t *testing.T) {
	orders := &mockOrderRepo{lines: pendingLines("ORD-A-B", "")}
	products := &mockProductRepo{}
	rec := newTestReconciler(t, orders, products, nil)

	res, err := rec.MarkPaid(context.Background(), "ORD-A-B", newTestVNPay(), "14226112")

	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.False(t, res.AlreadyApplied)
	assert.Equal(t, "Paid via VNPay", orders.paidStatus)
	assert.Equal(t, "14226112", orders.paidRef)
	assert.Equal(t, 2, products.decremented["p1"])
	assert.Equal(t, 1, products.decremented["p2"])
}

func TestReconciler_MarkPaid_SecondTriggerIsNoOp(t *testing.T) {
	orders := &mockOrderRepo{lines: pendingLines("ORD-A-B", "")}
	products := &mockProductRepo{}
	rec := newTestReconciler(t, orders, products, nil)

	_, err := rec.MarkPaid(context.Background(), "ORD-A-B", newTestVNPay(), "14226112")
	require.NoError(t, err)

	res, err := rec.MarkPaid(context.Background(), "ORD-A-B", newTestVNPay(), "14226112")
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.True(t, res.AlreadyApplied)

	// Stock came off exactly once.
	assert.Equal(t, 2, products.decremented["p1"])
	assert.Equal(t, 1, products.decremented["p2"])
}

func TestReconciler_MarkPaid_RecordsCouponUsage(t *testing.T) {
	orders := &mockOrderRepo{lines: pendingLines("ORD-A-B", "SALE10")}
	coupons := &mockCouponRepo{coupon: &coupon.Coupon{
		ID:            7,
		Code:          "SALE10",
		DiscountType:  coupon.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		Active:        true,
	}}
	rec := newTestReconciler(t, orders, &mockProductRepo{}, coupons)

	_, err := rec.MarkPaid(context.Background(), "ORD-A-B", newTestVNPay(), "14226112")

	require.NoError(t, err)
	require.Len(t, coupons.usages, 1)
	assert.Equal(t, int64(7), coupons.usages[0].CouponID)
	assert.Equal(t, "cust-1", coupons.usages[0].CustomerID)
	assert.Equal(t, "ORD-A-B", coupons.usages[0].OrderID)
}

func TestReconciler_MarkPaid_StockFailureDoesNotFailConfirmation(t *testing.T) {
	orders := &mockOrderRepo{lines: pendingLines("ORD-A-B", "")}
	products := &mockProductRepo{decrementErr: product.ErrInsufficientStock}
	rec := newTestReconciler(t, orders, products, nil)

	res, err := rec.MarkPaid(context.Background(), "ORD-A-B", newTestVNPay(), "14226112")

	require.NoError(t, err)
	assert.True(t, res.Applied)
}

func TestReconciler_MarkPaid_CouponFailureDoesNotFailConfirmation(t *testing.T) {
	orders := &mockOrderRepo{lines: pendingLines("ORD-A-B", "SALE10")}
	coupons := &mockCouponRepo{
		coupon:    &coupon.Coupon{ID: 7, Code: "SALE10", Active: true},
		insertErr: errors.New("db down"),
	}
	rec := newTestReconciler(t, orders, &mockProductRepo{}, coupons)

	res, err := rec.MarkPaid(context.Background(), "ORD-A-B", newTestVNPay(), "14226112")

	require.NoError(t, err)
	assert.True(t, res.Applied)
}

func TestReconciler_MarkPaid_OrderNotFound(t *testing.T) {
	rec := newTestReconciler(t, &mockOrderRepo{}, &mockProductRepo{}, nil)

	_, err := rec.MarkPaid(context.Background(), "ORD-MISSING-X", newTestVNPay(), "14226112")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestReconciler_MarkFailed(t *testing.T) {
	orders := &mockOrderRepo{lines: pendingLines("ORD-A-B", "")}
	products := &mockProductRepo{}
	rec := newTestReconciler(t, orders, products, nil)

	res, err := rec.MarkFailed(context.Background(), "ORD-A-B")

	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, order.StatusCancelled, orders.lines[0].OrderStatus)
	assert.Equal(t, order.PaymentStatusFailed, orders.lines[0].PaymentStatus)
	assert.Empty(t, products.decremented)
}

func TestReconciler_MarkFailed_AfterPaidIsNoOp(t *testing.T) {
	orders := &mockOrderRepo{lines: pendingLines("ORD-A-B", "")}
	rec := newTestReconciler(t, orders, &mockProductRepo{}, nil)

	_, err := rec.MarkPaid(context.Background(), "ORD-A-B", newTestVNPay(), "14226112")
	require.NoError(t, err)

	res, err := rec.MarkFailed(context.Background(), "ORD-A-B")
	require.NoError(t, err)
	assert.True(t, res.AlreadyApplied)
	assert.Equal(t, order.StatusPaid, orders.lines[0].OrderStatus)
}

func TestReconciler_Order(t *testing.T) {
	orders := &mockOrderRepo{lines: pendingLines("ORD-A-B", "")}
	rec := newTestReconciler(t, orders, &mockProductRepo{}, nil)

	lines, err := rec.Order(context.Background(), "ORD-A-B")
	require.NoError(t, err)
	assert.Len(t, lines, 2)

	_, err = rec.Order(context.Background(), "ORD-NOPE-X")
	require.ErrorIs(t, err, order.ErrNotFound)
}
