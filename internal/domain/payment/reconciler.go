package payment

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/lamngoc/minimart/internal/domain/coupon"
	"github.com/lamngoc/minimart/internal/domain/order"
	"github.com/lamngoc/minimart/internal/domain/product"
)

// Result reports what a reconciliation trigger actually did. Duplicate
// triggers come back with AlreadyApplied set and no side effects.
type Result struct {
	BaseID         string
	Applied        bool
	AlreadyApplied bool
	Lines          []order.Line
}

// Reconciler applies payment outcomes to orders exactly once, no matter how
// many of the three triggers (async callback, browser return, explicit
// confirm) report the same payment. The claim is a conditional update on the
// pending state, so concurrent triggers race on the database rather than on
// an in-process read-then-write.
type Reconciler struct {
	orders   order.Repository
	products product.Repository
	coupons  *coupon.Ledger
	lg       *zap.Logger
}

// NewReconciler creates a Reconciler with the required collaborators.
func NewReconciler(
	orders order.Repository,
	products product.Repository,
	coupons *coupon.Ledger,
	lg *zap.Logger,
) *Reconciler {
	return &Reconciler{
		orders:   orders,
		products: products,
		coupons:  coupons,
		lg:       lg,
	}
}

// Order loads the lines of a logical order for pre-checks (ownership, amount
// comparison) at the entry points.
func (r *Reconciler) Order(ctx context.Context, baseID string) ([]order.Line, error) {
	lines, err := r.orders.GetByBaseID(ctx, baseID)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	if len(lines) == 0 {
		return nil, order.ErrNotFound
	}
	return lines, nil
}

// MarkPaid transitions a pending order to paid and applies the confirmation
// side effects: the gateway's paid label and transaction reference on every
// line, one stock decrement per line, and the coupon redemption when a code
// was attached. The database claim guarantees at most one trigger wins; the
// losers get a benign AlreadyApplied result.
//
// Stock and coupon bookkeeping run after the claim and outside any shared
// transaction. A failure there is logged and does not fail the confirmation:
// the money has already moved, so reporting failure would only invite
// another retry that can no longer win the claim.
func (r *Reconciler) MarkPaid(ctx context.Context, baseID string, gw Gateway, externalRef string) (*Result, error) {
	lines, err := r.Order(ctx, baseID)
	if err != nil {
		return nil, err
	}

	claimed, err := r.orders.MarkPaid(ctx, baseID, gw.PaidLabel(), externalRef)
	if err != nil {
		return nil, errors.Wrap(err, "mark order paid")
	}
	if claimed == 0 {
		return &Result{BaseID: baseID, AlreadyApplied: true, Lines: lines}, nil
	}

	for _, line := range lines {
		if err := r.products.DecrementStock(ctx, line.ProductID, line.Quantity); err != nil {
			r.lg.Warn("stock decrement after payment confirmation",
				zap.String("order_id", baseID),
				zap.String("product_id", line.ProductID),
				zap.Int("quantity", line.Quantity),
				zap.Error(err),
			)
		}
	}

	head := lines[0]
	if head.CouponCode != "" {
		if err := r.coupons.RecordUsage(ctx, head.CouponCode, head.CustomerID, baseID); err != nil {
			r.lg.Warn("coupon usage recording after payment confirmation",
				zap.String("order_id", baseID),
				zap.String("coupon", head.CouponCode),
				zap.Error(err),
			)
		}
	}

	r.lg.Info("payment confirmed",
		zap.String("order_id", baseID),
		zap.String("gateway", gw.Kind()),
		zap.String("external_ref", externalRef),
		zap.Int64("lines", claimed),
	)

	return &Result{BaseID: baseID, Applied: true, Lines: lines}, nil
}

// MarkFailed transitions a pending order to cancelled with the failed
// payment label. No side effects were applied at creation for gateway
// orders, so none are reverted. Orders that already left the pending state
// are untouched.
func (r *Reconciler) MarkFailed(ctx context.Context, baseID string) (*Result, error) {
	lines, err := r.Order(ctx, baseID)
	if err != nil {
		return nil, err
	}

	changed, err := r.orders.MarkFailed(ctx, baseID)
	if err != nil {
		return nil, errors.Wrap(err, "mark order failed")
	}
	if changed == 0 {
		return &Result{BaseID: baseID, AlreadyApplied: true, Lines: lines}, nil
	}

	r.lg.Info("payment failed",
		zap.String("order_id", baseID),
		zap.Int64("lines", changed),
	)

	return &Result{BaseID: baseID, Applied: true, Lines: lines}, nil
}
