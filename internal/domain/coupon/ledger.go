package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Breakdown is the result of a successful validation: the matched coupon and
// the discount it yields for the given cart total.
type Breakdown struct {
	Coupon         *Coupon
	DiscountAmount decimal.Decimal
}

// Ledger validates promotional codes, prices their discounts, and enforces
// one redemption per customer.
type Ledger struct {
	repo Repository
	now  func() time.Time
}

// NewLedger creates a Ledger backed by the given Repository.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo, now: time.Now}
}

// Normalize canonicalizes a coupon code for lookup and storage.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks a code for the given customer and cart total. Failures are
// evaluated in a fixed order: not found, inactive, not started, expired,
// usage limit, already used by this customer, below minimum order. The
// per-customer gate is the existence of a Usage row, not UsedCount.
func (l *Ledger) Validate(ctx context.Context, code, customerID string, cartTotal decimal.Decimal) (*Breakdown, error) {
	c, err := l.repo.FindByCode(ctx, Normalize(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if !c.Active {
		return nil, ErrInactive
	}

	now := l.now()
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return nil, ErrNotStarted
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return nil, ErrExpired
	}

	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return nil, ErrUsageLimitReached
	}

	used, err := l.repo.HasUsage(ctx, c.ID, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "check coupon usage")
	}
	if used {
		return nil, ErrAlreadyUsed
	}

	if cartTotal.LessThan(c.MinOrderAmount) {
		return nil, ErrBelowMinimum
	}

	return &Breakdown{
		Coupon:         c,
		DiscountAmount: ComputeDiscount(c, cartTotal),
	}, nil
}

// ComputeDiscount prices the coupon against a cart total. Percentage coupons
// take round(total * value / 100), clamped to MaxDiscountAmount when the cap
// is positive. Fixed coupons take the value as-is. The result never goes
// negative and never exceeds the cart total.
func ComputeDiscount(c *Coupon, cartTotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		amount = cartTotal.Mul(c.DiscountValue).Div(hundred).Round(2)
		if c.MaxDiscountAmount.IsPositive() && amount.GreaterThan(c.MaxDiscountAmount) {
			amount = c.MaxDiscountAmount
		}
	case DiscountFixed:
		amount = c.DiscountValue
	default:
		return decimal.Zero
	}

	if amount.GreaterThan(cartTotal) {
		amount = cartTotal
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// RecordUsage registers a redemption after a confirmed payment. The insert is
// guarded by the unique (coupon_id, customer_id) constraint: a duplicate is a
// benign no-op so that retried payment confirmations never fail here. The
// global used_count is only bumped when the insert actually lands.
func (l *Ledger) RecordUsage(ctx context.Context, code, customerID, orderID string) error {
	c, err := l.repo.FindByCode(ctx, Normalize(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "lookup coupon")
	}

	err = l.repo.InsertUsage(ctx, Usage{
		CouponID:   c.ID,
		CustomerID: customerID,
		OrderID:    orderID,
		UsedAt:     l.now(),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateUsage) {
			return nil
		}
		return errors.Wrap(err, "insert coupon usage")
	}

	if err := l.repo.IncrementUsedCount(ctx, c.ID); err != nil {
		return errors.Wrap(err, "increment used count")
	}
	return nil
}
