package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the cart total, optionally
	// capped by MaxDiscountAmount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the cart total.
	DiscountFixed DiscountType = "fixed"
)

// Validation failures, ordered the way Validate checks them.
var (
	// ErrNotFound is returned when no coupon exists for the code.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned when the coupon has been deactivated.
	ErrInactive = errors.New("coupon is not active")
	// ErrNotStarted is returned before the coupon's validity window opens.
	ErrNotStarted = errors.New("coupon is not valid yet")
	// ErrExpired is returned after the coupon's validity window closes.
	ErrExpired = errors.New("coupon has expired")
	// ErrUsageLimitReached is returned when the global usage limit is exhausted.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrAlreadyUsed is returned when this customer has already redeemed the coupon.
	ErrAlreadyUsed = errors.New("coupon already used by customer")
	// ErrBelowMinimum is returned when the cart total does not reach the
	// coupon's minimum order amount.
	ErrBelowMinimum = errors.New("order total below coupon minimum")

	// ErrDuplicateUsage is returned by repositories when a usage row already
	// exists for the (coupon, customer) pair. RecordUsage treats it as benign.
	ErrDuplicateUsage = errors.New("coupon usage already recorded")
)

// Coupon is a promotional code with its discount rule and redemption limits.
type Coupon struct {
	ID                int64
	Code              string
	DiscountType      DiscountType
	DiscountValue     decimal.Decimal
	MinOrderAmount    decimal.Decimal
	MaxDiscountAmount decimal.Decimal
	UsageLimit        int
	UsedCount         int
	ValidFrom         *time.Time
	ValidUntil        *time.Time
	Active            bool
}

// Usage records one redemption. Its existence for a (coupon, customer) pair
// is the per-customer single-use gate, independent of UsedCount.
type Usage struct {
	CouponID   int64
	CustomerID string
	OrderID    string
	UsedAt     time.Time
}

// Repository provides lookup and redemption bookkeeping for coupons.
type Repository interface {
	// FindByCode looks up a coupon by its normalized (upper-case) code.
	// Returns ErrNotFound when no such coupon exists.
	FindByCode(ctx context.Context, code string) (*Coupon, error)

	// HasUsage reports whether a usage row exists for the pair.
	HasUsage(ctx context.Context, couponID int64, customerID string) (bool, error)

	// InsertUsage records a redemption. Returns ErrDuplicateUsage when the
	// unique (coupon_id, customer_id) constraint rejects the insert.
	InsertUsage(ctx context.Context, u Usage) error

	// IncrementUsedCount bumps used_count by one, conditional on the usage
	// limit not being exhausted.
	IncrementUsedCount(ctx context.Context, couponID int64) error
}
