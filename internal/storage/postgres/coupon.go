package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lamngoc/minimart/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT id, code, discount_type, discount_value, min_order_amount,
		max_discount_amount, usage_limit, used_count, valid_from, valid_until, active
		FROM coupons WHERE code = UPPER($1)`

	hasCouponUsageSQL = `SELECT EXISTS (
		SELECT 1 FROM coupon_usages WHERE coupon_id = $1 AND customer_id = $2)`

	insertCouponUsageSQL = `INSERT INTO coupon_usages (coupon_id, customer_id, order_id, used_at)
		VALUES ($1, $2, $3, $4)`

	incrementUsedCountSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE id = $1 AND (usage_limit = 0 OR used_count < usage_limit)`
)

// uniqueViolation is the PostgreSQL error code for unique constraint failures.
const uniqueViolation = "23505"

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (normalized upper-case in SQL).
// Returns coupon.ErrNotFound when no such coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}
	return &c, nil
}

// HasUsage reports whether the customer has a redemption row for the coupon.
func (r *CouponRepository) HasUsage(ctx context.Context, couponID int64, customerID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, hasCouponUsageSQL, couponID, customerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking usage of coupon %d: %w", couponID, err)
	}
	return exists, nil
}

// InsertUsage records a redemption. The unique (coupon_id, customer_id)
// primary key turns duplicate inserts into coupon.ErrDuplicateUsage.
func (r *CouponRepository) InsertUsage(ctx context.Context, u coupon.Usage) error {
	_, err := r.pool.Exec(ctx, insertCouponUsageSQL, u.CouponID, u.CustomerID, u.OrderID, u.UsedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return coupon.ErrDuplicateUsage
		}
		return fmt.Errorf("inserting usage of coupon %d: %w", u.CouponID, err)
	}
	return nil
}

// IncrementUsedCount bumps used_count, conditional on the usage limit.
func (r *CouponRepository) IncrementUsedCount(ctx context.Context, couponID int64) error {
	_, err := r.pool.Exec(ctx, incrementUsedCountSQL, couponID)
	if err != nil {
		return fmt.Errorf("incrementing used count of coupon %d: %w", couponID, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c             coupon.Coupon
		discountType  string
		discountValue decimal.Decimal
		minOrder      decimal.Decimal
		maxDiscount   decimal.Decimal
		validFrom     *time.Time
		validUntil    *time.Time
	)
	err := row.Scan(
		&c.ID, &c.Code, &discountType, &discountValue, &minOrder,
		&maxDiscount, &c.UsageLimit, &c.UsedCount, &validFrom, &validUntil, &c.Active,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	c.DiscountValue = discountValue
	c.MinOrderAmount = minOrder
	c.MaxDiscountAmount = maxDiscount
	c.ValidFrom = validFrom
	c.ValidUntil = validUntil
	return c, err
}
