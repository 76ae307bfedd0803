package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lamngoc/minimart/internal/domain/order"
)

const (
	orderLineColumns = `id, base_order_id, customer_id, product_id, product_name, product_image,
		quantity, unit_price, line_subtotal, order_total,
		payment_method, payment_status, payment_ref, order_status,
		address_name, address_phone, address_street, address_city,
		coupon_code, discount_amount,
		cancel_reason, cancelled_at, refund_status, refund_bank, refund_account, refund_holder,
		created_at`

	insertOrderLineSQL = `INSERT INTO order_lines (` + orderLineColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)`

	getOrderLinesByBaseSQL = `SELECT ` + orderLineColumns + `
		FROM order_lines WHERE base_order_id = $1 ORDER BY id`

	listOrderLinesByCustomerSQL = `SELECT ` + orderLineColumns + `
		FROM order_lines WHERE customer_id = $1 ORDER BY created_at DESC, id`

	listAllOrderLinesSQL = `SELECT ` + orderLineColumns + `
		FROM order_lines ORDER BY created_at DESC, id`

	markOrderPaidSQL = `UPDATE order_lines
		SET payment_status = $2, payment_ref = $3, order_status = 'paid'
		WHERE base_order_id = $1 AND order_status = 'pending'`

	markOrderFailedSQL = `UPDATE order_lines
		SET payment_status = $2, order_status = 'cancelled'
		WHERE base_order_id = $1 AND order_status = 'pending'`

	cancelOrderSQL = `UPDATE order_lines
		SET order_status = 'cancelled', cancel_reason = $2, cancelled_at = $3,
			refund_status = $4, refund_bank = $5, refund_account = $6, refund_holder = $7
		WHERE base_order_id = $1`

	updateOrderStatusSQL = `UPDATE order_lines SET order_status = $2 WHERE base_order_id = $1`

	updateRefundStatusSQL = `UPDATE order_lines SET refund_status = $2 WHERE base_order_id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Every
// mutation keyed by base_order_id touches the full line set of the logical
// order, keeping the set internally consistent.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateLines bulk-inserts all lines of a new order in one transaction.
func (r *OrderRepository) CreateLines(ctx context.Context, lines []order.Line) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create order: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, l := range lines {
		_, err := tx.Exec(ctx, insertOrderLineSQL,
			l.ID, l.BaseOrderID, l.CustomerID, l.ProductID, l.ProductName, l.ProductImage,
			l.Quantity, l.UnitPrice, l.LineSubtotal, l.OrderTotal,
			l.PaymentMethod, l.PaymentStatus, l.PaymentRef, string(l.OrderStatus),
			l.Address.Name, l.Address.Phone, l.Address.Street, l.Address.City,
			l.CouponCode, l.DiscountAmount,
			l.CancelReason, l.CancelledAt, string(l.RefundStatus),
			l.RefundInfo.Bank, l.RefundInfo.Account, l.RefundInfo.Holder,
			l.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting order line %q: %w", l.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}
	return nil
}

// GetByBaseID returns all lines of a logical order, ordered by line id.
func (r *OrderRepository) GetByBaseID(ctx context.Context, baseID string) ([]order.Line, error) {
	rows, err := r.pool.Query(ctx, getOrderLinesByBaseSQL, baseID)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", baseID, err)
	}
	return pgx.CollectRows(rows, scanOrderLine)
}

// ListByCustomer returns all lines belonging to a customer, newest first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]order.Line, error) {
	rows, err := r.pool.Query(ctx, listOrderLinesByCustomerSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for customer %q: %w", customerID, err)
	}
	return pgx.CollectRows(rows, scanOrderLine)
}

// ListAll returns every order line, newest first.
func (r *OrderRepository) ListAll(ctx context.Context) ([]order.Line, error) {
	rows, err := r.pool.Query(ctx, listAllOrderLinesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing all orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrderLine)
}

// MarkPaid claims all still-pending lines of the order in one conditional
// update. Concurrent triggers race on this statement; only one sees a
// non-zero row count.
func (r *OrderRepository) MarkPaid(ctx context.Context, baseID, paymentStatus, paymentRef string) (int64, error) {
	tag, err := r.pool.Exec(ctx, markOrderPaidSQL, baseID, paymentStatus, paymentRef)
	if err != nil {
		return 0, fmt.Errorf("marking order %q paid: %w", baseID, err)
	}
	return tag.RowsAffected(), nil
}

// MarkFailed moves still-pending lines to cancelled with the failed payment
// label.
func (r *OrderRepository) MarkFailed(ctx context.Context, baseID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, markOrderFailedSQL, baseID, order.PaymentStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("marking order %q failed: %w", baseID, err)
	}
	return tag.RowsAffected(), nil
}

// Cancel applies a cancellation to every line of the order.
func (r *OrderRepository) Cancel(ctx context.Context, baseID string, c order.Cancellation) error {
	_, err := r.pool.Exec(ctx, cancelOrderSQL, baseID,
		c.Reason, c.At, string(c.RefundStatus),
		c.RefundInfo.Bank, c.RefundInfo.Account, c.RefundInfo.Holder,
	)
	if err != nil {
		return fmt.Errorf("cancelling order %q: %w", baseID, err)
	}
	return nil
}

// UpdateStatus sets the order status on every line of the order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, baseID string, status order.Status) error {
	_, err := r.pool.Exec(ctx, updateOrderStatusSQL, baseID, string(status))
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", baseID, err)
	}
	return nil
}

// UpdateRefundStatus sets the refund status on every line of the order.
func (r *OrderRepository) UpdateRefundStatus(ctx context.Context, baseID string, status order.RefundStatus) error {
	_, err := r.pool.Exec(ctx, updateRefundStatusSQL, baseID, string(status))
	if err != nil {
		return fmt.Errorf("updating refund status of order %q: %w", baseID, err)
	}
	return nil
}

func scanOrderLine(row pgx.CollectableRow) (order.Line, error) {
	var (
		l            order.Line
		orderStatus  string
		refundStatus string
		cancelledAt  *time.Time
	)
	err := row.Scan(
		&l.ID, &l.BaseOrderID, &l.CustomerID, &l.ProductID, &l.ProductName, &l.ProductImage,
		&l.Quantity, &l.UnitPrice, &l.LineSubtotal, &l.OrderTotal,
		&l.PaymentMethod, &l.PaymentStatus, &l.PaymentRef, &orderStatus,
		&l.Address.Name, &l.Address.Phone, &l.Address.Street, &l.Address.City,
		&l.CouponCode, &l.DiscountAmount,
		&l.CancelReason, &cancelledAt, &refundStatus,
		&l.RefundInfo.Bank, &l.RefundInfo.Account, &l.RefundInfo.Holder,
		&l.CreatedAt,
	)
	l.OrderStatus = order.Status(orderStatus)
	l.RefundStatus = order.RefundStatus(refundStatus)
	l.CancelledAt = cancelledAt
	return l, err
}
