package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lamngoc/minimart/internal/domain/cart"
)

const (
	getCartSQL = `SELECT product_id, quantity FROM cart_items
		WHERE customer_id = $1 ORDER BY added_at`

	clearCartSQL = `DELETE FROM cart_items WHERE customer_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the customer's current cart lines in insertion order.
func (r *CartRepository) Get(ctx context.Context, customerID string) ([]cart.Line, error) {
	rows, err := r.pool.Query(ctx, getCartSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("getting cart of %q: %w", customerID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Line, error) {
		var l cart.Line
		err := row.Scan(&l.ProductID, &l.Quantity)
		return l, err
	})
}

// Clear removes every cart line of the customer.
func (r *CartRepository) Clear(ctx context.Context, customerID string) error {
	_, err := r.pool.Exec(ctx, clearCartSQL, customerID)
	if err != nil {
		return fmt.Errorf("clearing cart of %q: %w", customerID, err)
	}
	return nil
}
