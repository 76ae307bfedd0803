package cart

import "context"

// Line is a single product entry in a customer's cart.
type Line struct {
	ProductID string
	Quantity  int
}

// Repository exposes the two operations the checkout core performs on carts:
// read the snapshot once at order creation, then clear it. Cart editing is
// owned by the storefront, not this service.
type Repository interface {
	Get(ctx context.Context, customerID string) ([]Line, error)
	Clear(ctx context.Context, customerID string) error
}
