package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for catalog lookups and stock mutation.
var (
	// ErrNotFound is returned when a product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInsufficientStock is returned when a stock decrement would drop
	// below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Product is the catalog view the checkout core depends on. Catalog CRUD
// lives outside this service; orders only read products and adjust stock.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Image    string
	Category string
	Stock    int
}

// Repository provides catalog reads and the single stock mutation the
// payment flow needs.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)

	// DecrementStock subtracts qty from the product's stock. The decrement is
	// conditional: it succeeds only while stock >= qty, otherwise it returns
	// ErrInsufficientStock and leaves the row untouched.
	DecrementStock(ctx context.Context, id string, qty int) error
}
