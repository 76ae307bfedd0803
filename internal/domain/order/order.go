package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status enumerates the order lifecycle states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// RefundStatus tracks the refund lifecycle of a cancelled electronic payment.
type RefundStatus string

const (
	RefundNone     RefundStatus = "none"
	RefundPending  RefundStatus = "pending_refund"
	RefundRefunded RefundStatus = "refunded"
)

// Payment status labels stored on order lines. Free-text by historical
// contract with clients; the set here is the full vocabulary the service writes.
const (
	PaymentStatusCOD    = "Cash On Delivery"
	PaymentStatusFailed = "Payment Failed"
)

// Sentinel errors for order operations.
var (
	// ErrNotFound is returned when no lines exist for an order id.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyCart is returned when order creation receives no items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrMissingAddress is returned when the delivery address is incomplete.
	ErrMissingAddress = errors.New("delivery address is required")
	// ErrCancelNotAllowed is returned when cancellation is requested outside
	// the pending/paid states.
	ErrCancelNotAllowed = errors.New("order can no longer be cancelled")
	// ErrRefundInfoRequired is returned when an electronically paid order is
	// cancelled without refund bank details.
	ErrRefundInfoRequired = errors.New("refund bank details are required")
	// ErrRefundNotPending is returned when completing a refund that is not in
	// the pending_refund state.
	ErrRefundNotPending = errors.New("no pending refund for order")
	// ErrInvalidTransition is returned for illegal fulfillment status changes.
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Address is the delivery address snapshot stored on every line.
type Address struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Street string `json:"street"`
	City   string `json:"city"`
}

// RefundInfo holds the bank details collected when cancelling an
// electronically paid order.
type RefundInfo struct {
	Bank    string `json:"bank"`
	Account string `json:"account"`
	Holder  string `json:"holder"`
}

// Line is one product's persisted record within a logical order. All lines
// sharing BaseOrderID carry identical totals, address, and statuses; they are
// always mutated as a set.
type Line struct {
	ID             string
	BaseOrderID    string
	CustomerID     string
	ProductID      string
	ProductName    string
	ProductImage   string
	Quantity       int
	UnitPrice      decimal.Decimal
	LineSubtotal   decimal.Decimal
	OrderTotal     decimal.Decimal
	PaymentMethod  string
	PaymentStatus  string
	PaymentRef     string
	OrderStatus    Status
	Address        Address
	CouponCode     string
	DiscountAmount decimal.Decimal
	CancelReason   string
	CancelledAt    *time.Time
	RefundStatus   RefundStatus
	RefundInfo     RefundInfo
	CreatedAt      time.Time
}

// Cancellation carries the full mutation applied when an order is cancelled.
type Cancellation struct {
	Reason       string
	At           time.Time
	RefundStatus RefundStatus
	RefundInfo   RefundInfo
}

// Repository defines persistence operations for order lines. Mutations that
// take a baseID act on every line of the logical order at once.
type Repository interface {
	CreateLines(ctx context.Context, lines []Line) error
	GetByBaseID(ctx context.Context, baseID string) ([]Line, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Line, error)
	ListAll(ctx context.Context) ([]Line, error)

	// MarkPaid conditionally claims all pending lines of the order:
	// UPDATE ... WHERE base_order_id = $1 AND order_status = 'pending'.
	// It reports the number of lines claimed; zero means another trigger
	// already won (or the order does not exist).
	MarkPaid(ctx context.Context, baseID, paymentStatus, paymentRef string) (int64, error)

	// MarkFailed moves pending lines to cancelled with the failed payment
	// label, reporting how many lines changed.
	MarkFailed(ctx context.Context, baseID string) (int64, error)

	Cancel(ctx context.Context, baseID string, c Cancellation) error
	UpdateStatus(ctx context.Context, baseID string, status Status) error
	UpdateRefundStatus(ctx context.Context, baseID string, status RefundStatus) error
}

// Valid reports whether the address has the fields order creation requires.
func (a Address) Valid() bool {
	return a.Name != "" && a.Street != ""
}

// Complete reports whether the refund details are fully filled in.
func (r RefundInfo) Complete() bool {
	return r.Bank != "" && r.Account != "" && r.Holder != ""
}
