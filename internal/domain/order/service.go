package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lamngoc/minimart/internal/domain/cart"
	"github.com/lamngoc/minimart/internal/domain/coupon"
	"github.com/lamngoc/minimart/internal/domain/product"
)

// Payment methods accepted at order creation. These double as gateway
// registry keys in the payment package.
const (
	MethodCOD        = "cod"
	MethodSSLCommerz = "sslcommerz"
	MethodVNPay      = "vnpay"
)

// UnknownMethodError indicates an unsupported payment method.
type UnknownMethodError struct {
	Method string
}

func (e *UnknownMethodError) Error() string {
	return "unknown payment method: " + e.Method
}

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return "product " + e.ProductID + " not found"
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return "quantity must be greater than 0 for product " + e.ProductID
}

// Item is one product entry of the cart snapshot submitted at checkout.
type Item struct {
	ProductID string
	Quantity  int
}

// CreateRequest holds the input for creating an order from a cart snapshot.
type CreateRequest struct {
	CustomerID    string
	Items         []Item
	Address       Address
	PaymentMethod string
	CouponCode    string
}

// CreateResult holds the persisted lines of a freshly created order.
type CreateResult struct {
	BaseID string
	Lines  []Line
}

// Service implements order creation, cancellation, refund closure, and
// fulfillment status updates.
type Service struct {
	orders   Repository
	products product.Repository
	carts    cart.Repository
	coupons  *coupon.Ledger
	lg       *zap.Logger
	now      func() time.Time
}

// NewService creates an order Service with the required collaborators.
func NewService(
	orders Repository,
	products product.Repository,
	carts cart.Repository,
	coupons *coupon.Ledger,
	lg *zap.Logger,
) *Service {
	return &Service{
		orders:   orders,
		products: products,
		carts:    carts,
		coupons:  coupons,
		lg:       lg,
		now:      time.Now,
	}
}

// Create persists one order line per cart item under a fresh base order id,
// prices the order from catalog data, applies an optional coupon, and clears
// the customer's cart. When the request carries no item snapshot the stored
// cart is read instead; either way the cart is consumed exactly once. COD
// orders decrement stock immediately since no asynchronous confirmation will
// ever arrive; gateway orders leave stock untouched until the payment is
// confirmed, so abandoned checkouts never reserve inventory.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if len(req.Items) == 0 {
		stored, err := s.carts.Get(ctx, req.CustomerID)
		if err != nil {
			return nil, errors.Wrap(err, "read cart")
		}
		for _, l := range stored {
			req.Items = append(req.Items, Item{ProductID: l.ProductID, Quantity: l.Quantity})
		}
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if !req.Address.Valid() {
		return nil, ErrMissingAddress
	}

	var initialPaymentStatus string
	switch req.PaymentMethod {
	case MethodCOD:
		initialPaymentStatus = PaymentStatusCOD
	case MethodSSLCommerz, MethodVNPay:
		initialPaymentStatus = "Awaiting Payment"
	default:
		return nil, &UnknownMethodError{Method: req.PaymentMethod}
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	subtotal := decimal.Zero
	for _, item := range req.Items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	// Price the optional coupon against the subtotal. Usage is recorded only
	// once payment is confirmed, never at creation.
	discount := decimal.Zero
	couponCode := ""
	if req.CouponCode != "" {
		bd, err := s.coupons.Validate(ctx, req.CouponCode, req.CustomerID, subtotal)
		if err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
		discount = bd.DiscountAmount
		couponCode = bd.Coupon.Code
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	total = total.Round(2)

	baseID := NewBaseID()
	createdAt := s.now()
	lines := make([]Line, len(req.Items))
	for i, item := range req.Items {
		p := byID[item.ProductID]
		qty := decimal.NewFromInt(int64(item.Quantity))
		lines[i] = Line{
			ID:             LineID(baseID, i+1, len(req.Items)),
			BaseOrderID:    baseID,
			CustomerID:     req.CustomerID,
			ProductID:      p.ID,
			ProductName:    p.Name,
			ProductImage:   p.Image,
			Quantity:       item.Quantity,
			UnitPrice:      p.Price,
			LineSubtotal:   p.Price.Mul(qty).Round(2),
			OrderTotal:     total,
			PaymentMethod:  req.PaymentMethod,
			PaymentStatus:  initialPaymentStatus,
			OrderStatus:    StatusPending,
			Address:        req.Address,
			CouponCode:     couponCode,
			DiscountAmount: discount,
			RefundStatus:   RefundNone,
			CreatedAt:      createdAt,
		}
	}

	if err := s.orders.CreateLines(ctx, lines); err != nil {
		return nil, errors.Wrap(err, "create order lines")
	}

	// COD has no confirmation step, so inventory comes off right away.
	if req.PaymentMethod == MethodCOD {
		for _, line := range lines {
			if err := s.products.DecrementStock(ctx, line.ProductID, line.Quantity); err != nil {
				return nil, errors.Wrapf(err, "decrement stock for %s", line.ProductID)
			}
		}
	}

	if err := s.carts.Clear(ctx, req.CustomerID); err != nil {
		// The order is already placed; a stale cart is an inconvenience,
		// not a failure.
		s.lg.Warn("clear cart after order creation",
			zap.String("customer_id", req.CustomerID),
			zap.String("order_id", baseID),
			zap.Error(err),
		)
	}

	return &CreateResult{BaseID: baseID, Lines: lines}, nil
}

// Cancel moves an order to cancelled with the caller's free-text reason.
// Only pending and paid orders may be cancelled. Orders paid through an
// electronic gateway additionally require refund bank details and enter the
// pending_refund state. Inventory is not restocked on cancellation.
func (s *Service) Cancel(ctx context.Context, baseID, customerID, reason string, refund RefundInfo) error {
	lines, err := s.orders.GetByBaseID(ctx, baseID)
	if err != nil {
		return errors.Wrap(err, "get order")
	}
	if len(lines) == 0 {
		return ErrNotFound
	}
	head := lines[0]
	if customerID != "" && head.CustomerID != customerID {
		return ErrNotFound
	}
	if head.OrderStatus != StatusPending && head.OrderStatus != StatusPaid {
		return ErrCancelNotAllowed
	}

	c := Cancellation{
		Reason:       reason,
		At:           s.now(),
		RefundStatus: RefundNone,
	}
	if head.OrderStatus == StatusPaid && head.PaymentMethod != MethodCOD {
		if !refund.Complete() {
			return ErrRefundInfoRequired
		}
		c.RefundStatus = RefundPending
		c.RefundInfo = refund
	}

	if err := s.orders.Cancel(ctx, baseID, c); err != nil {
		return errors.Wrap(err, "cancel order")
	}
	return nil
}

// CompleteRefund flips a pending refund to refunded. Pure status change;
// moving the money happens outside this system.
func (s *Service) CompleteRefund(ctx context.Context, baseID string) error {
	lines, err := s.orders.GetByBaseID(ctx, baseID)
	if err != nil {
		return errors.Wrap(err, "get order")
	}
	if len(lines) == 0 {
		return ErrNotFound
	}
	if lines[0].RefundStatus != RefundPending {
		return ErrRefundNotPending
	}
	if err := s.orders.UpdateRefundStatus(ctx, baseID, RefundRefunded); err != nil {
		return errors.Wrap(err, "update refund status")
	}
	return nil
}

// fulfillmentRank orders the downstream fulfillment states.
var fulfillmentRank = map[Status]int{
	StatusPaid:      0,
	StatusConfirmed: 1,
	StatusShipped:   2,
	StatusDelivered: 3,
}

// UpdateStatus applies an admin fulfillment transition. Only forward moves
// along paid -> confirmed -> shipped -> delivered are accepted.
func (s *Service) UpdateStatus(ctx context.Context, baseID string, target Status) error {
	targetRank, ok := fulfillmentRank[target]
	if !ok || target == StatusPaid {
		return ErrInvalidTransition
	}

	lines, err := s.orders.GetByBaseID(ctx, baseID)
	if err != nil {
		return errors.Wrap(err, "get order")
	}
	if len(lines) == 0 {
		return ErrNotFound
	}

	currentRank, ok := fulfillmentRank[lines[0].OrderStatus]
	if !ok || targetRank <= currentRank {
		return ErrInvalidTransition
	}

	if err := s.orders.UpdateStatus(ctx, baseID, target); err != nil {
		return errors.Wrap(err, "update order status")
	}
	return nil
}
