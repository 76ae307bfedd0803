package order

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// LineSummary is the per-product slice of an aggregated order view.
type LineSummary struct {
	LineID       string          `json:"lineId"`
	ProductID    string          `json:"productId"`
	ProductName  string          `json:"productName"`
	ProductImage string          `json:"productImage"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// View is a logical order folded from its persisted lines: shared fields
// carried once plus one summary per product.
type View struct {
	BaseOrderID    string          `json:"orderId"`
	CustomerID     string          `json:"customerId"`
	Items          []LineSummary   `json:"items"`
	OrderTotal     decimal.Decimal `json:"orderTotal"`
	PaymentMethod  string          `json:"paymentMethod"`
	PaymentStatus  string          `json:"paymentStatus"`
	PaymentRef     string          `json:"paymentRef,omitempty"`
	OrderStatus    Status          `json:"orderStatus"`
	Address        Address         `json:"address"`
	CouponCode     string          `json:"couponCode,omitempty"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	CancelReason   string          `json:"cancelReason,omitempty"`
	CancelledAt    *time.Time      `json:"cancelledAt,omitempty"`
	RefundStatus   RefundStatus    `json:"refundStatus"`
	RefundInfo     *RefundInfo     `json:"refundInfo,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// FoldLines groups a flat list of lines into aggregate views. The grouping
// key is GroupID of the line id, which collapses suffixed ids (BASE-1,
// BASE-2) back to their base order id. Views come back newest first.
func FoldLines(lines []Line) []View {
	byBase := make(map[string]*View)
	order := make([]string, 0)

	for _, l := range lines {
		key := GroupID(l.ID)
		v, ok := byBase[key]
		if !ok {
			v = &View{
				BaseOrderID:    key,
				CustomerID:     l.CustomerID,
				OrderTotal:     l.OrderTotal,
				PaymentMethod:  l.PaymentMethod,
				PaymentStatus:  l.PaymentStatus,
				PaymentRef:     l.PaymentRef,
				OrderStatus:    l.OrderStatus,
				Address:        l.Address,
				CouponCode:     l.CouponCode,
				DiscountAmount: l.DiscountAmount,
				CancelReason:   l.CancelReason,
				CancelledAt:    l.CancelledAt,
				RefundStatus:   l.RefundStatus,
				CreatedAt:      l.CreatedAt,
			}
			if l.RefundInfo.Complete() {
				info := l.RefundInfo
				v.RefundInfo = &info
			}
			byBase[key] = v
			order = append(order, key)
		}
		v.Items = append(v.Items, LineSummary{
			LineID:       l.ID,
			ProductID:    l.ProductID,
			ProductName:  l.ProductName,
			ProductImage: l.ProductImage,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
			Subtotal:     l.LineSubtotal,
		})
	}

	views := make([]View, 0, len(order))
	for _, key := range order {
		views = append(views, *byBase[key])
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	return views
}
