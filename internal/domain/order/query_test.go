package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoldLines_GroupsSuffixedLines(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	total := decimal.NewFromInt(335000)

	lines := []Line{
		{
			ID:            "ORD-A-B-1",
			BaseOrderID:   "ORD-A-B",
			CustomerID:    "cust-1",
			ProductID:     "p1",
			ProductName:   "Mug",
			Quantity:      1,
			UnitPrice:     decimal.NewFromInt(75000),
			LineSubtotal:  decimal.NewFromInt(75000),
			OrderTotal:    total,
			PaymentMethod: MethodCOD,
			OrderStatus:   StatusPending,
			CreatedAt:     created,
		},
		{
			ID:            "ORD-A-B-2",
			BaseOrderID:   "ORD-A-B",
			CustomerID:    "cust-1",
			ProductID:     "p2",
			ProductName:   "Dripper",
			Quantity:      1,
			UnitPrice:     decimal.NewFromInt(260000),
			LineSubtotal:  decimal.NewFromInt(260000),
			OrderTotal:    total,
			PaymentMethod: MethodCOD,
			OrderStatus:   StatusPending,
			CreatedAt:     created,
		},
	}

	views := FoldLines(lines)

	require.Len(t, views, 1)
	v := views[0]
	assert.Equal(t, "ORD-A-B", v.BaseOrderID)
	assert.Equal(t, "cust-1", v.CustomerID)
	assert.True(t, total.Equal(v.OrderTotal))
	require.Len(t, v.Items, 2)
	assert.Equal(t, "ORD-A-B-1", v.Items[0].LineID)
	assert.Equal(t, "p1", v.Items[0].ProductID)
	assert.Equal(t, "ORD-A-B-2", v.Items[1].LineID)
}

func TestFoldLines_SingleLineOrder(t *testing.T) {
	lines := []Line{{
		ID:           "ORD-A-B",
		BaseOrderID:  "ORD-A-B",
		CustomerID:   "cust-1",
		ProductID:    "p1",
		Quantity:     2,
		LineSubtotal: decimal.NewFromInt(150000),
		OrderTotal:   decimal.NewFromInt(150000),
		OrderStatus:  StatusPaid,
		CreatedAt:    time.Now(),
	}}

	views := FoldLines(lines)

	require.Len(t, views, 1)
	assert.Equal(t, "ORD-A-B", views[0].BaseOrderID)
	require.Len(t, views[0].Items, 1)
}

func TestFoldLines_NewestFirst(t *testing.T) {
	older := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	lines := []Line{
		{ID: "ORD-OLD-X", BaseOrderID: "ORD-OLD-X", CreatedAt: older},
		{ID: "ORD-NEW-Y", BaseOrderID: "ORD-NEW-Y", CreatedAt: newer},
	}

	views := FoldLines(lines)

	require.Len(t, views, 2)
	assert.Equal(t, "ORD-NEW-Y", views[0].BaseOrderID)
	assert.Equal(t, "ORD-OLD-X", views[1].BaseOrderID)
}

func TestFoldLines_RefundInfoOnlyWhenComplete(t *testing.T) {
	lines := []Line{{
		ID:           "ORD-A-B",
		BaseOrderID:  "ORD-A-B",
		RefundStatus: RefundPending,
		RefundInfo:   RefundInfo{Bank: "VCB", Account: "00112233", Holder: "AN NGUYEN"},
		CreatedAt:    time.Now(),
	}}

	views := FoldLines(lines)
	require.Len(t, views, 1)
	require.NotNil(t, views[0].RefundInfo)
	assert.Equal(t, "VCB", views[0].RefundInfo.Bank)

	lines[0].RefundInfo = RefundInfo{}
	views = FoldLines(lines)
	assert.Nil(t, views[0].RefundInfo)
}

func TestFoldLines_Empty(t *testing.T) {
	assert.Empty(t, FoldLines(nil))
}
