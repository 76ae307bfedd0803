package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lamngoc/minimart/internal/domain/order"
)

type orderItemDTO struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	Products        []orderItemDTO `json:"products"`
	ShippingAddress order.Address  `json:"shippingAddress"`
	PaymentMethod   string         `json:"paymentMethod"`
	CouponCode      string         `json:"couponCode,omitempty"`
	// Client-side price echoes. Pricing is always recomputed from the
	// catalog; these are accepted for wire compatibility only.
	TotalAmount    decimal.Decimal `json:"totalAmount,omitempty"`
	SubTotalAmount decimal.Decimal `json:"subTotalAmount,omitempty"`
	DiscountAmount decimal.Decimal `json:"discountAmount,omitempty"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}

	info := identityFromContext(r.Context())

	items := make([]order.Item, len(req.Products))
	for i, p := range req.Products {
		items[i] = order.Item{ProductID: p.ProductID, Quantity: p.Quantity}
	}

	result, err := h.orders.Create(r.Context(), order.CreateRequest{
		CustomerID:    info.CustomerID,
		Items:         items,
		Address:       req.ShippingAddress,
		PaymentMethod: req.PaymentMethod,
		CouponCode:    req.CouponCode,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	views := order.FoldLines(result.Lines)
	writeData(w, http.StatusCreated, map[string]any{
		"baseOrderId": result.BaseID,
		"order":       views[0],
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	info := identityFromContext(r.Context())

	lines, err := h.orderRepo.ListByCustomer(r.Context(), info.CustomerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, order.FoldLines(lines))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	info := identityFromContext(r.Context())
	baseID := chi.URLParam(r, "orderID")

	lines, err := h.reconciler.Order(r.Context(), baseID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if lines[0].CustomerID != info.CustomerID {
		writeError(w, http.StatusNotFound, codeNotFound, order.ErrNotFound.Error())
		return
	}
	writeData(w, http.StatusOK, order.FoldLines(lines)[0])
}

// confirmOrder is the explicit client-side confirmation, used as a fallback
// right after a successful gateway redirect in case the provider's own
// callback has not landed yet. It is idempotent: a duplicate confirmation is
// a benign no-op.
func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	info := identityFromContext(r.Context())
	baseID := chi.URLParam(r, "orderID")

	lines, err := h.reconciler.Order(r.Context(), baseID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	head := lines[0]
	if head.CustomerID != info.CustomerID {
		writeError(w, http.StatusNotFound, codeNotFound, order.ErrNotFound.Error())
		return
	}
	if head.PaymentMethod == order.MethodCOD {
		writeError(w, http.StatusConflict, codeConflict, "cash orders have no confirmation step")
		return
	}

	gw, err := h.gateways.Get(head.PaymentMethod)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := h.reconciler.MarkPaid(r.Context(), baseID, gw, head.PaymentRef)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"orderId":          baseID,
		"alreadyConfirmed": result.AlreadyApplied,
	})
}

type cancelOrderRequest struct {
	Reason     string            `json:"cancel_reason"`
	RefundInfo *order.RefundInfo `json:"refund_info,omitempty"`
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}

	info := identityFromContext(r.Context())
	baseID := chi.URLParam(r, "orderID")

	refund := order.RefundInfo{}
	if req.RefundInfo != nil {
		refund = *req.RefundInfo
	}

	if err := h.orders.Cancel(r.Context(), baseID, info.CustomerID, req.Reason, refund); err != nil {
		writeDomainError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{"orderId": baseID, "orderStatus": order.StatusCancelled})
}

func (h *Handler) adminListOrders(w http.ResponseWriter, r *http.Request) {
	lines, err := h.orderRepo.ListAll(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, order.FoldLines(lines))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) adminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}

	baseID := chi.URLParam(r, "orderID")
	if err := h.orders.UpdateStatus(r.Context(), baseID, order.Status(req.Status)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"orderId": baseID, "orderStatus": req.Status})
}

func (h *Handler) adminCompleteRefund(w http.ResponseWriter, r *http.Request) {
	baseID := chi.URLParam(r, "orderID")
	if err := h.orders.CompleteRefund(r.Context(), baseID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"orderId": baseID, "refundStatus": order.RefundRefunded})
}
