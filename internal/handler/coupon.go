package handler

import (
	"net/http"

	"github.com/shopspring/decimal"
)

type validateCouponRequest struct {
	Code      string          `json:"code"`
	CartTotal decimal.Decimal `json:"cartTotal"`
}

func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "coupon code is required")
		return
	}

	info := identityFromContext(r.Context())

	bd, err := h.coupons.Validate(r.Context(), req.Code, info.CustomerID, req.CartTotal)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"code":           bd.Coupon.Code,
		"discountType":   bd.Coupon.DiscountType,
		"discountValue":  bd.Coupon.DiscountValue,
		"discountAmount": bd.DiscountAmount,
		"finalTotal":     req.CartTotal.Sub(bd.DiscountAmount),
	})
}
