package handler

import (
	"net"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/lamngoc/minimart/internal/domain/order"
	"github.com/lamngoc/minimart/internal/domain/payment"
)

type initPaymentRequest struct {
	OrderID string `json:"orderId"`
}

// startCheckout loads the order, checks ownership and state, and asks the
// gateway for checkout parameters. Shared by both init endpoints.
func (h *Handler) startCheckout(w http.ResponseWriter, r *http.Request, kind string) (*payment.Checkout, bool) {
	var req initPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return nil, false
	}

	info := identityFromContext(r.Context())

	lines, err := h.reconciler.Order(r.Context(), req.OrderID)
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	head := lines[0]
	if head.CustomerID != info.CustomerID {
		writeError(w, http.StatusNotFound, codeNotFound, order.ErrNotFound.Error())
		return nil, false
	}
	if head.PaymentMethod != kind {
		writeError(w, http.StatusConflict, codeConflict, "order was placed with a different payment method")
		return nil, false
	}
	if head.OrderStatus != order.StatusPending {
		writeError(w, http.StatusConflict, codeConflict, "order is no longer awaiting payment")
		return nil, false
	}

	gw, err := h.gateways.Get(kind)
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}

	checkout, err := gw.Initiate(r.Context(), payment.CheckoutOrder{
		BaseID:      head.BaseOrderID,
		CustomerID:  head.CustomerID,
		Amount:      head.OrderTotal,
		Description: "minimart order " + head.BaseOrderID,
		ClientIP:    clientIP(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return checkout, true
}

func (h *Handler) sslcommerzInit(w http.ResponseWriter, r *http.Request) {
	checkout, ok := h.startCheckout(w, r, order.MethodSSLCommerz)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"orderId":     checkout.OrderID,
		"checkoutUrl": checkout.PaymentURL,
		"fields":      checkout.Fields,
		"amount":      checkout.Amount,
	})
}

func (h *Handler) vnpayInit(w http.ResponseWriter, r *http.Request) {
	checkout, ok := h.startCheckout(w, r, order.MethodVNPay)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"orderId":    checkout.OrderID,
		"paymentUrl": checkout.PaymentURL,
		"amount":     checkout.Amount,
	})
}

// sslcommerzCallback handles the gateway's asynchronous payment notification.
// The provider expects 200 regardless of what we make of the payload, so
// internal failures are logged, never surfaced.
func (h *Handler) sslcommerzCallback(w http.ResponseWriter, r *http.Request) {
	lg := zctx.From(r.Context())

	if err := r.ParseForm(); err != nil {
		lg.Warn("sslcommerz callback: bad form", zap.Error(err))
		writeData(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	gw, err := h.gateways.Get(order.MethodSSLCommerz)
	if err != nil {
		lg.Error("sslcommerz callback: gateway not registered", zap.Error(err))
		writeData(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	notif, err := gw.Verify(r.PostForm)
	if err != nil {
		lg.Warn("sslcommerz callback: verify failed", zap.Error(err))
		writeData(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	if notif.Success {
		_, err = h.reconciler.MarkPaid(r.Context(), notif.OrderRef, gw, notif.ExternalTxID)
	} else {
		_, err = h.reconciler.MarkFailed(r.Context(), notif.OrderRef)
	}
	if err != nil {
		lg.Error("sslcommerz callback: reconcile",
			zap.String("order_id", notif.OrderRef),
			zap.Bool("gateway_success", notif.Success),
			zap.Error(err),
		)
	}

	writeData(w, http.StatusOK, map[string]any{"received": true})
}

// vnpayReturn handles the browser coming back from the hosted checkout. The
// payment is reconciled (the return often beats the IPN) and the browser is
// sent to the storefront result page with a human-readable outcome.
func (h *Handler) vnpayReturn(w http.ResponseWriter, r *http.Request) {
	lg := zctx.From(r.Context())

	gw, err := h.gateways.Get(order.MethodVNPay)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	notif, err := gw.Verify(r.URL.Query())
	if err != nil {
		if errors.Is(err, payment.ErrBadSignature) {
			// Tampered or stale payload: report it, mutate nothing.
			h.redirectResult(w, r, r.URL.Query().Get("vnp_TxnRef"), "failed", "Invalid payment signature")
			return
		}
		writeDomainError(w, err)
		return
	}

	if !notif.Success {
		if _, err := h.reconciler.MarkFailed(r.Context(), notif.OrderRef); err != nil {
			lg.Error("vnpay return: mark failed", zap.String("order_id", notif.OrderRef), zap.Error(err))
		}
		h.redirectResult(w, r, notif.OrderRef, "failed", payment.VNPayReason(notif.ResponseCode))
		return
	}

	if _, err := h.reconciler.MarkPaid(r.Context(), notif.OrderRef, gw, notif.ExternalTxID); err != nil {
		lg.Error("vnpay return: mark paid", zap.String("order_id", notif.OrderRef), zap.Error(err))
		h.redirectResult(w, r, notif.OrderRef, "failed", "Payment could not be recorded")
		return
	}
	h.redirectResult(w, r, notif.OrderRef, "success", "Payment completed")
}

// vnpayIPN is the server-to-server notification endpoint. The gateway
// retries until it receives the fixed {RspCode, Message} vocabulary, so this
// handler always answers 200 with one of the known codes.
func (h *Handler) vnpayIPN(w http.ResponseWriter, r *http.Request) {
	lg := zctx.From(r.Context())

	gw, err := h.gateways.Get(order.MethodVNPay)
	if err != nil {
		h.ipnRespond(w, "99", "Unknown error")
		return
	}

	notif, err := gw.Verify(r.URL.Query())
	if err != nil {
		if errors.Is(err, payment.ErrBadSignature) {
			h.ipnRespond(w, "97", "Invalid Checksum")
			return
		}
		lg.Error("vnpay ipn: verify", zap.Error(err))
		h.ipnRespond(w, "99", "Unknown error")
		return
	}

	lines, err := h.reconciler.Order(r.Context(), notif.OrderRef)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			h.ipnRespond(w, "01", "Order not found")
			return
		}
		lg.Error("vnpay ipn: load order", zap.String("order_id", notif.OrderRef), zap.Error(err))
		h.ipnRespond(w, "99", "Unknown error")
		return
	}

	if !notif.Amount.Equal(lines[0].OrderTotal) {
		h.ipnRespond(w, "04", "Invalid amount")
		return
	}

	var result *payment.Result
	if notif.Success {
		result, err = h.reconciler.MarkPaid(r.Context(), notif.OrderRef, gw, notif.ExternalTxID)
	} else {
		result, err = h.reconciler.MarkFailed(r.Context(), notif.OrderRef)
	}
	if err != nil {
		lg.Error("vnpay ipn: reconcile", zap.String("order_id", notif.OrderRef), zap.Error(err))
		h.ipnRespond(w, "99", "Unknown error")
		return
	}
	if result.AlreadyApplied {
		h.ipnRespond(w, "02", "Order already confirmed")
		return
	}
	h.ipnRespond(w, "00", "Confirm Success")
}

func (h *Handler) ipnRespond(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"RspCode":"` + code + `","Message":"` + message + `"}`))
}

// redirectResult sends the browser to the storefront payment result page.
func (h *Handler) redirectResult(w http.ResponseWriter, r *http.Request, orderID, status, message string) {
	q := url.Values{}
	q.Set("orderId", orderID)
	q.Set("status", status)
	q.Set("message", message)
	http.Redirect(w, r, h.cfg.PaymentResultURL+"?"+q.Encode(), http.StatusFound)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
