// Package handler exposes the checkout core over HTTP. Routing is chi-based;
// every response uses the uniform {success, error, message} envelope.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/lamngoc/minimart/internal/domain/auth"
	"github.com/lamngoc/minimart/internal/domain/coupon"
	"github.com/lamngoc/minimart/internal/domain/order"
	"github.com/lamngoc/minimart/internal/domain/payment"
	"github.com/lamngoc/minimart/internal/domain/product"
)

// Error codes surfaced in the response envelope.
const (
	codeValidation   = "validation_error"
	codeNotFound     = "not_found"
	codeConflict     = "state_conflict"
	codeSignature    = "signature_error"
	codeUnauthorized = "unauthorized"
	codeInternal     = "internal_error"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// PaymentResultURL is the storefront page the browser lands on after a
	// gateway redirect; outcome and reason travel as query parameters.
	PaymentResultURL string
}

// Handler wires the domain services to HTTP routes.
type Handler struct {
	cfg        Config
	orders     *order.Service
	orderRepo  order.Repository
	products   product.Repository
	coupons    *coupon.Ledger
	reconciler *payment.Reconciler
	gateways   *payment.Registry
	apikeys    auth.Repository
	pepper     []byte
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	orders *order.Service,
	orderRepo order.Repository,
	products product.Repository,
	coupons *coupon.Ledger,
	reconciler *payment.Reconciler,
	gateways *payment.Registry,
	apikeys auth.Repository,
	pepper []byte,
) *Handler {
	return &Handler{
		cfg:        cfg,
		orders:     orders,
		orderRepo:  orderRepo,
		products:   products,
		coupons:    coupons,
		reconciler: reconciler,
		gateways:   gateways,
		apikeys:    apikeys,
		pepper:     pepper,
	}
}

// Routes builds the service router. Gateway entry points are public since
// they are called by the payment providers and returning browsers; everything
// else requires a valid API key.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	// Provider-facing entry points: no API key, providers cannot send one.
	r.Post("/payments/sslcommerz/callback", h.sslcommerzCallback)
	r.Get("/payments/vnpay/return", h.vnpayReturn)
	r.Get("/payments/vnpay/ipn", h.vnpayIPN)

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)

		r.Get("/products", h.listProducts)
		r.Get("/products/{productID}", h.getProduct)

		r.Post("/orders", h.createOrder)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{orderID}", h.getOrder)
		r.Post("/orders/{orderID}/confirm", h.confirmOrder)
		r.Post("/orders/{orderID}/cancel", h.cancelOrder)

		r.Post("/payments/sslcommerz/init", h.sslcommerzInit)
		r.Post("/payments/vnpay/init", h.vnpayInit)

		r.Post("/coupons/validate", h.validateCoupon)

		r.Group(func(r chi.Router) {
			r.Use(h.requireScope(auth.ScopeAdmin))

			r.Get("/admin/orders", h.adminListOrders)
			r.Post("/admin/orders/{orderID}/status", h.adminUpdateStatus)
			r.Post("/admin/orders/{orderID}/refund/complete", h.adminCompleteRefund)
		})
	})

	return r
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    data,
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	})
}

// writeDomainError maps domain errors to HTTP statuses and envelope codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		unknownMethod *order.UnknownMethodError
		notFoundProd  *order.ProductNotFoundError
		badQty        *order.InvalidQuantityError
	)

	switch {
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrMissingAddress),
		errors.Is(err, order.ErrRefundInfoRequired),
		errors.As(err, &unknownMethod),
		errors.As(err, &badQty):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())

	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.As(err, &notFoundProd):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())

	case errors.Is(err, order.ErrCancelNotAllowed),
		errors.Is(err, order.ErrRefundNotPending),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, coupon.ErrInactive),
		errors.Is(err, coupon.ErrNotStarted),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrUsageLimitReached),
		errors.Is(err, coupon.ErrAlreadyUsed),
		errors.Is(err, coupon.ErrBelowMinimum),
		errors.Is(err, product.ErrInsufficientStock):
		writeError(w, http.StatusConflict, codeConflict, err.Error())

	case errors.Is(err, payment.ErrBadSignature):
		writeError(w, http.StatusBadRequest, codeSignature, err.Error())

	case errors.Is(err, payment.ErrUnsupportedGateway),
		errors.Is(err, payment.ErrVerifyUnsupported):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())

	default:
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
