// Package handler exposes checkout finalization and settlement over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/geraidev/checkout/internal/domain/cart"
	"github.com/geraidev/checkout/internal/domain/order"
	"github.com/geraidev/checkout/internal/domain/payment"
	"github.com/geraidev/checkout/internal/domain/voucher"
)

// CheckoutService is the slice of the order service the HTTP layer needs.
type CheckoutService interface {
	BuildFinalizationRequest(
		ctx context.Context,
		customer order.Customer,
		orderID string,
		shippingPrice, taxPrice decimal.Decimal,
		voucherCodes []string,
	) (*order.FinalizationQuote, error)
	Finalize(
		ctx context.Context,
		customer order.Customer,
		orderID, token string,
		voucherCodes []string,
		shipping order.ShippingInfo,
		expectedDiscount decimal.Decimal,
	) error
	ApplyPaymentStatus(ctx context.Context, orderID string, status payment.Status) error
}

// Handler serves the checkout API.
type Handler struct {
	service   CheckoutService
	serverKey string
}

// NewHandler constructs a Handler. serverKey verifies gateway notification
// signatures.
func NewHandler(service CheckoutService, serverKey string) *Handler {
	return &Handler{service: service, serverKey: serverKey}
}

// errorResponse is the JSON error body shared by every endpoint.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// writeDomainError maps domain errors to HTTP responses. Unrecognized errors
// are logged and become opaque 500s.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var drift *payment.PriceDriftError
	if errors.As(err, &drift) {
		type driftedLine struct {
			ProductID string `json:"productId"`
			VariantID string `json:"variantId,omitempty"`
			CartPrice string `json:"cartPrice"`
			Current   string `json:"currentPrice"`
		}
		lines := make([]driftedLine, len(drift.Lines))
		for i, l := range drift.Lines {
			lines[i] = driftedLine{
				ProductID: l.ProductID,
				VariantID: l.VariantID,
				CartPrice: l.CartPrice.String(),
				Current:   l.Current.String(),
			}
		}
		writeJSON(w, http.StatusConflict, struct {
			errorResponse
			Lines []driftedLine `json:"lines"`
		}{
			errorResponse: errorResponse{Code: http.StatusConflict, Message: drift.Error()},
			Lines:         lines,
		})
		return
	}

	var codeErr *voucher.CodeError
	if errors.As(err, &codeErr) {
		writeError(w, http.StatusUnprocessableEntity, codeErr.Error())
		return
	}

	switch {
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, cart.ErrNotFound), errors.Is(err, order.ErrEmptyCart):
		writeError(w, http.StatusUnprocessableEntity, "cart is empty")
	case errors.Is(err, order.ErrMissingToken):
		writeError(w, http.StatusBadRequest, "payment token is required")
	case errors.Is(err, order.ErrDiscountMismatch):
		writeError(w, http.StatusConflict, "discount no longer matches the payment intent, rebuild the request")
	case errors.Is(err, order.ErrConflict):
		writeError(w, http.StatusConflict, "concurrent update, retry the request")
	case errors.Is(err, payment.ErrGateway):
		writeError(w, http.StatusBadGateway, "payment token creation failed")
	default:
		zctx.From(r.Context()).Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
