package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/geraidev/checkout/internal/domain/order"
)

// Routes mounts the checkout API on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/checkout/intent", h.buildIntent)
	r.Post("/checkout/finalize", h.finalize)
	r.Post("/payments/notification", h.notification)
}

type customerPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (p customerPayload) toDomain() order.Customer {
	return order.Customer{ID: p.ID, Name: p.Name, Email: p.Email, Phone: p.Phone}
}

type buildIntentRequest struct {
	OrderID       string          `json:"orderId"`
	Customer      customerPayload `json:"customer"`
	ShippingPrice decimal.Decimal `json:"shippingPrice"`
	TaxPrice      decimal.Decimal `json:"taxPrice"`
	VoucherCodes  []string        `json:"voucherCodes"`
}

type buildIntentResponse struct {
	Token      string `json:"token"`
	ItemsPrice string `json:"itemsPrice"`
	Discount   string `json:"discount"`
}

// buildIntent prices the cart, quotes vouchers, and returns a payment token.
func (h *Handler) buildIntent(w http.ResponseWriter, r *http.Request) {
	var req buildIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == "" || req.Customer.ID == "" {
		writeError(w, http.StatusBadRequest, "orderId and customer.id are required")
		return
	}

	quote, err := h.service.BuildFinalizationRequest(
		r.Context(), req.Customer.toDomain(), req.OrderID,
		req.ShippingPrice, req.TaxPrice, req.VoucherCodes,
	)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, buildIntentResponse{
		Token:      quote.Token,
		ItemsPrice: quote.ItemsPrice.String(),
		Discount:   quote.Discount.String(),
	})
}

type finalizeRequest struct {
	OrderID      string          `json:"orderId"`
	Customer     customerPayload `json:"customer"`
	Token        string          `json:"token"`
	VoucherCodes []string        `json:"voucherCodes"`
	Discount     decimal.Decimal `json:"discount"`
	Shipping     struct {
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Address string `json:"address"`
		Courier string `json:"courier"`
	} `json:"shipping"`
}

// finalize turns the tokenized cart into a durable order.
func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == "" || req.Customer.ID == "" {
		writeError(w, http.StatusBadRequest, "orderId and customer.id are required")
		return
	}

	err := h.service.Finalize(
		r.Context(), req.Customer.toDomain(), req.OrderID, req.Token,
		req.VoucherCodes,
		order.ShippingInfo{
			Name:    req.Shipping.Name,
			Phone:   req.Shipping.Phone,
			Address: req.Shipping.Address,
			Courier: req.Shipping.Courier,
		},
		req.Discount,
	)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"orderId": req.OrderID, "status": "pending"})
}
