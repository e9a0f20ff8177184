package handler

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geraidev/checkout/internal/domain/order"
	"github.com/geraidev/checkout/internal/domain/payment"
	"github.com/geraidev/checkout/internal/domain/voucher"
)

const testServerKey = "SB-server-key"

type mockService struct {
	quote    *order.FinalizationQuote
	buildErr error

	finalizeErr    error
	finalizedToken string

	appliedOrderID string
	appliedStatus  payment.Status
	applyErr       error
}

func (m *mockService) BuildFinalizationRequest(
	_ context.Context, _ order.Customer, _ string,
	_, _ decimal.Decimal, _ []string,
) (*order.FinalizationQuote, error) {
	if m.buildErr != nil {
		return nil, m.buildErr
	}
	return m.quote, nil
}

func (m *mockService) Finalize(
	_ context.Context, _ order.Customer, _, token string,
	_ []string, _ order.ShippingInfo, _ decimal.Decimal,
) error {
	m.finalizedToken = token
	return m.finalizeErr
}

func (m *mockService) ApplyPaymentStatus(_ context.Context, orderID string, status payment.Status) error {
	m.appliedOrderID = orderID
	m.appliedStatus = status
	return m.applyErr
}

func newTestRouter(svc CheckoutService) http.Handler {
	r := chi.NewRouter()
	r.Route("/api", NewHandler(svc, testServerKey).Routes)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestBuildIntent(t *testing.T) {
	svc := &mockService{quote: &order.FinalizationQuote{
		Token:      "tok-abc",
		ItemsPrice: decimal.NewFromInt(260000),
		Discount:   decimal.NewFromInt(26000),
	}}
	h := newTestRouter(svc)

	w := doJSON(t, h, http.MethodPost, "/api/checkout/intent", `{
		"orderId": "order-1",
		"customer": {"id": "cust-1", "name": "Budi", "email": "budi@example.com"},
		"shippingPrice": "10000",
		"taxPrice": "15000",
		"voucherCodes": ["KOPI10"]
	}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "tok-abc", resp["token"])
	assert.Equal(t, "260000", resp["itemsPrice"])
	assert.Equal(t, "26000", resp["discount"])
}

func TestBuildIntent_MissingOrderID(t *testing.T) {
	h := newTestRouter(&mockService{})
	w := doJSON(t, h, http.MethodPost, "/api/checkout/intent", `{"customer":{"id":"cust-1"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBuildIntent_PriceDrift(t *testing.T) {
	svc := &mockService{buildErr: &payment.PriceDriftError{Lines: []payment.DriftedLine{{
		ProductID: "p1",
		CartPrice: decimal.NewFromInt(100000),
		Current:   decimal.NewFromInt(95000),
	}}}}
	h := newTestRouter(svc)

	w := doJSON(t, h, http.MethodPost, "/api/checkout/intent", `{
		"orderId": "order-1", "customer": {"id": "cust-1"}
	}`)

	require.Equal(t, http.StatusConflict, w.Code)
	var resp struct {
		Code  int `json:"code"`
		Lines []struct {
			ProductID string `json:"productId"`
			Current   string `json:"currentPrice"`
		} `json:"lines"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, http.StatusConflict, resp.Code)
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, "p1", resp.Lines[0].ProductID)
	assert.Equal(t, "95000", resp.Lines[0].Current)
}

func TestBuildIntent_InvalidVoucher(t *testing.T) {
	svc := &mockService{buildErr: &voucher.CodeError{Code: "DEAD", Err: voucher.ErrExpired}}
	h := newTestRouter(svc)

	w := doJSON(t, h, http.MethodPost, "/api/checkout/intent", `{
		"orderId": "order-1", "customer": {"id": "cust-1"}
	}`)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Contains(t, resp["message"], "DEAD")
}

func TestBuildIntent_GatewayDown(t *testing.T) {
	svc := &mockService{buildErr: payment.ErrGateway}
	h := newTestRouter(svc)

	w := doJSON(t, h, http.MethodPost, "/api/checkout/intent", `{
		"orderId": "order-1", "customer": {"id": "cust-1"}
	}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestFinalize(t *testing.T) {
	svc := &mockService{}
	h := newTestRouter(svc)

	w := doJSON(t, h, http.MethodPost, "/api/checkout/finalize", `{
		"orderId": "order-1",
		"customer": {"id": "cust-1"},
		"token": "tok-abc",
		"voucherCodes": ["KOPI10"],
		"discount": "26000",
		"shipping": {"name": "Budi", "address": "Jl. Sudirman 1", "courier": "jne"}
	}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok-abc", svc.finalizedToken)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "pending", resp["status"])
}

func TestFinalize_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing token", order.ErrMissingToken, http.StatusBadRequest},
		{"unknown order", order.ErrNotFound, http.StatusNotFound},
		{"empty cart", order.ErrEmptyCart, http.StatusUnprocessableEntity},
		{"discount mismatch", order.ErrDiscountMismatch, http.StatusConflict},
		{"serialization conflict", order.ErrConflict, http.StatusConflict},
		{"voucher exhausted", &voucher.CodeError{Code: "KOPI10", Err: voucher.ErrExhausted}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&mockService{finalizeErr: tt.err})
			w := doJSON(t, h, http.MethodPost, "/api/checkout/finalize", `{
				"orderId": "order-1", "customer": {"id": "cust-1"}, "token": "tok"
			}`)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func notificationBody(orderID, statusCode, grossAmount, txStatus, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	sig := hex.EncodeToString(sum[:])
	return `{
		"order_id": "` + orderID + `",
		"status_code": "` + statusCode + `",
		"gross_amount": "` + grossAmount + `",
		"transaction_status": "` + txStatus + `",
		"signature_key": "` + sig + `"
	}`
}

func TestNotification(t *testing.T) {
	svc := &mockService{}
	h := newTestRouter(svc)

	w := doJSON(t, h, http.MethodPost, "/api/payments/notification",
		notificationBody("order-1", "200", "259000", "settlement", testServerKey))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "order-1", svc.appliedOrderID)
	assert.Equal(t, payment.StatusSettlement, svc.appliedStatus)
}

func TestNotification_BadSignature(t *testing.T) {
	svc := &mockService{}
	h := newTestRouter(svc)

	w := doJSON(t, h, http.MethodPost, "/api/payments/notification",
		notificationBody("order-1", "200", "259000", "settlement", "forged-key"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, svc.appliedOrderID, "service must not be called on bad signature")
}

func TestNotification_InvalidBody(t *testing.T) {
	h := newTestRouter(&mockService{})
	w := doJSON(t, h, http.MethodPost, "/api/payments/notification", `{"transaction_status":"settlement"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
