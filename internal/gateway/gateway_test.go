package gateway

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geraidev/checkout/internal/domain/payment"
)

func testIntent() payment.Intent {
	return payment.Intent{
		OrderID:     "order-1",
		GrossAmount: decimal.NewFromInt(259000),
		Customer: payment.CustomerInfo{
			ID:    "cust-1",
			Name:  "Budi",
			Email: "budi@example.com",
			Phone: "+628123456789",
		},
		Items: []payment.LineItem{
			{ID: "p1", Name: "Arabica Beans", Price: decimal.NewFromInt(130000), Quantity: 2},
			{ID: "VOUCHER", Name: "Voucher (KOPI10)", Price: decimal.NewFromInt(-1000), Quantity: 1},
		},
	}
}

func TestCreateToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/transactions", r.URL.Path)

		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "SB-server-key", user)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		td := body["transaction_details"].(map[string]any)
		assert.Equal(t, "order-1", td["order_id"])
		assert.Equal(t, "259000", td["gross_amount"])
		assert.Len(t, body["item_details"], 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"tok-abc","redirect_url":"https://pay.example.com/tok-abc"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "SB-server-key")
	token, err := c.CreateToken(context.Background(), testIntent())
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", token)
}

func TestCreateToken_GatewayRefuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error_messages":["Access denied, please check client or server key"]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "wrong-key")
	_, err := c.CreateToken(context.Background(), testIntent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Access denied")
}

func TestCreateToken_NoToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "SB-server-key")
	_, err := c.CreateToken(context.Background(), testIntent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no token")
}

func signatureFor(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func TestDecodeNotification(t *testing.T) {
	raw := []byte(`{
		"order_id": "order-1",
		"status_code": "200",
		"gross_amount": "259000",
		"transaction_status": "settlement",
		"fraud_status": "accept",
		"signature_key": "` + signatureFor("order-1", "200", "259000", "SB-server-key") + `",
		"some_future_field": {"nested": true}
	}`)

	n, err := DecodeNotification(raw)
	require.NoError(t, err)
	assert.Equal(t, "order-1", n.OrderID)
	assert.True(t, n.GrossAmount.Equal(decimal.NewFromInt(259000)))
	assert.Equal(t, payment.StatusSettlement, n.Status())

	require.NoError(t, n.VerifySignature("SB-server-key"))
	assert.ErrorIs(t, n.VerifySignature("other-key"), ErrBadSignature)
}

func TestDecodeNotification_MissingOrderID(t *testing.T) {
	_, err := DecodeNotification([]byte(`{"transaction_status":"settlement"}`))
	require.Error(t, err)
}

func TestNotificationStatus(t *testing.T) {
	tests := []struct {
		name        string
		txStatus    string
		fraudStatus string
		want        payment.Status
	}{
		{"settlement", "settlement", "", payment.StatusSettlement},
		{"capture accepted", "capture", "accept", payment.StatusCapture},
		{"capture challenged stays pending", "capture", "challenge", payment.StatusPending},
		{"deny", "deny", "", payment.StatusDeny},
		{"cancel", "cancel", "", payment.StatusCancel},
		{"expire", "expire", "", payment.StatusExpire},
		{"pending", "pending", "", payment.StatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Notification{TransactionStatus: tt.txStatus, FraudStatus: tt.fraudStatus}
			assert.Equal(t, tt.want, n.Status())
		})
	}
}
