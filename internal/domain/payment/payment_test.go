package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBuildIntent(t *testing.T) {
	lines := []ResolvedLine{
		{ProductID: "p1", Name: "Kopi Arabika", UnitPrice: dec("90000"), CartPrice: dec("90000"), Quantity: 2},
		{ProductID: "p2", VariantID: "v7", Name: "Teh Hijau 250g", UnitPrice: dec("45000"), CartPrice: dec("45000"), Quantity: 1},
	}

	intent, err := BuildIntent("order-1", lines, dec("22500"), dec("15000"), dec("20000"),
		[]string{"HEMAT10", "ONGKIR"}, CustomerInfo{Name: "Ani", Email: "ani@example.com"})

	require.NoError(t, err)
	assert.Equal(t, "order-1", intent.OrderID)

	// 180000 + 45000 + tax 22500 + shipping 15000 - 20000 voucher.
	assert.True(t, dec("242500").Equal(intent.GrossAmount), "got %s", intent.GrossAmount)

	require.Len(t, intent.Items, 5)
	assert.Equal(t, "v7", intent.Items[1].ID, "variant lines carry the variant id")
	assert.Equal(t, "Tax", intent.Items[2].Name)
	assert.Equal(t, "Shipping", intent.Items[3].Name)
	assert.Equal(t, "Voucher (HEMAT10, ONGKIR)", intent.Items[4].Name)
	assert.True(t, dec("-20000").Equal(intent.Items[4].Price))
}

func TestBuildIntent_NoVoucherLineWithoutDiscount(t *testing.T) {
	lines := []ResolvedLine{
		{ProductID: "p1", Name: "Kopi", UnitPrice: dec("90000"), CartPrice: dec("90000"), Quantity: 1},
	}

	intent, err := BuildIntent("order-1", lines, dec("9000"), dec("10000"), decimal.Zero, nil, CustomerInfo{})

	require.NoError(t, err)
	require.Len(t, intent.Items, 3)
	assert.True(t, dec("109000").Equal(intent.GrossAmount), "got %s", intent.GrossAmount)
}

func TestBuildIntent_RefusesOnDrift(t *testing.T) {
	lines := []ResolvedLine{
		{ProductID: "p1", Name: "Kopi", UnitPrice: dec("45000"), CartPrice: dec("50000"), Quantity: 1, Changed: true},
		{ProductID: "p2", Name: "Teh", UnitPrice: dec("30000"), CartPrice: dec("30000"), Quantity: 1},
	}

	_, err := BuildIntent("order-1", lines, decimal.Zero, decimal.Zero, decimal.Zero, nil, CustomerInfo{})

	var drift *PriceDriftError
	require.ErrorAs(t, err, &drift)
	require.Len(t, drift.Lines, 1)
	assert.Equal(t, "p1", drift.Lines[0].ProductID)
	assert.True(t, dec("50000").Equal(drift.Lines[0].CartPrice))
	assert.True(t, dec("45000").Equal(drift.Lines[0].Current))
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusSettlement.Captured())
	assert.True(t, StatusCapture.Captured())
	assert.False(t, StatusPending.Captured())
	assert.False(t, StatusDeny.Captured())

	assert.True(t, StatusExpire.Known())
	assert.False(t, Status("refund").Known())
}
