// Package payment assembles itemized payment intents and defines the
// gateway contract for obtaining payment tokens.
package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status values reported by the payment gateway. Settlement and Capture are
// the "money captured" terminal states that trigger stock decrement.
type Status string

const (
	StatusPending    Status = "pending"
	StatusSettlement Status = "settlement"
	StatusCapture    Status = "capture"
	StatusDeny       Status = "deny"
	StatusCancel     Status = "cancel"
	StatusExpire     Status = "expire"
)

// Captured reports whether this status means money was captured.
func (s Status) Captured() bool {
	return s == StatusSettlement || s == StatusCapture
}

// Known reports whether the gateway status is one this core understands.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusSettlement, StatusCapture, StatusDeny, StatusCancel, StatusExpire:
		return true
	}
	return false
}

// ErrGateway is returned when the gateway refused or failed to create a
// payment token. The user-facing meaning is "payment failed, no token".
var ErrGateway = errors.New("payment token creation failed")

// PriceDriftError means at least one cart line's stored price no longer
// matches the campaign-resolved price. The gateway is never called; the
// client must refresh the cart and resubmit.
type PriceDriftError struct {
	Lines []DriftedLine
}

// DriftedLine describes one line whose price drifted.
type DriftedLine struct {
	ProductID string
	VariantID string
	CartPrice decimal.Decimal
	Current   decimal.Decimal
}

func (e *PriceDriftError) Error() string {
	return fmt.Sprintf("prices changed for %d cart line(s), refresh and resubmit", len(e.Lines))
}

// LineItem is one entry in the itemized payment request sent to the gateway.
type LineItem struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// CustomerInfo is the contact detail forwarded to the gateway.
type CustomerInfo struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// Intent is the full itemized payment request bound to one order.
type Intent struct {
	OrderID     string
	GrossAmount decimal.Decimal
	Customer    CustomerInfo
	Items       []LineItem
}

// Gateway obtains an opaque payment token for an intent.
type Gateway interface {
	CreateToken(ctx context.Context, intent Intent) (string, error)
}

// ResolvedLine is a cart line after price resolution. Changed carries the
// drift verdict from the price resolver.
type ResolvedLine struct {
	ProductID string
	VariantID string
	Name      string
	UnitPrice decimal.Decimal
	CartPrice decimal.Decimal
	Quantity  int
	Changed   bool
}

// BuildIntent flattens resolved lines plus synthetic Tax, Shipping, and
// Voucher entries into a payment intent. It refuses with PriceDriftError
// when any line drifted, so a stale price can never reach the gateway.
func BuildIntent(
	orderID string,
	lines []ResolvedLine,
	taxPrice, shippingPrice, discount decimal.Decimal,
	voucherCodes []string,
	customer CustomerInfo,
) (Intent, error) {
	var drifted []DriftedLine
	for _, l := range lines {
		if l.Changed {
			drifted = append(drifted, DriftedLine{
				ProductID: l.ProductID,
				VariantID: l.VariantID,
				CartPrice: l.CartPrice,
				Current:   l.UnitPrice,
			})
		}
	}
	if len(drifted) > 0 {
		return Intent{}, &PriceDriftError{Lines: drifted}
	}

	items := make([]LineItem, 0, len(lines)+3)
	gross := decimal.Zero
	for _, l := range lines {
		id := l.ProductID
		if l.VariantID != "" {
			id = l.VariantID
		}
		items = append(items, LineItem{
			ID:       id,
			Name:     l.Name,
			Price:    l.UnitPrice,
			Quantity: l.Quantity,
		})
		gross = gross.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	items = append(items,
		LineItem{ID: "TAX", Name: "Tax", Price: taxPrice, Quantity: 1},
		LineItem{ID: "SHIPPING", Name: "Shipping", Price: shippingPrice, Quantity: 1},
	)
	gross = gross.Add(taxPrice).Add(shippingPrice)

	if discount.IsPositive() {
		items = append(items, LineItem{
			ID:       "VOUCHER",
			Name:     "Voucher (" + strings.Join(voucherCodes, ", ") + ")",
			Price:    discount.Neg(),
			Quantity: 1,
		})
		gross = gross.Sub(discount)
	}
	if gross.IsNegative() {
		gross = decimal.Zero
	}

	return Intent{
		OrderID:     orderID,
		GrossAmount: gross,
		Customer:    customer,
		Items:       items,
	}, nil
}
