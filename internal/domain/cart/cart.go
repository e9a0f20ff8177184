// Package cart models the shopping cart consumed read-only by checkout
// finalization and cleared once an order is materialized.
package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a customer has no cart.
var ErrNotFound = errors.New("cart not found")

// Line is a single cart entry. UnitPrice is the price the storefront showed
// when the line was added; it is advisory only and re-derived against active
// campaigns during finalization.
type Line struct {
	ID          string
	ProductID   string
	VariantID   string // empty when the line references a bare product
	Name        string
	UnitPrice   decimal.Decimal
	Quantity    int
	WeightGrams int
}

// Cart holds a customer's pending lines and cached totals.
type Cart struct {
	ID         string
	CustomerID string
	Lines      []Line
	ItemsPrice decimal.Decimal
	TotalPrice decimal.Decimal
}

// Repository provides cart reads and the clear performed on successful
// finalization. Clear must participate in an ambient transaction when one
// is present on the context.
type Repository interface {
	GetByCustomer(ctx context.Context, customerID string) (*Cart, error)
	Clear(ctx context.Context, cartID string) error
}
