// Package catalog exposes read access to products and variants, plus the
// stock mutation used by payment settlement.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a referenced product or variant does not exist.
var ErrNotFound = errors.New("catalog entity not found")

// DiscountKind enumerates how a static discount is interpreted.
type DiscountKind string

const (
	DiscountPercent DiscountKind = "percent"
	DiscountFixed   DiscountKind = "fixed"
)

// Product is a sellable catalog entry. Discount is the product's own static
// discount, applied only when no campaign covers the product.
type Product struct {
	ID           string
	Name         string
	RegularPrice decimal.Decimal
	Discount     decimal.Decimal
	DiscountKind DiscountKind
	Stock        int
	WeightGrams  int
}

// Variant is a concrete purchasable variation of a product with its own
// price, static discount, and stock.
type Variant struct {
	ID           string
	ProductID    string
	Name         string
	RegularPrice decimal.Decimal
	Discount     decimal.Decimal
	DiscountKind DiscountKind
	Stock        int
}

// Repository provides catalog reads and the settlement-only stock decrement.
type Repository interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	GetVariant(ctx context.Context, id string) (*Variant, error)
}
