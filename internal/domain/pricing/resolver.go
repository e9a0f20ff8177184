package pricing

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/geraidev/checkout/internal/domain/cart"
	"github.com/geraidev/checkout/internal/domain/catalog"
)

// Resolution is the authoritative price for one cart line. Changed reports
// that the resolved price differs from the price stored on the cart line by
// more than one minor unit.
type Resolution struct {
	UnitPrice decimal.Decimal
	Changed   bool
}

// Resolver computes authoritative unit prices by evaluating active campaign
// items against the catalog's regular prices and static discounts.
type Resolver struct {
	catalog    catalog.Repository
	campaigns  Store
	minorUnits int32
}

// NewResolver creates a Resolver. minorUnits is the currency's minor-unit
// precision (0 for IDR-style currencies, 2 for cents).
func NewResolver(cat catalog.Repository, campaigns Store, minorUnits int32) *Resolver {
	return &Resolver{
		catalog:    cat,
		campaigns:  campaigns,
		minorUnits: minorUnits,
	}
}

// Resolve returns the authoritative unit price for a cart line at the given
// instant. A missing product or variant surfaces catalog.ErrNotFound, which
// aborts the whole finalization.
func (r *Resolver) Resolve(ctx context.Context, line cart.Line, now time.Time) (Resolution, error) {
	items, err := r.campaigns.ActiveItemsForProduct(ctx, line.ProductID, now)
	if err != nil {
		return Resolution{}, errors.Wrap(err, "load active campaign items")
	}

	var price decimal.Decimal
	if line.VariantID != "" {
		price, err = r.resolveVariant(ctx, line, items)
	} else {
		price, err = r.resolveProduct(ctx, line, items)
	}
	if err != nil {
		return Resolution{}, err
	}

	return Resolution{
		UnitPrice: price,
		Changed:   price.Sub(line.UnitPrice).Abs().GreaterThan(MinorUnit(r.minorUnits)),
	}, nil
}

func (r *Resolver) resolveVariant(ctx context.Context, line cart.Line, items []ScopedItem) (decimal.Decimal, error) {
	v, err := r.catalog.GetVariant(ctx, line.VariantID)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "variant %s", line.VariantID)
	}

	// Exact variant scope wins over whole-product scope; the item list is
	// already ordered by campaign priority, so first match is the winner.
	if it, ok := matchItem(items, func(it ScopedItem) bool { return it.VariantID == line.VariantID }); ok {
		if price, ok := r.campaignPrice(v.RegularPrice, it); ok {
			return price, nil
		}
	} else if it, ok := matchItem(items, func(it ScopedItem) bool { return it.VariantID == "" }); ok {
		if price, ok := r.campaignPrice(v.RegularPrice, it); ok {
			return price, nil
		}
	}

	return r.staticPrice(v.RegularPrice, v.Discount, v.DiscountKind), nil
}

func (r *Resolver) resolveProduct(ctx context.Context, line cart.Line, items []ScopedItem) (decimal.Decimal, error) {
	p, err := r.catalog.GetProduct(ctx, line.ProductID)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "product %s", line.ProductID)
	}

	if it, ok := matchItem(items, func(it ScopedItem) bool { return it.VariantID == "" }); ok {
		if price, ok := r.campaignPrice(p.RegularPrice, it); ok {
			return price, nil
		}
	}

	return r.staticPrice(p.RegularPrice, p.Discount, p.DiscountKind), nil
}

// campaignPrice applies a matched campaign item. A discount of exactly 0 is
// the legacy opt-out sentinel meaning "use the entity's static discount",
// not "0% off", so it reports no match.
func (r *Resolver) campaignPrice(regular decimal.Decimal, it ScopedItem) (decimal.Decimal, bool) {
	discount, kind := it.EffectiveDiscount()
	if discount.IsZero() {
		return decimal.Zero, false
	}
	return ApplyDiscount(regular, discount, kind == catalog.DiscountPercent, r.minorUnits), true
}

func (r *Resolver) staticPrice(regular, discount decimal.Decimal, kind catalog.DiscountKind) decimal.Decimal {
	if discount.IsZero() {
		return RoundMinor(regular, r.minorUnits)
	}
	return ApplyDiscount(regular, discount, kind == catalog.DiscountPercent, r.minorUnits)
}

// matchItem returns the first item satisfying pred, preserving the store's
// priority ordering.
func matchItem(items []ScopedItem, pred func(ScopedItem) bool) (ScopedItem, bool) {
	for _, it := range items {
		if pred(it) {
			return it, true
		}
	}
	return ScopedItem{}, false
}
