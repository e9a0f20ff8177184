// Package pricing derives the authoritative unit price of a cart line from
// currently-active promotional campaigns.
package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/geraidev/checkout/internal/domain/catalog"
)

// Campaign is a time-bounded promotional rule. Higher Priority wins when
// several campaigns cover the same product; ties break by recency.
type Campaign struct {
	ID              string
	Name            string
	DiscountKind    catalog.DiscountKind
	DefaultDiscount decimal.Decimal
	Priority        int
	StartAt         time.Time
	EndAt           *time.Time // nil = open-ended
	Active          bool
	CreatedAt       time.Time
}

// ScopedItem ties an active campaign to one product, optionally narrowed to
// a single variant, with optional per-item overrides. The parent campaign's
// defaults are flattened in so resolution never re-fetches the campaign.
type ScopedItem struct {
	CampaignID      string
	ProductID       string
	VariantID       string // empty = whole product, all variants
	CustomDiscount  *decimal.Decimal
	CustomKind      catalog.DiscountKind
	DefaultDiscount decimal.Decimal
	DefaultKind     catalog.DiscountKind
	Priority        int
	CampaignCreated time.Time
}

// EffectiveDiscount returns the discount value and kind this item applies:
// the item's own override when set, otherwise the parent campaign's default.
func (it ScopedItem) EffectiveDiscount() (decimal.Decimal, catalog.DiscountKind) {
	if it.CustomDiscount != nil {
		kind := it.CustomKind
		if kind == "" {
			kind = it.DefaultKind
		}
		return *it.CustomDiscount, kind
	}
	return it.DefaultDiscount, it.DefaultKind
}

// Store lists campaign items covering a product whose parent campaign is
// active at the given instant (start_at <= now, end_at null or >= now),
// ordered by campaign priority descending, then campaign recency descending.
type Store interface {
	ActiveItemsForProduct(ctx context.Context, productID string, now time.Time) ([]ScopedItem, error)
}
