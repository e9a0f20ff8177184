package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/geraidev/checkout/internal/domain/catalog"
	"github.com/geraidev/checkout/internal/domain/pricing"
)

// Items are flattened with their parent campaign and pre-sorted by the
// database: priority descending, newest campaign first on ties. The
// resolver depends on this ordering.
const activeItemsSQL = `SELECT ci.campaign_id, ci.product_id, COALESCE(ci.variant_id, ''),
		ci.custom_discount, COALESCE(ci.custom_kind, ''),
		c.default_discount, c.discount_kind, c.priority, c.created_at
	FROM campaign_items ci
	JOIN campaigns c ON c.id = ci.campaign_id
	WHERE ci.product_id = $1
		AND c.active = TRUE
		AND c.start_at <= $2
		AND (c.end_at IS NULL OR c.end_at >= $2)
	ORDER BY c.priority DESC, c.created_at DESC`

var _ pricing.Store = (*CampaignStore)(nil)

// CampaignStore implements pricing.Store backed by PostgreSQL.
type CampaignStore struct {
	pool *pgxpool.Pool
}

// NewCampaignStore returns a CampaignStore that uses the given pool.
func NewCampaignStore(pool *pgxpool.Pool) *CampaignStore {
	return &CampaignStore{pool: pool}
}

// ActiveItemsForProduct lists campaign items covering the product whose
// parent campaign is active at the given instant.
func (s *CampaignStore) ActiveItemsForProduct(ctx context.Context, productID string, now time.Time) ([]pricing.ScopedItem, error) {
	rows, err := q(ctx, s.pool).Query(ctx, activeItemsSQL, productID, now)
	if err != nil {
		return nil, fmt.Errorf("listing active campaign items for product %q: %w", productID, err)
	}
	return pgx.CollectRows(rows, scanScopedItem)
}

func scanScopedItem(row pgx.CollectableRow) (pricing.ScopedItem, error) {
	var (
		it          pricing.ScopedItem
		custom      *decimal.Decimal
		customKind  string
		defaultKind string
	)
	err := row.Scan(
		&it.CampaignID, &it.ProductID, &it.VariantID,
		&custom, &customKind,
		&it.DefaultDiscount, &defaultKind, &it.Priority, &it.CampaignCreated,
	)
	it.CustomDiscount = custom
	it.CustomKind = catalog.DiscountKind(customKind)
	it.DefaultKind = catalog.DiscountKind(defaultKind)
	return it, err
}
