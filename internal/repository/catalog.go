package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geraidev/checkout/internal/domain/catalog"
	"github.com/geraidev/checkout/internal/domain/order"
)

const (
	getProductSQL = `SELECT id, name, regular_price, discount, discount_kind, stock, weight_grams
		FROM products WHERE id = $1`

	getVariantSQL = `SELECT id, product_id, name, regular_price, discount, discount_kind, stock
		FROM product_variants WHERE id = $1`

	decrementProductStockSQL = `UPDATE products
		SET stock = stock - $2 WHERE id = $1 AND stock >= $2`

	decrementVariantStockSQL = `UPDATE product_variants
		SET stock = stock - $2 WHERE id = $1 AND stock >= $2`
)

// ErrInsufficientStock is returned when a settlement decrement would drive
// stock negative.
var ErrInsufficientStock = errors.New("insufficient stock")

var (
	_ catalog.Repository = (*CatalogRepository)(nil)
	_ order.StockStore   = (*CatalogRepository)(nil)
)

// CatalogRepository implements catalog.Repository and order.StockStore
// backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetProduct returns a single product by its identifier.
func (r *CatalogRepository) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	rows, err := q(ctx, r.pool).Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetVariant returns a single product variant by its identifier.
func (r *CatalogRepository) GetVariant(ctx context.Context, id string) (*catalog.Variant, error) {
	rows, err := q(ctx, r.pool).Query(ctx, getVariantSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting variant %q: %w", id, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVariant)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting variant %q: %w", id, err)
	}
	return &v, nil
}

// DecrementStock applies all decrements as one pipelined batch on the
// ambient transaction. Each statement is conditional on remaining stock, so
// a sold-out line fails the batch instead of going negative.
func (r *CatalogRepository) DecrementStock(ctx context.Context, decs []order.StockDecrement) error {
	if len(decs) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, d := range decs {
		if d.VariantID != "" {
			b.Queue(decrementVariantStockSQL, d.VariantID, d.Quantity)
		} else {
			b.Queue(decrementProductStockSQL, d.ProductID, d.Quantity)
		}
	}

	br := q(ctx, r.pool).SendBatch(ctx, b)
	defer func() { _ = br.Close() }()

	for _, d := range decs {
		ct, err := br.Exec()
		if err != nil {
			return fmt.Errorf("decrementing stock for product %q: %w", d.ProductID, err)
		}
		if ct.RowsAffected() == 0 {
			return errors.Wrapf(ErrInsufficientStock, "product %s variant %s", d.ProductID, d.VariantID)
		}
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var (
		p    catalog.Product
		kind string
	)
	err := row.Scan(&p.ID, &p.Name, &p.RegularPrice, &p.Discount, &kind, &p.Stock, &p.WeightGrams)
	p.DiscountKind = catalog.DiscountKind(kind)
	return p, err
}

func scanVariant(row pgx.CollectableRow) (catalog.Variant, error) {
	var (
		v    catalog.Variant
		kind string
	)
	err := row.Scan(&v.ID, &v.ProductID, &v.Name, &v.RegularPrice, &v.Discount, &kind, &v.Stock)
	v.DiscountKind = catalog.DiscountKind(kind)
	return v, err
}
