package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geraidev/checkout/internal/domain/cart"
)

const (
	getCartSQL = `SELECT id, customer_id, items_price, total_price
		FROM carts WHERE customer_id = $1`

	getCartLinesSQL = `SELECT id, product_id, COALESCE(variant_id, ''), name, unit_price, quantity, weight_grams
		FROM cart_lines WHERE cart_id = $1 ORDER BY id`

	deleteCartLinesSQL = `DELETE FROM cart_lines WHERE cart_id = $1`

	resetCartSQL = `UPDATE carts
		SET items_price = 0, total_price = 0, updated_at = now() WHERE id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetByCustomer loads the customer's cart with all its lines.
func (r *CartRepository) GetByCustomer(ctx context.Context, customerID string) (*cart.Cart, error) {
	db := q(ctx, r.pool)

	rows, err := db.Query(ctx, getCartSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("getting cart for customer %q: %w", customerID, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart for customer %q: %w", customerID, err)
	}

	lineRows, err := db.Query(ctx, getCartLinesSQL, c.ID)
	if err != nil {
		return nil, fmt.Errorf("getting cart lines for cart %q: %w", c.ID, err)
	}
	c.Lines, err = pgx.CollectRows(lineRows, scanCartLine)
	if err != nil {
		return nil, fmt.Errorf("getting cart lines for cart %q: %w", c.ID, err)
	}
	return &c, nil
}

// Clear removes every line and zeroes the cached totals. Runs on the
// ambient transaction during finalization.
func (r *CartRepository) Clear(ctx context.Context, cartID string) error {
	db := q(ctx, r.pool)

	if _, err := db.Exec(ctx, deleteCartLinesSQL, cartID); err != nil {
		return fmt.Errorf("deleting lines of cart %q: %w", cartID, err)
	}
	if _, err := db.Exec(ctx, resetCartSQL, cartID); err != nil {
		return fmt.Errorf("resetting cart %q: %w", cartID, err)
	}
	return nil
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var c cart.Cart
	err := row.Scan(&c.ID, &c.CustomerID, &c.ItemsPrice, &c.TotalPrice)
	return c, err
}

func scanCartLine(row pgx.CollectableRow) (cart.Line, error) {
	var l cart.Line
	err := row.Scan(&l.ID, &l.ProductID, &l.VariantID, &l.Name, &l.UnitPrice, &l.Quantity, &l.WeightGrams)
	return l, err
}
