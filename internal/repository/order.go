package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geraidev/checkout/internal/domain/order"
	"github.com/geraidev/checkout/internal/domain/payment"
)

const (
	orderColumns = `id, customer_id, items_price, tax_price, shipping_price, total_price,
		discount_amount, payment_token, payment_status, voucher_codes,
		shipping_name, shipping_phone, shipping_address, shipping_courier,
		is_paid, paid_at, created_at, updated_at`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderForUpdateSQL = getOrderSQL + ` FOR UPDATE`

	updateFinalizedSQL = `UPDATE orders SET
			payment_token = $2, payment_status = $3, items_price = $4, total_price = $5,
			discount_amount = $6, voucher_codes = $7,
			shipping_name = $8, shipping_phone = $9, shipping_address = $10, shipping_courier = $11,
			updated_at = now()
		WHERE id = $1`

	countOrderLinesSQL = `SELECT COUNT(*) FROM order_lines WHERE order_id = $1`

	createOrderLineSQL = `INSERT INTO order_lines (id, order_id, product_id, variant_id, name, unit_price, quantity, weight_grams)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)`

	getOrderLinesSQL = `SELECT id, product_id, COALESCE(variant_id, ''), name, unit_price, quantity, weight_grams
		FROM order_lines WHERE order_id = $1 ORDER BY id`

	updatePaymentStatusSQL = `UPDATE orders SET
			payment_status = $2, is_paid = $3, paid_at = COALESCE($4, paid_at), updated_at = now()
		WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Get returns a single order by id.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, id, getOrderSQL)
}

// GetForUpdate returns the order under a row-level exclusive lock so
// finalization and settlement serialize per order.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, id, getOrderForUpdateSQL)
}

func (r *OrderRepository) get(ctx context.Context, id, query string) (*order.Order, error) {
	rows, err := q(ctx, r.pool).Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// UpdateFinalized stamps the order with its finalization outcome: token,
// monetary fields, voucher codes, shipping detail, pending status.
func (r *OrderRepository) UpdateFinalized(ctx context.Context, o *order.Order) error {
	var status *string
	if o.PaymentStatus != nil {
		s := string(*o.PaymentStatus)
		status = &s
	}

	ct, err := q(ctx, r.pool).Exec(ctx, updateFinalizedSQL,
		o.ID, o.PaymentToken, status, o.ItemsPrice, o.TotalPrice,
		o.DiscountAmount, o.VoucherCodes,
		o.Shipping.Name, o.Shipping.Phone, o.Shipping.Address, o.Shipping.Courier,
	)
	if err != nil {
		return fmt.Errorf("updating finalized order %q: %w", o.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// CountLines returns how many lines the order already has.
func (r *OrderRepository) CountLines(ctx context.Context, orderID string) (int, error) {
	var n int
	err := q(ctx, r.pool).QueryRow(ctx, countOrderLinesSQL, orderID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting lines of order %q: %w", orderID, err)
	}
	return n, nil
}

// CreateLines inserts all lines in one pipelined batch.
func (r *OrderRepository) CreateLines(ctx context.Context, lines []order.Line) error {
	if len(lines) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, l := range lines {
		b.Queue(createOrderLineSQL,
			l.ID, l.OrderID, l.ProductID, l.VariantID, l.Name, l.UnitPrice, l.Quantity, l.WeightGrams,
		)
	}

	br := q(ctx, r.pool).SendBatch(ctx, b)
	defer func() { _ = br.Close() }()

	for range lines {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("creating order lines: %w", err)
		}
	}
	return nil
}

// GetLines returns the order's immutable line snapshots.
func (r *OrderRepository) GetLines(ctx context.Context, orderID string) ([]order.Line, error) {
	rows, err := q(ctx, r.pool).Query(ctx, getOrderLinesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting lines of order %q: %w", orderID, err)
	}

	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Line, error) {
		var l order.Line
		err := row.Scan(&l.ID, &l.ProductID, &l.VariantID, &l.Name, &l.UnitPrice, &l.Quantity, &l.WeightGrams)
		l.OrderID = orderID
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting lines of order %q: %w", orderID, err)
	}
	return lines, nil
}

// UpdatePaymentStatus records the settlement outcome.
func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, id string, status payment.Status, isPaid bool, paidAt *time.Time) error {
	ct, err := q(ctx, r.pool).Exec(ctx, updatePaymentStatusSQL, id, string(status), isPaid, paidAt)
	if err != nil {
		return fmt.Errorf("updating payment status of order %q: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status *string
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.ItemsPrice, &o.TaxPrice, &o.ShippingPrice, &o.TotalPrice,
		&o.DiscountAmount, &o.PaymentToken, &status, &o.VoucherCodes,
		&o.Shipping.Name, &o.Shipping.Phone, &o.Shipping.Address, &o.Shipping.Courier,
		&o.IsPaid, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if status != nil {
		s := payment.Status(*status)
		o.PaymentStatus = &s
	}
	return o, err
}
