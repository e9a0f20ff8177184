package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/geraidev/checkout/internal/domain/catalog"
	"github.com/geraidev/checkout/internal/domain/voucher"
)

const (
	voucherColumns = `id, code, discount_kind, value, max_discount, start_at, expires_at,
		total_limit, limit_per_customer, used_count, active`

	getVoucherByCodeSQL = `SELECT ` + voucherColumns + `
		FROM vouchers WHERE code = UPPER($1)`

	// The row lock is taken before validation and held through the
	// increment; concurrent redemptions of one code serialize here.
	getVoucherByCodeForUpdateSQL = getVoucherByCodeSQL + ` FOR UPDATE`

	countRedemptionsSQL = `SELECT COUNT(*) FROM voucher_redemptions
		WHERE voucher_id = $1 AND customer_email = $2`

	// The predicate re-checks the limit at write time. Zero affected rows
	// means the limit was consumed between validation and write.
	incrementVoucherUsedSQL = `UPDATE vouchers SET used_count = used_count + 1
		WHERE id = $1 AND (total_limit IS NULL OR used_count < total_limit)`

	createRedemptionSQL = `INSERT INTO voucher_redemptions (id, voucher_id, customer_id, customer_email, order_id)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)`

	upsertVoucherSQL = `INSERT INTO vouchers (id, code, discount_kind, value, max_discount,
			start_at, expires_at, total_limit, limit_per_customer, active)
		VALUES ($1, UPPER($2), $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (code) DO UPDATE SET
			discount_kind = EXCLUDED.discount_kind,
			value = EXCLUDED.value,
			max_discount = EXCLUDED.max_discount,
			start_at = EXCLUDED.start_at,
			expires_at = EXCLUDED.expires_at,
			total_limit = EXCLUDED.total_limit,
			limit_per_customer = EXCLUDED.limit_per_customer,
			active = EXCLUDED.active`
)

var _ voucher.Repository = (*VoucherRepository)(nil)

// VoucherRepository implements voucher.Repository backed by PostgreSQL.
// Codes are stored upper-cased; lookups normalize on the database side too
// so mixed-case input always matches.
type VoucherRepository struct {
	pool *pgxpool.Pool
}

// NewVoucherRepository returns a VoucherRepository that uses the given pool.
func NewVoucherRepository(pool *pgxpool.Pool) *VoucherRepository {
	return &VoucherRepository{pool: pool}
}

// FindByCode returns the voucher for a code without locking it.
func (r *VoucherRepository) FindByCode(ctx context.Context, code string) (*voucher.Voucher, error) {
	return r.findByCode(ctx, code, getVoucherByCodeSQL)
}

// FindByCodeForUpdate returns the voucher for a code under a row-level
// exclusive lock. Must run on an ambient transaction.
func (r *VoucherRepository) FindByCodeForUpdate(ctx context.Context, code string) (*voucher.Voucher, error) {
	return r.findByCode(ctx, code, getVoucherByCodeForUpdateSQL)
}

func (r *VoucherRepository) findByCode(ctx context.Context, code, query string) (*voucher.Voucher, error) {
	rows, err := q(ctx, r.pool).Query(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("finding voucher by code %q: %w", code, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVoucher)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, voucher.ErrNotFound
		}
		return nil, fmt.Errorf("finding voucher by code %q: %w", code, err)
	}
	return &v, nil
}

// CountRedemptions counts how often a customer already used a voucher.
func (r *VoucherRepository) CountRedemptions(ctx context.Context, voucherID, customerEmail string) (int, error) {
	var n int
	err := q(ctx, r.pool).QueryRow(ctx, countRedemptionsSQL, voucherID, customerEmail).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting redemptions of voucher %q: %w", voucherID, err)
	}
	return n, nil
}

// IncrementUsed bumps the usage counter while re-checking the total limit
// in the same statement. Returns false when the conditional update affected
// zero rows, i.e. the limit race was lost.
func (r *VoucherRepository) IncrementUsed(ctx context.Context, voucherID string) (bool, error) {
	ct, err := q(ctx, r.pool).Exec(ctx, incrementVoucherUsedSQL, voucherID)
	if err != nil {
		return false, fmt.Errorf("incrementing used count of voucher %q: %w", voucherID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// CreateRedemption appends one redemption row.
func (r *VoucherRepository) CreateRedemption(ctx context.Context, red *voucher.Redemption) error {
	_, err := q(ctx, r.pool).Exec(ctx, createRedemptionSQL,
		red.ID, red.VoucherID, red.CustomerID, red.CustomerEmail, red.OrderID,
	)
	if err != nil {
		return fmt.Errorf("creating redemption of voucher %q: %w", red.VoucherID, err)
	}
	return nil
}

// Upsert inserts or refreshes a voucher definition. Used by the bulk
// ingest tool, not by the checkout path.
func (r *VoucherRepository) Upsert(ctx context.Context, v *voucher.Voucher) error {
	_, err := q(ctx, r.pool).Exec(ctx, upsertVoucherSQL,
		v.ID, v.Code, string(v.DiscountKind), v.Value, v.MaxDiscount,
		v.StartAt, v.ExpiresAt, v.TotalLimit, v.LimitPerCustomer, v.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting voucher %q: %w", v.Code, err)
	}
	return nil
}

func scanVoucher(row pgx.CollectableRow) (voucher.Voucher, error) {
	var (
		v           voucher.Voucher
		kind        string
		maxDiscount *decimal.Decimal
	)
	err := row.Scan(
		&v.ID, &v.Code, &kind, &v.Value, &maxDiscount, &v.StartAt, &v.ExpiresAt,
		&v.TotalLimit, &v.LimitPerCustomer, &v.UsedCount, &v.Active,
	)
	v.DiscountKind = catalog.DiscountKind(kind)
	v.MaxDiscount = maxDiscount
	return v, err
}
