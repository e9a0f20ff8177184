package voucher

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/geraidev/checkout/internal/domain/catalog"
	"github.com/geraidev/checkout/internal/domain/pricing"
)

// Ledger is the single mutation path for voucher usage. Quote computes the
// discount a set of codes would grant; Redeem performs the locked,
// limit-enforcing redemption and must run inside the caller's serializable
// transaction.
type Ledger struct {
	vouchers   Repository
	minorUnits int32
	now        func() time.Time
}

// NewLedger creates a Ledger with the given repository and minor-unit
// precision for discount rounding.
func NewLedger(vouchers Repository, minorUnits int32) *Ledger {
	return &Ledger{
		vouchers:   vouchers,
		minorUnits: minorUnits,
		now:        time.Now,
	}
}

// Quote validates every code against an unlocked snapshot and returns the
// total discount the codes would grant on the given subtotal. It performs no
// writes; the payment intent is built from this amount, and Redeem later
// re-derives the identical amount inside the transaction.
func (l *Ledger) Quote(ctx context.Context, codes []string, customer Customer, subtotal decimal.Decimal) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, code := range codes {
		v, err := l.lookup(ctx, code, l.vouchers.FindByCode)
		if err != nil {
			return decimal.Zero, err
		}
		if err := l.validate(ctx, v, customer); err != nil {
			return decimal.Zero, &CodeError{Code: v.Code, Err: err}
		}
		total = total.Add(l.discountFor(v, subtotal))
	}
	return total, nil
}

// Redeem locks each voucher row, re-validates against the fresh locked copy,
// conditionally increments its usage counter, and records a Redemption. Any
// failure aborts; the surrounding transaction rolls every increment back.
func (l *Ledger) Redeem(ctx context.Context, codes []string, customer Customer, orderID string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	total := decimal.Zero
	redeemed := make([]*Voucher, 0, len(codes))

	// Validation pass first: the lock is taken before validation and held
	// through the increment, so concurrent redeemers of the same code
	// serialize here and the loser re-reads the updated count.
	for _, code := range codes {
		v, err := l.lookup(ctx, code, l.vouchers.FindByCodeForUpdate)
		if err != nil {
			return decimal.Zero, err
		}
		if err := l.validate(ctx, v, customer); err != nil {
			return decimal.Zero, &CodeError{Code: v.Code, Err: err}
		}
		total = total.Add(l.discountFor(v, subtotal))
		redeemed = append(redeemed, v)
	}

	for _, v := range redeemed {
		ok, err := l.vouchers.IncrementUsed(ctx, v.ID)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "increment voucher %s", v.Code)
		}
		if !ok {
			// The conditional write found the limit already consumed.
			return decimal.Zero, &CodeError{Code: v.Code, Err: ErrExhausted}
		}

		if err := l.vouchers.CreateRedemption(ctx, &Redemption{
			ID:            uuid.New().String(),
			VoucherID:     v.ID,
			CustomerID:    customer.ID,
			CustomerEmail: customer.Email,
			OrderID:       orderID,
		}); err != nil {
			return decimal.Zero, errors.Wrapf(err, "record redemption of %s", v.Code)
		}
	}

	return total, nil
}

func (l *Ledger) lookup(ctx context.Context, code string, find func(context.Context, string) (*Voucher, error)) (*Voucher, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	v, err := find(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &CodeError{Code: normalized, Err: ErrNotFound}
		}
		return nil, errors.Wrapf(err, "find voucher %s", normalized)
	}
	return v, nil
}

func (l *Ledger) validate(ctx context.Context, v *Voucher, customer Customer) error {
	now := l.now()

	if !v.Active {
		return ErrNotActive
	}
	if now.Before(v.StartAt) {
		return ErrNotStarted
	}
	if now.After(v.ExpiresAt) {
		return ErrExpired
	}
	if v.TotalLimit != nil && v.UsedCount >= *v.TotalLimit {
		return ErrLimitReached
	}

	if v.LimitPerCustomer != nil {
		used, err := l.vouchers.CountRedemptions(ctx, v.ID, customer.Email)
		if err != nil {
			return errors.Wrap(err, "count redemptions")
		}
		if used >= *v.LimitPerCustomer {
			return ErrCustomerLimit
		}
	}

	return nil
}

// discountFor computes the discount one voucher grants on a subtotal:
// percent of subtotal capped at MaxDiscount, or fixed value capped at the
// subtotal itself.
func (l *Ledger) discountFor(v *Voucher, subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch v.DiscountKind {
	case catalog.DiscountPercent:
		amount = subtotal.Mul(v.Value).Div(decimal.NewFromInt(100))
		if v.MaxDiscount != nil && amount.GreaterThan(*v.MaxDiscount) {
			amount = *v.MaxDiscount
		}
	default:
		amount = decimal.Min(v.Value, subtotal)
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return pricing.RoundMinor(amount, l.minorUnits)
}
