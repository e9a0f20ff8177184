// Package voucher validates customer-entered discount codes and atomically
// redeems them under global and per-customer usage limits.
package voucher

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/geraidev/checkout/internal/domain/catalog"
)

// Redemption failure reasons. ErrExhausted is special: it means the voucher
// looked redeemable but the conditional increment lost a last-moment race.
var (
	ErrNotFound      = errors.New("voucher not found")
	ErrNotActive     = errors.New("voucher is not active")
	ErrNotStarted    = errors.New("voucher is not yet valid")
	ErrExpired       = errors.New("voucher expired")
	ErrLimitReached  = errors.New("voucher usage limit reached")
	ErrCustomerLimit = errors.New("voucher limit for this customer reached")
	ErrExhausted     = errors.New("voucher exhausted")
)

// CodeError wraps a redemption failure with the code that caused it.
type CodeError struct {
	Code string
	Err  error
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("voucher %s: %s", e.Code, e.Err)
}

func (e *CodeError) Unwrap() error { return e.Err }

// Voucher grants a discount to whoever enters its code, bounded by an
// activity window and optional usage limits. UsedCount is mutated only
// through the conditional increment in Repository.IncrementUsed.
type Voucher struct {
	ID               string
	Code             string
	DiscountKind     catalog.DiscountKind
	Value            decimal.Decimal
	MaxDiscount      *decimal.Decimal
	StartAt          time.Time
	ExpiresAt        time.Time
	TotalLimit       *int // nil = unlimited
	LimitPerCustomer *int
	UsedCount        int
	Active           bool
}

// Redemption is the append-only proof that a customer used a voucher on an
// order. One row per successful use.
type Redemption struct {
	ID            string
	VoucherID     string
	CustomerID    string
	CustomerEmail string
	OrderID       string
	CreatedAt     time.Time
}

// Customer identifies who is redeeming. Email is the key for per-customer
// limits so guest checkouts are bounded too.
type Customer struct {
	ID    string
	Email string
}

// Repository provides voucher lookups and the two-step locked redemption
// write path. FindByCodeForUpdate must take a row-level exclusive lock when
// called inside a transaction, and IncrementUsed must re-check the total
// limit in its WHERE clause, reporting false when zero rows changed.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Voucher, error)
	FindByCodeForUpdate(ctx context.Context, code string) (*Voucher, error)
	CountRedemptions(ctx context.Context, voucherID, customerEmail string) (int, error)
	IncrementUsed(ctx context.Context, voucherID string) (bool, error)
	CreateRedemption(ctx context.Context, r *Redemption) error
}
