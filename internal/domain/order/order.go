// Package order materializes finalized orders and settles payment-status
// notifications against them.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/geraidev/checkout/internal/domain/payment"
)

var (
	// ErrNotFound is returned when the referenced order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrConflict is a retryable transaction-level failure: serialization
	// conflict, lock wait timeout, or commit deadline.
	ErrConflict = errors.New("finalization conflict, retry")
	// ErrEmptyCart is returned when finalization is attempted on a cart
	// with no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrMissingToken is returned when Finalize is called without a
	// payment token.
	ErrMissingToken = errors.New("payment token required")
	// ErrDiscountMismatch means the discount redeemed inside the
	// transaction differs from the amount the payment intent was built
	// with. This is a programming-contract violation and fails closed.
	ErrDiscountMismatch = errors.New("redeemed discount does not match payment intent")
)

// ShippingInfo is the delivery detail stamped onto the order at finalization.
type ShippingInfo struct {
	Name    string
	Phone   string
	Address string
	Courier string
}

// Order is the durable record of a checkout. PaymentStatus is nil until
// finalization sets it to pending; settlement moves it to a terminal state.
type Order struct {
	ID             string
	CustomerID     string
	ItemsPrice     decimal.Decimal
	TaxPrice       decimal.Decimal
	ShippingPrice  decimal.Decimal
	TotalPrice     decimal.Decimal
	DiscountAmount decimal.Decimal
	PaymentToken   string
	PaymentStatus  *payment.Status
	VoucherCodes   []string
	Shipping       ShippingInfo
	IsPaid         bool
	PaidAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Line is an immutable snapshot of a cart line at the moment of
// finalization. Lines are created at most once per order.
type Line struct {
	ID          string
	OrderID     string
	ProductID   string
	VariantID   string
	Name        string
	UnitPrice   decimal.Decimal
	Quantity    int
	WeightGrams int
}

// Repository defines persistence operations for orders and their lines.
// Methods join the ambient transaction when one is present on the context.
type Repository interface {
	Get(ctx context.Context, id string) (*Order, error)
	// GetForUpdate locks the order row for the remainder of the
	// transaction so finalization and settlement serialize per order.
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	UpdateFinalized(ctx context.Context, o *Order) error
	CountLines(ctx context.Context, orderID string) (int, error)
	CreateLines(ctx context.Context, lines []Line) error
	GetLines(ctx context.Context, orderID string) ([]Line, error)
	UpdatePaymentStatus(ctx context.Context, id string, status payment.Status, isPaid bool, paidAt *time.Time) error
}

// StockDecrement names one stock mutation derived from an order line.
type StockDecrement struct {
	ProductID string
	VariantID string // decrement the variant when set, the product otherwise
	Quantity  int
}

// StockStore applies stock decrements. Implementations pipeline all
// decrements inside the ambient transaction.
type StockStore interface {
	DecrementStock(ctx context.Context, decs []StockDecrement) error
}

// TxRunner executes fn inside a single serializable database transaction
// with bounded lock waits and a commit deadline. Serialization failures and
// lock timeouts surface as ErrConflict.
type TxRunner interface {
	InSerializableTx(ctx context.Context, fn func(ctx context.Context) error) error
}
