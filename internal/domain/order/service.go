package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/geraidev/checkout/internal/domain/cart"
	"github.com/geraidev/checkout/internal/domain/payment"
	"github.com/geraidev/checkout/internal/domain/pricing"
	"github.com/geraidev/checkout/internal/domain/voucher"
)

// Customer identifies the person checking out. Identity is threaded
// explicitly into every call; there is no ambient session lookup.
type Customer struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// FinalizationQuote is the result of BuildFinalizationRequest: the gateway
// token plus the amounts the subsequent Finalize call must reproduce.
type FinalizationQuote struct {
	Token      string
	ItemsPrice decimal.Decimal
	Discount   decimal.Decimal
}

// Service drives the order finalization and settlement flows.
type Service struct {
	carts      cart.Repository
	resolver   *pricing.Resolver
	ledger     *voucher.Ledger
	orders     Repository
	stock      StockStore
	gateway    payment.Gateway
	tx         TxRunner
	minorUnits int32
	now        func() time.Time
}

// NewService creates an order Service with the required collaborators.
func NewService(
	carts cart.Repository,
	resolver *pricing.Resolver,
	ledger *voucher.Ledger,
	orders Repository,
	stock StockStore,
	gateway payment.Gateway,
	tx TxRunner,
	minorUnits int32,
) *Service {
	return &Service{
		carts:      carts,
		resolver:   resolver,
		ledger:     ledger,
		orders:     orders,
		stock:      stock,
		gateway:    gateway,
		tx:         tx,
		minorUnits: minorUnits,
		now:        time.Now,
	}
}

// BuildFinalizationRequest recomputes authoritative prices for every cart
// line, quotes the voucher discount, and obtains a payment token for the
// itemized intent. It refuses with payment.PriceDriftError when any cart
// price went stale, before the gateway is ever contacted. Nothing is
// persisted here; the token becomes durable only in Finalize.
func (s *Service) BuildFinalizationRequest(
	ctx context.Context,
	customer Customer,
	orderID string,
	shippingPrice, taxPrice decimal.Decimal,
	voucherCodes []string,
) (*FinalizationQuote, error) {
	c, err := s.carts.GetByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if len(c.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	now := s.now()
	lines, subtotal, err := s.resolveLines(ctx, c.Lines, now)
	if err != nil {
		return nil, err
	}

	discount := decimal.Zero
	if len(voucherCodes) > 0 {
		discount, err = s.ledger.Quote(ctx, voucherCodes, voucher.Customer{ID: customer.ID, Email: customer.Email}, subtotal)
		if err != nil {
			return nil, err
		}
	}

	intent, err := payment.BuildIntent(orderID, lines, taxPrice, shippingPrice, discount, voucherCodes, payment.CustomerInfo{
		ID:    customer.ID,
		Name:  customer.Name,
		Email: customer.Email,
		Phone: customer.Phone,
	})
	if err != nil {
		return nil, err
	}

	token, err := s.gateway.CreateToken(ctx, intent)
	if err != nil {
		return nil, errors.Wrap(payment.ErrGateway, err.Error())
	}

	return &FinalizationQuote{
		Token:      token,
		ItemsPrice: subtotal,
		Discount:   discount,
	}, nil
}

// Finalize converts the customer's priced, tokenized cart into a durable
// order inside one serializable transaction: vouchers are redeemed under
// row locks, order lines are materialized at most once, and the cart is
// cleared. Any failure rolls the whole transaction back, voucher
// increments included. expectedDiscount is the amount the payment intent
// was built with; a mismatch with the redeemed total fails closed.
func (s *Service) Finalize(
	ctx context.Context,
	customer Customer,
	orderID, token string,
	voucherCodes []string,
	shipping ShippingInfo,
	expectedDiscount decimal.Decimal,
) error {
	if token == "" {
		return ErrMissingToken
	}

	return s.tx.InSerializableTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return errors.Wrap(err, "load order")
		}
		if o.CustomerID != customer.ID {
			return ErrNotFound
		}

		c, err := s.carts.GetByCustomer(ctx, customer.ID)
		if err != nil {
			return errors.Wrap(err, "load cart")
		}
		if len(c.Lines) == 0 {
			return ErrEmptyCart
		}

		// Prices are re-derived inside the transaction: order lines must
		// carry the resolver's output at the instant of finalization,
		// never the price the cart was built with.
		now := s.now()
		resolved, subtotal, err := s.resolveLines(ctx, c.Lines, now)
		if err != nil {
			return err
		}

		discount := decimal.Zero
		if len(voucherCodes) > 0 {
			discount, err = s.ledger.Redeem(ctx, voucherCodes, voucher.Customer{ID: customer.ID, Email: customer.Email}, orderID, subtotal)
			if err != nil {
				return err
			}
		}
		if !discount.Equal(expectedDiscount) {
			return ErrDiscountMismatch
		}

		total := subtotal.Add(o.TaxPrice).Add(o.ShippingPrice).Sub(discount)
		if total.IsNegative() {
			total = decimal.Zero
		}

		status := payment.StatusPending
		o.PaymentToken = token
		o.PaymentStatus = &status
		o.ItemsPrice = subtotal
		o.TotalPrice = pricing.RoundMinor(total, s.minorUnits)
		o.DiscountAmount = discount
		o.VoucherCodes = voucherCodes
		o.Shipping = shipping
		if err := s.orders.UpdateFinalized(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}

		// Idempotence guard: a retried Finalize must not duplicate lines.
		existing, err := s.orders.CountLines(ctx, orderID)
		if err != nil {
			return errors.Wrap(err, "count order lines")
		}
		if existing == 0 {
			lines := make([]Line, len(c.Lines))
			for i, cl := range c.Lines {
				lines[i] = Line{
					ID:          uuid.New().String(),
					OrderID:     orderID,
					ProductID:   cl.ProductID,
					VariantID:   cl.VariantID,
					Name:        cl.Name,
					UnitPrice:   resolved[i].UnitPrice,
					Quantity:    cl.Quantity,
					WeightGrams: cl.WeightGrams,
				}
			}
			if err := s.orders.CreateLines(ctx, lines); err != nil {
				return errors.Wrap(err, "create order lines")
			}
		}

		if err := s.carts.Clear(ctx, c.ID); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		return nil
	})
}

// ApplyPaymentStatus is the idempotent settlement entry point for gateway
// notifications. Only the pending→captured edge decrements stock; every
// other transition, including replays of a terminal status, records nothing
// beyond the status itself or is a no-op.
func (s *Service) ApplyPaymentStatus(ctx context.Context, orderID string, status payment.Status) error {
	if !status.Known() {
		return errors.Errorf("unknown payment status %q", status)
	}

	return s.tx.InSerializableTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return errors.Wrap(err, "load order")
		}

		if !Transition(o.PaymentStatus, status) {
			return nil
		}

		captured := status.Captured()
		var paidAt *time.Time
		if captured {
			t := s.now()
			paidAt = &t
		}
		if err := s.orders.UpdatePaymentStatus(ctx, orderID, status, captured, paidAt); err != nil {
			return errors.Wrap(err, "update payment status")
		}

		if !captured {
			return nil
		}

		lines, err := s.orders.GetLines(ctx, orderID)
		if err != nil {
			return errors.Wrap(err, "load order lines")
		}
		decs := make([]StockDecrement, len(lines))
		for i, l := range lines {
			decs[i] = StockDecrement{
				ProductID: l.ProductID,
				VariantID: l.VariantID,
				Quantity:  l.Quantity,
			}
		}
		if err := s.stock.DecrementStock(ctx, decs); err != nil {
			return errors.Wrap(err, "decrement stock")
		}
		return nil
	})
}

// resolveLines re-derives the authoritative price of every cart line and
// returns the resolved lines plus the items subtotal.
func (s *Service) resolveLines(ctx context.Context, lines []cart.Line, now time.Time) ([]payment.ResolvedLine, decimal.Decimal, error) {
	resolved := make([]payment.ResolvedLine, len(lines))
	subtotal := decimal.Zero
	for i, l := range lines {
		res, err := s.resolver.Resolve(ctx, l, now)
		if err != nil {
			return nil, decimal.Zero, errors.Wrapf(err, "resolve price for product %s", l.ProductID)
		}
		resolved[i] = payment.ResolvedLine{
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Name:      l.Name,
			UnitPrice: res.UnitPrice,
			CartPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Changed:   res.Changed,
		}
		subtotal = subtotal.Add(res.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return resolved, subtotal, nil
}
