// seed-db populates a development database with demo catalog, campaign,
// cart, order, and voucher data for exercising the checkout flow end to end.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geraidev/checkout/internal/repository"
)

const demoCustomerID = "cust-demo"

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	for _, step := range []struct {
		name string
		fn   func(context.Context, *pgxpool.Pool) error
	}{
		{"products", seedProducts},
		{"campaigns", seedCampaigns},
		{"cart", seedCart},
		{"order", seedOrder},
		{"vouchers", seedVouchers},
	} {
		slog.Info("seeding", slog.String("step", step.name))
		if err := step.fn(ctx, pool); err != nil {
			return errors.Wrapf(err, "seed %s", step.name)
		}
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool) error {
	products := []struct {
		id, name, price, discount, kind string
		stock, weight                   int
	}{
		{"prod-arabica", "Arabica Beans 1kg", "130000", "0", "percent", 120, 1000},
		{"prod-robusta", "Robusta Beans 1kg", "95000", "10", "percent", 200, 1000},
		{"prod-dripper", "Ceramic Dripper V60", "185000", "20000", "fixed", 35, 450},
		{"prod-grinder", "Hand Grinder", "420000", "0", "percent", 18, 800},
	}
	for _, p := range products {
		_, err := pool.Exec(ctx, `INSERT INTO products (id, name, regular_price, discount, discount_kind, stock, weight_grams)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, regular_price = EXCLUDED.regular_price,
				discount = EXCLUDED.discount, discount_kind = EXCLUDED.discount_kind,
				stock = EXCLUDED.stock, weight_grams = EXCLUDED.weight_grams`,
			p.id, p.name, p.price, p.discount, p.kind, p.stock, p.weight,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.id)
		}
	}

	variants := []struct {
		id, productID, name, price, discount, kind string
		stock                                      int
	}{
		{"var-arabica-250", "prod-arabica", "Arabica Beans 250g", "40000", "0", "percent", 300},
		{"var-arabica-500", "prod-arabica", "Arabica Beans 500g", "72000", "5", "percent", 150},
	}
	for _, v := range variants {
		_, err := pool.Exec(ctx, `INSERT INTO product_variants (id, product_id, name, regular_price, discount, discount_kind, stock)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, regular_price = EXCLUDED.regular_price,
				discount = EXCLUDED.discount, discount_kind = EXCLUDED.discount_kind,
				stock = EXCLUDED.stock`,
			v.id, v.productID, v.name, v.price, v.discount, v.kind, v.stock,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert variant %s", v.id)
		}
	}
	return nil
}

func seedCampaigns(ctx context.Context, pool *pgxpool.Pool) error {
	campaigns := []struct {
		id, name, kind, discount string
		priority                 int
	}{
		{"camp-payday", "Payday Sale", "percent", "15", 10},
		{"camp-flash", "Flash Sale", "percent", "25", 50},
	}
	for _, c := range campaigns {
		_, err := pool.Exec(ctx, `INSERT INTO campaigns (id, name, discount_kind, default_discount, priority, start_at, end_at, active)
			VALUES ($1, $2, $3, $4, $5, now() - interval '1 day', now() + interval '30 days', TRUE)
			ON CONFLICT (id) DO UPDATE SET
				default_discount = EXCLUDED.default_discount, priority = EXCLUDED.priority,
				start_at = EXCLUDED.start_at, end_at = EXCLUDED.end_at, active = TRUE`,
			c.id, c.name, c.kind, c.discount, c.priority,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert campaign %s", c.id)
		}
	}

	items := []struct {
		id, campaignID, productID string
		variantID                 any
		customDiscount            any
		customKind                any
	}{
		// Payday covers the whole arabica product at the campaign default.
		{"ci-payday-arabica", "camp-payday", "prod-arabica", nil, nil, nil},
		// Flash sale targets the 500g variant with its own fixed cut.
		{"ci-flash-arabica-500", "camp-flash", "prod-arabica", "var-arabica-500", "10000", "fixed"},
		{"ci-payday-dripper", "camp-payday", "prod-dripper", nil, nil, nil},
	}
	for _, it := range items {
		_, err := pool.Exec(ctx, `INSERT INTO campaign_items (id, campaign_id, product_id, variant_id, custom_discount, custom_kind)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				variant_id = EXCLUDED.variant_id, custom_discount = EXCLUDED.custom_discount,
				custom_kind = EXCLUDED.custom_kind`,
			it.id, it.campaignID, it.productID, it.variantID, it.customDiscount, it.customKind,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert campaign item %s", it.id)
		}
	}
	return nil
}

func seedCart(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `INSERT INTO carts (id, customer_id, items_price, total_price)
		VALUES ('cart-demo', $1, 202000, 202000)
		ON CONFLICT (customer_id) DO NOTHING`, demoCustomerID)
	if err != nil {
		return errors.Wrap(err, "upsert cart")
	}

	lines := []struct {
		id, productID string
		variantID     any
		name, price   string
		qty, weight   int
	}{
		{"cl-demo-1", "prod-arabica", nil, "Arabica Beans 1kg", "130000", 1, 1000},
		{"cl-demo-2", "prod-arabica", "var-arabica-500", "Arabica Beans 500g", "72000", 1, 500},
	}
	for _, l := range lines {
		_, err := pool.Exec(ctx, `INSERT INTO cart_lines (id, cart_id, product_id, variant_id, name, unit_price, quantity, weight_grams)
			VALUES ($1, 'cart-demo', $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			l.id, l.productID, l.variantID, l.name, l.price, l.qty, l.weight,
		)
		if err != nil {
			return errors.Wrapf(err, "insert cart line %s", l.id)
		}
	}
	return nil
}

func seedOrder(ctx context.Context, pool *pgxpool.Pool) error {
	// A draft order to finalize against, with shipping and tax already chosen.
	_, err := pool.Exec(ctx, `INSERT INTO orders (id, customer_id, tax_price, shipping_price)
		VALUES ('order-demo', $1, 15000, 10000)
		ON CONFLICT (id) DO NOTHING`, demoCustomerID)
	return err
}

func seedVouchers(ctx context.Context, pool *pgxpool.Pool) error {
	vouchers := []struct {
		id, code, kind, value string
		maxDiscount           any
		totalLimit            any
		perCustomer           any
	}{
		{"vch-kopi10", "KOPI10", "percent", "10", "50000", nil, 3},
		{"vch-hemat15", "HEMAT15K", "fixed", "15000", nil, 500, 1},
	}
	for _, v := range vouchers {
		_, err := pool.Exec(ctx, `INSERT INTO vouchers (id, code, discount_kind, value, max_discount, start_at, expires_at, total_limit, limit_per_customer, active)
			VALUES ($1, $2, $3, $4, $5, now() - interval '1 day', now() + interval '90 days', $6, $7, TRUE)
			ON CONFLICT (code) DO UPDATE SET
				discount_kind = EXCLUDED.discount_kind, value = EXCLUDED.value,
				max_discount = EXCLUDED.max_discount, expires_at = EXCLUDED.expires_at,
				total_limit = EXCLUDED.total_limit, limit_per_customer = EXCLUDED.limit_per_customer,
				active = TRUE`,
			v.id, v.code, v.kind, v.value, v.maxDiscount, v.totalLimit, v.perCustomer,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert voucher %s", v.code)
		}
	}
	return nil
}
