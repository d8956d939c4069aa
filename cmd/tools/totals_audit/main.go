package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"github.com/noah-isme/backend-pos/internal/app"
	"github.com/noah-isme/backend-pos/internal/pgstore"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/reconcile"
)

// totals_audit re-prices every stored order from its lines and reports orders
// whose header totals or line amounts drifted from the pricing engine.
// Exit code 0 = ok, 1 = drift found, 2 = other error.
func main() {
	tenantFlag := flag.String("tenant", "", "only audit this tenant id")
	limit := flag.Int("limit", 0, "stop after this many orders (0 = all)")
	flag.Parse()

	_ = godotenv.Load()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "totals_audit error: DATABASE_URL is not set")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := app.OpenPostgres(ctx, dbURL, "pos-totals-audit")
	if err != nil {
		fmt.Fprintf(os.Stderr, "totals_audit error: %v\n", err)
		os.Exit(2)
	}
	defer pool.Close()

	var only uuid.UUID
	if *tenantFlag != "" {
		if only, err = uuid.Parse(*tenantFlag); err != nil {
			fmt.Fprintf(os.Stderr, "totals_audit error: bad tenant: %v\n", err)
			os.Exit(2)
		}
	}

	drifts, checked, err := run(ctx, pool, only, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "totals_audit error: %v\n", err)
		os.Exit(2)
	}
	for _, d := range drifts {
		fmt.Fprintf(os.Stderr, "DRIFT: %s\n", d)
	}
	if len(drifts) > 0 {
		os.Exit(1)
	}
	fmt.Printf("totals_audit: OK (%d orders)\n", checked)
}

type storedOrder struct {
	ID        int64
	TenantID  uuid.UUID
	Inclusive bool
	Header    reconcile.OrderHeader
}

func run(ctx context.Context, db pgstore.DBTX, only uuid.UUID, limit int) ([]string, int, error) {
	orders, err := loadOrders(ctx, db, only, limit)
	if err != nil {
		return nil, 0, err
	}
	var drifts []string
	for _, o := range orders {
		items, err := loadItems(ctx, db, o.TenantID, o.ID)
		if err != nil {
			return nil, 0, err
		}
		for _, msg := range audit(o.Header, items, pricing.ModeFor(o.Inclusive)) {
			drifts = append(drifts, fmt.Sprintf("tenant=%s order=%s %s", o.TenantID, o.Header.OrderNumber, msg))
		}
	}
	return drifts, len(orders), nil
}

func loadOrders(ctx context.Context, db pgstore.DBTX, only uuid.UUID, limit int) ([]storedOrder, error) {
	q := `
		SELECT o.id, o.tenant_id, o.order_number, o.discount, o.subtotal, o.tax, o.total,
			COALESCE(s.price_includes_tax, false)
		FROM orders o
		LEFT JOIN store_settings s ON s.tenant_id = o.tenant_id
		WHERE o.status <> 'CANCELED' AND ($1::uuid IS NULL OR o.tenant_id = $1)
		ORDER BY o.tenant_id, o.id`
	args := []any{nullableUUID(only)}
	if limit > 0 {
		q += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (storedOrder, error) {
		var o storedOrder
		err := row.Scan(&o.ID, &o.TenantID, &o.Header.OrderNumber, &o.Header.Discount,
			&o.Header.Subtotal, &o.Header.Tax, &o.Header.Total, &o.Inclusive)
		o.Header.ID = o.ID
		return o, err
	})
}

func loadItems(ctx context.Context, db pgstore.DBTX, tenantID uuid.UUID, orderID int64) ([]reconcile.LineItem, error) {
	rows, err := db.Query(ctx, `
		SELECT id, product_id, quantity, unit_price, tax_rate, discount, price_before_tax, tax, total
		FROM order_items WHERE tenant_id = $1 AND order_id = $2 ORDER BY id`, tenantID, orderID)
	if err != nil {
		return nil, fmt.Errorf("load items of order %d: %w", orderID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (reconcile.LineItem, error) {
		var it reconcile.LineItem
		err := row.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.TaxRatePercent,
			&it.Discount, &it.PriceBeforeTax, &it.Tax, &it.Total)
		return it, err
	})
}

func nullableUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

// audit re-prices the stored lines with the header's discount and returns
// one message per field that does not match.
func audit(header reconcile.OrderHeader, stored []reconcile.LineItem, mode pricing.TaxMode) []string {
	priced, totals := reconcile.Price(reconcile.Canonical(stored), header.Discount, mode)

	var out []string
	check := func(field string, got, want interface{ String() string }, equal bool) {
		if !equal {
			out = append(out, fmt.Sprintf("%s stored=%s expected=%s", field, got.String(), want.String()))
		}
	}
	check("subtotal", header.Subtotal, totals.Subtotal, header.Subtotal.Equal(totals.Subtotal))
	check("tax", header.Tax, totals.Tax, header.Tax.Equal(totals.Tax))
	check("total", header.Total, totals.Total, header.Total.Equal(totals.Total))

	byID := make(map[int64]reconcile.LineItem, len(stored))
	for _, it := range stored {
		byID[it.ID] = it
	}
	for _, want := range priced {
		got := byID[want.ID]
		prefix := fmt.Sprintf("item=%d ", want.ID)
		check(prefix+"discount", got.Discount, want.Discount, got.Discount.Equal(want.Discount))
		check(prefix+"priceBeforeTax", got.PriceBeforeTax, want.PriceBeforeTax, got.PriceBeforeTax.Equal(want.PriceBeforeTax))
		check(prefix+"tax", got.Tax, want.Tax, got.Tax.Equal(want.Tax))
	}
	return out
}
