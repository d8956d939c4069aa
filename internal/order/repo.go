package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-pos/internal/pgstore"
	"github.com/noah-isme/backend-pos/internal/reconcile"
)

const orderColumns = `id, order_number, customer_name, customer_count, table_number, status,
	payment_status, discount, subtotal, tax, total, created_at, updated_at`

const itemColumns = `id, product_id, product_name, sku, quantity, unit_price, tax_rate,
	discount, price_before_tax, tax, total, COALESCE(client_ref, 0)`

// Repo implements Store on Postgres.
type Repo struct {
	db   pgstore.DBTX
	pool pgstore.TxStarter
}

var _ Store = (*Repo)(nil)

// NewRepo builds a Repo on a connection pool.
func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{db: pool, pool: pool}
}

// WithTx runs fn in a transaction. Nested calls reuse the open transaction.
func (r *Repo) WithTx(ctx context.Context, fn func(Store) error) error {
	if r.pool == nil {
		return fn(r)
	}
	return pgstore.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&Repo{db: tx})
	})
}

// NextOrderNumber allocates the tenant's next ORD number.
func (r *Repo) NextOrderNumber(ctx context.Context, tenantID uuid.UUID) (string, error) {
	n, err := pgstore.NextNumber(ctx, r.db, tenantID, pgstore.KindOrder)
	if err != nil {
		return "", err
	}
	return pgstore.FormatNumber("ORD", n), nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerName, &o.CustomerCount, &o.TableNumber, &o.Status,
		&o.PaymentStatus, &o.Discount, &o.Subtotal, &o.Tax, &o.Total, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

func scanItem(row pgx.Row) (reconcile.LineItem, error) {
	var it reconcile.LineItem
	err := row.Scan(
		&it.ID, &it.ProductID, &it.ProductName, &it.SKU, &it.Quantity, &it.UnitPrice, &it.TaxRatePercent,
		&it.Discount, &it.PriceBeforeTax, &it.Tax, &it.Total, &it.ClientRef,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return reconcile.LineItem{}, ErrNotFound
	}
	return it, err
}

// CreateOrder inserts a header. Totals are stored as given.
func (r *Repo) CreateOrder(ctx context.Context, tenantID uuid.UUID, h reconcile.OrderHeader) (Order, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO orders (tenant_id, order_number, customer_name, customer_count, table_number,
			status, payment_status, discount, subtotal, tax, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+orderColumns,
		tenantID, h.OrderNumber, h.CustomerName, h.CustomerCount, h.TableNumber,
		h.Status, h.PaymentStatus, h.Discount, h.Subtotal, h.Tax, h.Total,
	)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, fmt.Errorf("failed to insert order: %w", err)
	}
	return o, nil
}

// GetOrder loads one header.
func (r *Repo) GetOrder(ctx context.Context, tenantID uuid.UUID, orderID int64, forUpdate bool) (Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE tenant_id = $1 AND id = $2`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	o, err := scanOrder(r.db.QueryRow(ctx, q, tenantID, orderID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Order{}, fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}
	return o, err
}

// ListOrders returns a page of headers, newest first, and the total count.
func (r *Repo) ListOrders(ctx context.Context, tenantID uuid.UUID, status string, limit, offset int) ([]Order, int64, error) {
	where := ` WHERE tenant_id = $1`
	args := []any{tenantID}
	if status != "" {
		where += ` AND status = $2`
		args = append(args, status)
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	args = append(args, limit, offset)
	q := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

// UpdateOrder overwrites the mutable header fields. The order number is fixed.
func (r *Repo) UpdateOrder(ctx context.Context, tenantID uuid.UUID, orderID int64, h reconcile.OrderHeader) (Order, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE orders
		SET customer_name = $3, customer_count = $4, table_number = $5, status = $6,
			payment_status = $7, discount = $8, subtotal = $9, tax = $10, total = $11,
			updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+orderColumns,
		tenantID, orderID, h.CustomerName, h.CustomerCount, h.TableNumber, h.Status,
		h.PaymentStatus, h.Discount, h.Subtotal, h.Tax, h.Total,
	)
	o, err := scanOrder(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Order{}, fmt.Errorf("failed to update order %d: %w", orderID, err)
	}
	return o, err
}

// ListItems returns the stored lines of an order in insertion order.
func (r *Repo) ListItems(ctx context.Context, tenantID uuid.UUID, orderID int64) ([]reconcile.LineItem, error) {
	rows, err := r.db.Query(ctx, `SELECT `+itemColumns+` FROM order_items
		WHERE tenant_id = $1 AND order_id = $2 ORDER BY id`, tenantID, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	items := []reconcile.LineItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// InsertItems appends lines in one batch and returns the stored rows in the
// same order.
func (r *Repo) InsertItems(ctx context.Context, tenantID uuid.UUID, orderID int64, items []reconcile.LineItem) ([]reconcile.LineItem, error) {
	if len(items) == 0 {
		return []reconcile.LineItem{}, nil
	}
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`
			INSERT INTO order_items (tenant_id, order_id, product_id, product_name, sku, quantity,
				unit_price, tax_rate, discount, price_before_tax, tax, total, client_ref)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13::bigint, 0))
			RETURNING `+itemColumns,
			tenantID, orderID, it.ProductID, it.ProductName, it.SKU, it.Quantity,
			it.UnitPrice, it.TaxRatePercent, it.Discount, it.PriceBeforeTax, it.Tax, it.Total, it.ClientRef,
		)
	}
	br := r.db.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()

	out := make([]reconcile.LineItem, 0, len(items))
	for range items {
		it, err := scanItem(br.QueryRow())
		if err != nil {
			return nil, fmt.Errorf("failed to insert order item: %w", err)
		}
		out = append(out, it)
	}
	return out, nil
}

// ItemOrderID looks up the parent order of a line.
func (r *Repo) ItemOrderID(ctx context.Context, tenantID uuid.UUID, itemID int64) (int64, error) {
	var orderID int64
	err := r.db.QueryRow(ctx, `SELECT order_id FROM order_items WHERE tenant_id = $1 AND id = $2`,
		tenantID, itemID).Scan(&orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load order item %d: %w", itemID, err)
	}
	return orderID, nil
}

// PatchItem writes the allocated discount and computed amounts of a line.
func (r *Repo) PatchItem(ctx context.Context, tenantID uuid.UUID, itemID int64, p reconcile.ItemPatch) (reconcile.LineItem, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE order_items
		SET discount = $3, tax = $4, price_before_tax = $5, total = $4::numeric + $5::numeric
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+itemColumns,
		tenantID, itemID, p.Discount, p.Tax, p.PriceBeforeTax,
	)
	it, err := scanItem(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return reconcile.LineItem{}, fmt.Errorf("failed to update order item %d: %w", itemID, err)
	}
	return it, err
}

// DeleteItem removes one line.
func (r *Repo) DeleteItem(ctx context.Context, tenantID uuid.UUID, itemID int64) (int64, error) {
	var orderID int64
	err := r.db.QueryRow(ctx, `DELETE FROM order_items WHERE tenant_id = $1 AND id = $2 RETURNING order_id`,
		tenantID, itemID).Scan(&orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to delete order item %d: %w", itemID, err)
	}
	return orderID, nil
}
