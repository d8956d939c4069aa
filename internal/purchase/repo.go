package purchase

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

const receiptColumns = `id, receipt_number, supplier_name, status, discount, subtotal, tax, total,
	created_at, updated_at`

const itemColumns = `id, product_id, product_name, sku, quantity, unit_price, tax_rate,
	discount, price_before_tax, tax, total, row_order`

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

// WithTx runs fn in a transaction.
func (r *Repo) WithTx(ctx context.Context, fn func(Store) error) error {
	if r.pool == nil {
		return fn(r)
	}
	return pgstore.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&Repo{db: tx})
	})
}

// NextReceiptNumber allocates the tenant's next PO number.
func (r *Repo) NextReceiptNumber(ctx context.Context, tenantID uuid.UUID) (string, error) {
	n, err := pgstore.NextNumber(ctx, r.db, tenantID, pgstore.KindPurchase)
	if err != nil {
		return "", err
	}
	return pgstore.FormatNumber("PO", n), nil
}

func scanReceipt(row pgx.Row) (Receipt, error) {
	var p Receipt
	err := row.Scan(&p.ID, &p.ReceiptNumber, &p.SupplierName, &p.Status, &p.Discount, &p.Subtotal,
		&p.Tax, &p.Total, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Receipt{}, ErrNotFound
	}
	return p, err
}

func scanItem(row pgx.Row) (reconcile.LineItem, error) {
	var it reconcile.LineItem
	err := row.Scan(&it.ID, &it.ProductID, &it.ProductName, &it.SKU, &it.Quantity, &it.UnitPrice,
		&it.TaxRatePercent, &it.Discount, &it.PriceBeforeTax, &it.Tax, &it.Total, &it.RowOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return reconcile.LineItem{}, ErrNotFound
	}
	return it, err
}

// CreateReceipt inserts a header.
func (r *Repo) CreateReceipt(ctx context.Context, tenantID uuid.UUID, h reconcile.PurchaseHeader) (Receipt, error) {
	p, err := scanReceipt(r.db.QueryRow(ctx, `
		INSERT INTO purchase_orders (tenant_id, receipt_number, supplier_name, status, discount, subtotal, tax, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+receiptColumns,
		tenantID, h.ReceiptNumber, h.SupplierName, h.Status, h.Discount, h.Subtotal, h.Tax, h.Total))
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to insert purchase order: %w", err)
	}
	return p, nil
}

// GetReceipt loads one header.
func (r *Repo) GetReceipt(ctx context.Context, tenantID uuid.UUID, purchaseID int64, forUpdate bool) (Receipt, error) {
	q := `SELECT ` + receiptColumns + ` FROM purchase_orders WHERE tenant_id = $1 AND id = $2`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	p, err := scanReceipt(r.db.QueryRow(ctx, q, tenantID, purchaseID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Receipt{}, fmt.Errorf("failed to fetch purchase order %d: %w", purchaseID, err)
	}
	return p, err
}

// ListReceipts returns a page of receipts, newest first.
func (r *Repo) ListReceipts(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Receipt, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders WHERE tenant_id = $1`, tenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count purchase orders: %w", err)
	}
	rows, err := r.db.Query(ctx, `SELECT `+receiptColumns+` FROM purchase_orders
		WHERE tenant_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query purchase orders: %w", err)
	}
	defer rows.Close()

	out := []Receipt{}
	for rows.Next() {
		p, err := scanReceipt(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan purchase order: %w", err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// UpdateReceipt overwrites supplier, status, discount and totals.
func (r *Repo) UpdateReceipt(ctx context.Context, tenantID uuid.UUID, purchaseID int64, h reconcile.PurchaseHeader) (Receipt, error) {
	p, err := scanReceipt(r.db.QueryRow(ctx, `
		UPDATE purchase_orders
		SET supplier_name = $3, status = $4, discount = $5, subtotal = $6, tax = $7, total = $8, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+receiptColumns,
		tenantID, purchaseID, h.SupplierName, h.Status, h.Discount, h.Subtotal, h.Tax, h.Total))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Receipt{}, fmt.Errorf("failed to update purchase order %d: %w", purchaseID, err)
	}
	return p, err
}

// ListItems returns the lines of a receipt in row order.
func (r *Repo) ListItems(ctx context.Context, tenantID uuid.UUID, purchaseID int64) ([]reconcile.LineItem, error) {
	rows, err := r.db.Query(ctx, `SELECT `+itemColumns+` FROM purchase_order_items
		WHERE tenant_id = $1 AND purchase_order_id = $2 ORDER BY row_order, id`, tenantID, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase order items: %w", err)
	}
	defer rows.Close()

	items := []reconcile.LineItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// InsertItem stores one line.
func (r *Repo) InsertItem(ctx context.Context, tenantID uuid.UUID, purchaseID int64, it reconcile.LineItem) (reconcile.LineItem, error) {
	out, err := scanItem(r.db.QueryRow(ctx, `
		INSERT INTO purchase_order_items (tenant_id, purchase_order_id, product_id, product_name, sku,
			quantity, unit_price, tax_rate, discount, price_before_tax, tax, total, row_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+itemColumns,
		tenantID, purchaseID, it.ProductID, it.ProductName, it.SKU, it.Quantity, it.UnitPrice,
		it.TaxRatePercent, it.Discount, it.PriceBeforeTax, it.Tax, it.Total, it.RowOrder))
	if err != nil {
		return reconcile.LineItem{}, fmt.Errorf("failed to insert purchase order item: %w", err)
	}
	return out, nil
}

// ItemReceiptID looks up the receipt of a line.
func (r *Repo) ItemReceiptID(ctx context.Context, tenantID uuid.UUID, itemID int64) (int64, error) {
	var purchaseID int64
	err := r.db.QueryRow(ctx, `SELECT purchase_order_id FROM purchase_order_items WHERE tenant_id = $1 AND id = $2`,
		tenantID, itemID).Scan(&purchaseID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load purchase order item %d: %w", itemID, err)
	}
	return purchaseID, nil
}

// DeleteItem removes one line and returns its receipt id.
func (r *Repo) DeleteItem(ctx context.Context, tenantID uuid.UUID, itemID int64) (int64, error) {
	var purchaseID int64
	err := r.db.QueryRow(ctx, `DELETE FROM purchase_order_items WHERE tenant_id = $1 AND id = $2
		RETURNING purchase_order_id`, tenantID, itemID).Scan(&purchaseID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to delete purchase order item %d: %w", itemID, err)
	}
	return purchaseID, nil
}
