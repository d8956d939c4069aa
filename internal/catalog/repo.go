package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-pos/internal/pgstore"
)

const productColumns = `id, name, sku, price, tax_rate, stock, updated_at`

// Repo implements Store on Postgres.
type Repo struct {
	db pgstore.DBTX
}

var _ Store = (*Repo)(nil)

// NewRepo builds a Repo.
func NewRepo(db pgstore.DBTX) *Repo {
	return &Repo{db: db}
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Price, &p.TaxRate, &p.Stock, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// ListProducts returns products ordered by name. query matches name or SKU.
func (r *Repo) ListProducts(ctx context.Context, tenantID uuid.UUID, query string, limit, offset int) ([]Product, int64, error) {
	where := ` WHERE tenant_id = $1`
	args := []any{tenantID}
	if query != "" {
		where += ` AND (name ILIKE $2 OR sku ILIKE $2)`
		args = append(args, "%"+query+"%")
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	n := len(args)
	q := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY name, id LIMIT $%d OFFSET $%d`, productColumns, where, n+1, n+2)
	rows, err := r.db.Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// GetProduct loads one product.
func (r *Repo) GetProduct(ctx context.Context, tenantID uuid.UUID, id int64) (Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE tenant_id = $1 AND id = $2`, tenantID, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Product{}, fmt.Errorf("failed to fetch product %d: %w", id, err)
	}
	return p, err
}
