package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-pos/internal/pgstore"
)

// ErrUnknownTenant is returned when settings are saved for a tenant row that
// does not exist.
var ErrUnknownTenant = errors.New("settings: unknown tenant")

// Repo implements Store on Postgres.
type Repo struct {
	db pgstore.DBTX
}

var _ Store = (*Repo)(nil)

// NewRepo builds a Repo.
func NewRepo(db pgstore.DBTX) *Repo {
	return &Repo{db: db}
}

// Get loads the settings row or Defaults.
func (r *Repo) Get(ctx context.Context, tenantID uuid.UUID) (StoreSettings, error) {
	var s StoreSettings
	err := r.db.QueryRow(ctx, `
		SELECT store_name, currency_code, price_includes_tax, updated_at
		FROM store_settings WHERE tenant_id = $1`, tenantID,
	).Scan(&s.StoreName, &s.CurrencyCode, &s.PriceIncludesTax, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Defaults(), nil
	}
	if err != nil {
		return StoreSettings{}, fmt.Errorf("failed to fetch settings: %w", err)
	}
	return s, nil
}

// Upsert writes the settings row.
func (r *Repo) Upsert(ctx context.Context, tenantID uuid.UUID, in StoreSettings) (StoreSettings, error) {
	var s StoreSettings
	err := r.db.QueryRow(ctx, `
		INSERT INTO store_settings (tenant_id, store_name, currency_code, price_includes_tax)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id) DO UPDATE SET
			store_name = EXCLUDED.store_name,
			currency_code = EXCLUDED.currency_code,
			price_includes_tax = EXCLUDED.price_includes_tax,
			updated_at = now()
		RETURNING store_name, currency_code, price_includes_tax, updated_at`,
		tenantID, in.StoreName, in.CurrencyCode, in.PriceIncludesTax,
	).Scan(&s.StoreName, &s.CurrencyCode, &s.PriceIncludesTax, &s.UpdatedAt)
	if pgstore.IsForeignKeyViolation(err) {
		return StoreSettings{}, ErrUnknownTenant
	}
	if err != nil {
		return StoreSettings{}, fmt.Errorf("failed to save settings: %w", err)
	}
	return s, nil
}
