package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-pos/internal/pgstore"
)

// ErrUnknownSlug is returned when no tenant owns a subdomain.
var ErrUnknownSlug = errors.New("tenant slug not found")

// Directory resolves store slugs against the tenants table. Hits are kept in
// memory; slugs are never reassigned.
type Directory struct {
	db    pgstore.DBTX
	known sync.Map
}

var _ SlugLookup = (*Directory)(nil)

// NewDirectory builds a Directory on db.
func NewDirectory(db pgstore.DBTX) *Directory {
	return &Directory{db: db}
}

// TenantIDBySlug implements SlugLookup.
func (d *Directory) TenantIDBySlug(ctx context.Context, slug string) (uuid.UUID, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return uuid.Nil, ErrUnknownSlug
	}
	if id, ok := d.known.Load(slug); ok {
		return id.(uuid.UUID), nil
	}
	var id uuid.UUID
	err := d.db.QueryRow(ctx, `SELECT id FROM tenants WHERE slug = $1`, slug).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrUnknownSlug
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to look up tenant %q: %w", slug, err)
	}
	d.known.Store(slug, id)
	return id, nil
}
