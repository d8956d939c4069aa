// Package purchase serves purchase receipts: supplier deliveries whose lines
// are replaced as a whole on every save.
package purchase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-pos/internal/reconcile"
)

// ErrNotFound is returned when a receipt or line does not exist for the tenant.
var ErrNotFound = errors.New("purchase: not found")

// Receipt statuses.
const (
	StatusDraft    = "DRAFT"
	StatusReceived = "RECEIVED"
	StatusCanceled = "CANCELED"
)

// Receipt is a stored purchase receipt header.
type Receipt struct {
	reconcile.PurchaseHeader
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot is a receipt with its lines in row order.
type Snapshot struct {
	Purchase Receipt              `json:"purchaseOrder"`
	Items    []reconcile.LineItem `json:"items"`
}

// Store persists receipts. Every method is tenant scoped.
type Store interface {
	WithTx(ctx context.Context, fn func(Store) error) error
	NextReceiptNumber(ctx context.Context, tenantID uuid.UUID) (string, error)
	CreateReceipt(ctx context.Context, tenantID uuid.UUID, header reconcile.PurchaseHeader) (Receipt, error)
	GetReceipt(ctx context.Context, tenantID uuid.UUID, purchaseID int64, forUpdate bool) (Receipt, error)
	ListReceipts(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Receipt, int64, error)
	UpdateReceipt(ctx context.Context, tenantID uuid.UUID, purchaseID int64, header reconcile.PurchaseHeader) (Receipt, error)
	ListItems(ctx context.Context, tenantID uuid.UUID, purchaseID int64) ([]reconcile.LineItem, error)
	InsertItem(ctx context.Context, tenantID uuid.UUID, purchaseID int64, item reconcile.LineItem) (reconcile.LineItem, error)
	// ItemReceiptID returns the receipt a line belongs to.
	ItemReceiptID(ctx context.Context, tenantID uuid.UUID, itemID int64) (int64, error)
	DeleteItem(ctx context.Context, tenantID uuid.UUID, itemID int64) (int64, error)
}
