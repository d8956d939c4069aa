// Package order serves the order storage API: order headers, their line
// items and the transactional reconcile endpoint used by POS tills.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-pos/internal/reconcile"
)

// ErrNotFound is returned by a Store when a row does not exist for the tenant.
var ErrNotFound = errors.New("order: not found")

// Order is a stored order header.
type Order struct {
	reconcile.OrderHeader
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot is an order with its items as returned by the API.
type Snapshot struct {
	Order Order                `json:"order"`
	Items []reconcile.LineItem `json:"items"`
}

// Store is the persistence used by Service. Every method is tenant scoped.
type Store interface {
	// WithTx runs fn against a transactional Store.
	WithTx(ctx context.Context, fn func(Store) error) error
	NextOrderNumber(ctx context.Context, tenantID uuid.UUID) (string, error)
	CreateOrder(ctx context.Context, tenantID uuid.UUID, header reconcile.OrderHeader) (Order, error)
	// GetOrder loads one header; forUpdate takes a row lock inside a transaction.
	GetOrder(ctx context.Context, tenantID uuid.UUID, orderID int64, forUpdate bool) (Order, error)
	ListOrders(ctx context.Context, tenantID uuid.UUID, status string, limit, offset int) ([]Order, int64, error)
	UpdateOrder(ctx context.Context, tenantID uuid.UUID, orderID int64, header reconcile.OrderHeader) (Order, error)
	ListItems(ctx context.Context, tenantID uuid.UUID, orderID int64) ([]reconcile.LineItem, error)
	InsertItems(ctx context.Context, tenantID uuid.UUID, orderID int64, items []reconcile.LineItem) ([]reconcile.LineItem, error)
	// ItemOrderID returns the order an item belongs to.
	ItemOrderID(ctx context.Context, tenantID uuid.UUID, itemID int64) (int64, error)
	PatchItem(ctx context.Context, tenantID uuid.UUID, itemID int64, patch reconcile.ItemPatch) (reconcile.LineItem, error)
	// DeleteItem removes one item and returns the order it belonged to.
	DeleteItem(ctx context.Context, tenantID uuid.UUID, itemID int64) (int64, error)
}
