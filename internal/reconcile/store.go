package reconcile

import (
	"context"

	"github.com/shopspring/decimal"
)

// OrderHeader is the persisted header of a sales order.
type OrderHeader struct {
	ID            int64           `json:"id,omitempty"`
	OrderNumber   string          `json:"orderNumber,omitempty"`
	CustomerName  string          `json:"customerName"`
	CustomerCount int             `json:"customerCount"`
	TableNumber   string          `json:"tableNumber,omitempty"`
	Status        string          `json:"status,omitempty"`
	PaymentStatus string          `json:"paymentStatus,omitempty"`
	Discount      decimal.Decimal `json:"discount"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
}

// PurchaseHeader is the persisted header of a purchase receipt.
type PurchaseHeader struct {
	ID            int64           `json:"id,omitempty"`
	ReceiptNumber string          `json:"receiptNumber,omitempty"`
	SupplierName  string          `json:"supplierName"`
	Status        string          `json:"status,omitempty"`
	Discount      decimal.Decimal `json:"discount"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
}

// ItemPatch holds the only fields of a stored order line a save may change.
type ItemPatch struct {
	Discount       decimal.Decimal `json:"discount"`
	Tax            decimal.Decimal `json:"tax"`
	PriceBeforeTax decimal.Decimal `json:"priceBeforeTax"`
}

// Product is a catalog entry used to build a new line.
type Product struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	SKU     string          `json:"sku"`
	Price   decimal.Decimal `json:"price"`
	TaxRate decimal.Decimal `json:"taxRate"`
}

// Settings is the subset of store settings pricing depends on.
type Settings struct {
	PriceIncludesTax bool `json:"priceIncludesTax"`
}

// OrderSnapshot is an order header with its items.
type OrderSnapshot struct {
	Order OrderHeader `json:"order"`
	Items []LineItem  `json:"items"`
}

// PurchaseSnapshot is a purchase receipt header with its items.
type PurchaseSnapshot struct {
	Purchase PurchaseHeader `json:"purchaseOrder"`
	Items    []LineItem     `json:"items"`
}

// OrderStore is the per-call order storage API.
type OrderStore interface {
	GetOrder(ctx context.Context, orderID int64) (OrderHeader, error)
	ListOrderItems(ctx context.Context, orderID int64) ([]LineItem, error)
	AddOrderItems(ctx context.Context, orderID int64, items []LineItem) ([]LineItem, error)
	UpdateOrderItem(ctx context.Context, itemID int64, patch ItemPatch) error
	UpdateOrder(ctx context.Context, orderID int64, header OrderHeader) error
	DeleteOrderItem(ctx context.Context, itemID int64) error
}

// AtomicOrderStore persists a whole order edit in one server-side transaction.
// Items carry persisted ids for kept lines and client refs for new ones.
type AtomicOrderStore interface {
	ReconcileOrder(ctx context.Context, orderID int64, desired OrderSnapshot) (OrderSnapshot, error)
}

// PurchaseStore is the per-call purchase receipt storage API.
type PurchaseStore interface {
	GetPurchase(ctx context.Context, purchaseID int64) (PurchaseHeader, error)
	ListPurchaseItems(ctx context.Context, purchaseID int64) ([]LineItem, error)
	CreatePurchaseItem(ctx context.Context, purchaseID int64, item LineItem) (LineItem, error)
	DeletePurchaseItem(ctx context.Context, itemID int64) error
	UpdatePurchase(ctx context.Context, purchaseID int64, header PurchaseHeader) error
}

// AtomicPurchaseStore replaces a receipt's items and header in one transaction.
type AtomicPurchaseStore interface {
	ReconcilePurchase(ctx context.Context, purchaseID int64, desired PurchaseSnapshot) (PurchaseSnapshot, error)
}

// Catalog looks up products for new lines.
type Catalog interface {
	Product(ctx context.Context, productID int64) (Product, error)
}

// SettingsSource reads the store-wide tax configuration.
type SettingsSource interface {
	StoreSettings(ctx context.Context) (Settings, error)
}
