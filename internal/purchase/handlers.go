package purchase

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/reconcile"
)

// Handler exposes the purchase receipt endpoints.
type Handler struct {
	Service *Service
}

type itemInput struct {
	ID             int64           `json:"id,omitempty"`
	ProductID      int64           `json:"productId" validate:"gte=0"`
	ProductName    string          `json:"productName" validate:"max=200"`
	SKU            string          `json:"sku,omitempty" validate:"max=64"`
	Quantity       decimal.Decimal `json:"quantity" validate:"gte=0"`
	UnitPrice      decimal.Decimal `json:"unitPrice" validate:"gte=0"`
	TaxRatePercent decimal.Decimal `json:"taxRatePercent" validate:"gte=0,lte=100"`
	Discount       decimal.Decimal `json:"discount" validate:"gte=0"`
	PriceBeforeTax decimal.Decimal `json:"priceBeforeTax" validate:"gte=0"`
	Tax            decimal.Decimal `json:"tax" validate:"gte=0"`
	Total          decimal.Decimal `json:"total" validate:"gte=0"`
	RowOrder       int             `json:"rowOrder,omitempty" validate:"gte=0"`
	ClientRef      int64           `json:"clientRef,omitempty"`
}

func (in itemInput) item() reconcile.LineItem {
	return reconcile.LineItem{
		ID: in.ID, ProductID: in.ProductID, ProductName: in.ProductName, SKU: in.SKU,
		Quantity: in.Quantity, UnitPrice: in.UnitPrice, TaxRatePercent: in.TaxRatePercent,
		Discount: in.Discount, PriceBeforeTax: in.PriceBeforeTax, Tax: in.Tax, Total: in.Total,
		RowOrder: in.RowOrder, ClientRef: in.ClientRef,
	}
}

type headerInput struct {
	ID            int64           `json:"id,omitempty"`
	ReceiptNumber string          `json:"receiptNumber,omitempty"`
	SupplierName  string          `json:"supplierName" validate:"max=160"`
	Status        string          `json:"status,omitempty" validate:"omitempty,oneof=DRAFT RECEIVED CANCELED"`
	Discount      decimal.Decimal `json:"discount" validate:"gte=0"`
	Subtotal      decimal.Decimal `json:"subtotal" validate:"gte=0"`
	Tax           decimal.Decimal `json:"tax" validate:"gte=0"`
	Total         decimal.Decimal `json:"total" validate:"gte=0"`
}

func (in headerInput) header() reconcile.PurchaseHeader {
	return reconcile.PurchaseHeader{
		SupplierName: in.SupplierName, Status: in.Status,
		Discount: in.Discount, Subtotal: in.Subtotal, Tax: in.Tax, Total: in.Total,
	}
}

type snapshotInput struct {
	Purchase headerInput `json:"purchaseOrder"`
	Items    []itemInput `json:"items" validate:"dive"`
}

func (in snapshotInput) snapshot() reconcile.PurchaseSnapshot {
	items := make([]reconcile.LineItem, len(in.Items))
	for i, it := range in.Items {
		items[i] = it.item()
	}
	return reconcile.PurchaseSnapshot{Purchase: in.Purchase.header(), Items: items}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := common.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid id", nil)
		return 0, false
	}
	return id, true
}

// Create handles POST /purchase-orders.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var body snapshotInput
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, err)
		return
	}
	snap, err := h.Service.Create(r.Context(), body.snapshot())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, snap)
}

// List handles GET /purchase-orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	out, total, err := h.Service.List(r.Context(), page, perPage)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Page(w, out, common.NewPagination(page, perPage, total))
}

// Get handles GET /purchase-orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	snap, err := h.Service.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, snap)
}

// Items handles GET /purchase-orders/{id}/items.
func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := h.Service.Items(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	common.Data(w, http.StatusOK, out)
}

// CreateItem handles POST /purchase-order-items.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PurchaseOrderID int64 `json:"purchaseOrderId" validate:"required,gt=0"`
		itemInput
	}
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, err)
		return
	}
	if body.ProductID <= 0 || body.Quantity.Sign() <= 0 {
		common.WriteError(w, common.ValidationError("validation failed", map[string]string{
			"productId": "is required",
			"quantity":  "must be greater than 0",
		}))
		return
	}
	item, err := h.Service.CreateItem(r.Context(), body.PurchaseOrderID, body.item())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, item)
}

// DeleteItem handles DELETE /purchase-order-items/{id}.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteItem(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateHeader handles PUT /purchase-orders/{id}.
func (h *Handler) UpdateHeader(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body headerInput
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, err)
		return
	}
	receipt, err := h.Service.UpdateHeader(r.Context(), id, body.header())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, receipt)
}

// Reconcile handles POST /purchase-orders/{id}/reconcile.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body snapshotInput
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, err)
		return
	}
	snap, err := h.Service.Reconcile(r.Context(), id, body.snapshot())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, snap)
}
