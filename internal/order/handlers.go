package order

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/reconcile"
)

// Handler exposes the order storage endpoints.
type Handler struct {
	Service *Service
}

type itemInput struct {
	ID             int64           `json:"id,omitempty" validate:"gte=0"`
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
	ClientRef      int64           `json:"clientRef,omitempty" validate:"gte=0"`
}

func (in itemInput) item() reconcile.LineItem {
	return reconcile.LineItem{
		ID: in.ID, ProductID: in.ProductID, ProductName: in.ProductName, SKU: in.SKU,
		Quantity: in.Quantity, UnitPrice: in.UnitPrice, TaxRatePercent: in.TaxRatePercent,
		Discount: in.Discount, PriceBeforeTax: in.PriceBeforeTax, Tax: in.Tax, Total: in.Total,
		RowOrder: in.RowOrder, ClientRef: in.ClientRef,
	}
}

func items(in []itemInput) []reconcile.LineItem {
	out := make([]reconcile.LineItem, len(in))
	for i, it := range in {
		out[i] = it.item()
	}
	return out
}

// newItems rejects lines that cannot be stored as new rows.
func newItems(in []itemInput) ([]reconcile.LineItem, error) {
	details := map[string]string{}
	for i, it := range in {
		if it.ProductID <= 0 {
			details["items["+strconv.Itoa(i)+"].productId"] = "is required"
		}
		if it.Quantity.Sign() <= 0 {
			details["items["+strconv.Itoa(i)+"].quantity"] = "must be greater than 0"
		}
	}
	if len(details) > 0 {
		return nil, common.ValidationError("validation failed", details)
	}
	return items(in), nil
}

type headerInput struct {
	ID            int64           `json:"id,omitempty"`
	OrderNumber   string          `json:"orderNumber,omitempty"`
	CustomerName  string          `json:"customerName" validate:"max=120"`
	CustomerCount int             `json:"customerCount" validate:"gte=0"`
	TableNumber   string          `json:"tableNumber,omitempty" validate:"max=20"`
	Status        string          `json:"status,omitempty" validate:"omitempty,oneof=OPEN SERVED CLOSED CANCELED"`
	PaymentStatus string          `json:"paymentStatus,omitempty" validate:"omitempty,oneof=UNPAID PAID"`
	Discount      decimal.Decimal `json:"discount" validate:"gte=0"`
	Subtotal      decimal.Decimal `json:"subtotal" validate:"gte=0"`
	Tax           decimal.Decimal `json:"tax" validate:"gte=0"`
	Total         decimal.Decimal `json:"total" validate:"gte=0"`
}

func (in headerInput) header() reconcile.OrderHeader {
	return reconcile.OrderHeader{
		CustomerName: in.CustomerName, CustomerCount: in.CustomerCount, TableNumber: in.TableNumber,
		Status: in.Status, PaymentStatus: in.PaymentStatus,
		Discount: in.Discount, Subtotal: in.Subtotal, Tax: in.Tax, Total: in.Total,
	}
}

type snapshotInput struct {
	Order headerInput `json:"order"`
	Items []itemInput `json:"items" validate:"dive"`
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := common.ParseID(chi.URLParam(r, name))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid "+name, nil)
		return 0, false
	}
	return id, true
}

// Create handles POST /orders.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var body snapshotInput
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, err)
		return
	}
	lines, err := newItems(body.Items)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	snap, err := h.Service.Create(r.Context(), CreateInput{Order: body.Order.header(), Items: lines})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, snap)
}

// List handles GET /orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	orders, total, err := h.Service.List(r.Context(), r.URL.Query().Get("status"), page, perPage)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Page(w, orders, common.NewPagination(page, perPage, total))
}

// Get handles GET /orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
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

// Items handles GET /orders/{id}/items. Responses are never cached.
func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
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

// AddItems handles POST /orders/{id}/items.
func (h *Handler) AddItems(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Items []itemInput `json:"items" validate:"required,min=1,dive"`
	}
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, err)
		return
	}
	lines, err := newItems(body.Items)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.Service.AddItems(r.Context(), id, lines)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, out)
}

// PatchItem handles PUT /order-items/{id}.
func (h *Handler) PatchItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body reconcile.ItemPatch
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, err)
		return
	}
	item, err := h.Service.PatchItem(r.Context(), id, body)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, item)
}

// UpdateHeader handles PUT /orders/{id}.
func (h *Handler) UpdateHeader(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body headerInput
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, err)
		return
	}
	order, err := h.Service.UpdateHeader(r.Context(), id, body.header())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, order)
}

// DeleteItem handles DELETE /order-items/{id}.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Service.DeleteItem(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status" validate:"required"`
	}
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, err)
		return
	}
	order, err := h.Service.UpdateStatus(r.Context(), id, body.Status)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, order)
}

// Reconcile handles POST /orders/{id}/reconcile.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body snapshotInput
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, err)
		return
	}
	snap, err := h.Service.Reconcile(r.Context(), id, reconcile.OrderSnapshot{Order: body.Order.header(), Items: items(body.Items)})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, snap)
}
