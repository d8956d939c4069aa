package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/pricing"
)

// TempIDThreshold separates persisted row ids from client-assigned ids.
// Ids at or above it (or not positive) were never stored.
const TempIDThreshold int64 = 1_000_000_000_000

// LineItem is one product line of an order or purchase receipt, in the shape
// exchanged with the storage API.
type LineItem struct {
	ID             int64           `json:"id,omitempty"`
	ProductID      int64           `json:"productId"`
	ProductName    string          `json:"productName"`
	SKU            string          `json:"sku,omitempty"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	TaxRatePercent decimal.Decimal `json:"taxRatePercent"`
	Discount       decimal.Decimal `json:"discount"`
	PriceBeforeTax decimal.Decimal `json:"priceBeforeTax"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	RowOrder       int             `json:"rowOrder,omitempty"`
	// ClientRef carries the temporary id a new line had on the client so a
	// replayed insert can be matched to the row it already created.
	ClientRef int64 `json:"clientRef,omitempty"`
}

// Persisted reports whether the line already has a storage row.
func (it LineItem) Persisted() bool {
	return IsPersistedID(it.ID)
}

// IsPersistedID reports whether id names a stored row.
func IsPersistedID(id int64) bool {
	return id > 0 && id < TempIDThreshold
}

func (it LineItem) pricingLine() pricing.Line {
	return pricing.Line{Quantity: it.Quantity, UnitPrice: it.UnitPrice, TaxRatePercent: it.TaxRatePercent}
}

func (it LineItem) withAmounts(p pricing.PricedLine) LineItem {
	it.Discount = p.Discount
	it.PriceBeforeTax = p.PriceBeforeTax
	it.Tax = p.Tax
	it.Total = p.Total
	return it
}

// Partition splits lines into persisted and new, preserving relative order.
func Partition(items []LineItem) (existing, fresh []LineItem) {
	for _, it := range items {
		if it.Persisted() {
			existing = append(existing, it)
		} else {
			fresh = append(fresh, it)
		}
	}
	return existing, fresh
}

// Sanitize drops lines with a non-positive quantity or no product.
func Sanitize(items []LineItem) (kept, dropped []LineItem) {
	for _, it := range items {
		if it.Quantity.Sign() <= 0 || it.ProductID <= 0 {
			dropped = append(dropped, it)
			continue
		}
		kept = append(kept, it)
	}
	return kept, dropped
}

// Canonical returns the sanitized lines in the order every pricing pass
// uses: persisted lines first, then new lines, each in their given order.
func Canonical(items []LineItem) []LineItem {
	kept, _ := Sanitize(items)
	existing, fresh := Partition(kept)
	out := make([]LineItem, 0, len(kept))
	out = append(out, existing...)
	return append(out, fresh...)
}

// Price runs the pricing engine over lines (assumed canonical) and returns
// them with their discount share and computed amounts filled in.
func Price(lines []LineItem, discount decimal.Decimal, mode pricing.TaxMode) ([]LineItem, pricing.Totals) {
	in := make([]pricing.Line, len(lines))
	for i, it := range lines {
		in[i] = it.pricingLine()
	}
	res := pricing.Compute(in, discount, mode)
	out := make([]LineItem, len(lines))
	for i, it := range lines {
		out[i] = it.withAmounts(res.Lines[i])
	}
	return out, res.Totals
}

// ResolveClientRefs rewrites new lines whose client ref matches an already
// stored row into references to that row, making a replayed save idempotent.
func ResolveClientRefs(persisted, lines []LineItem) []LineItem {
	byRef := make(map[int64]int64, len(persisted))
	for _, p := range persisted {
		if p.ClientRef != 0 {
			byRef[p.ClientRef] = p.ID
		}
	}
	out := make([]LineItem, len(lines))
	for i, it := range lines {
		if !it.Persisted() {
			ref := it.ClientRef
			if ref == 0 {
				ref = it.ID
			}
			if id, ok := byRef[ref]; ok && ref != 0 {
				it.ID = id
				it.ClientRef = ref
			}
		}
		out[i] = it
	}
	return out
}
