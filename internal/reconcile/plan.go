package reconcile

import (
	"fmt"

	"github.com/noah-isme/backend-pos/internal/pricing"
)

// Variant distinguishes the two document kinds a session can edit.
type Variant int

const (
	// VariantOrder patches stored lines in place and appends new ones.
	VariantOrder Variant = iota
	// VariantPurchase deletes every stored line and re-inserts the full set.
	VariantPurchase
)

func (v Variant) String() string {
	if v == VariantPurchase {
		return "purchase"
	}
	return "order"
}

func (v Variant) noun() string {
	if v == VariantPurchase {
		return "purchase receipt"
	}
	return "order"
}

// Patch targets one stored order line.
type Patch struct {
	ItemID int64
	ItemPatch
}

// OrderPlan is the minimal set of writes that brings a stored order in line
// with the edited one. Steps run in field order.
type OrderPlan struct {
	Lines   []LineItem
	Deletes []int64
	Inserts []LineItem
	Patches []Patch
	Header  OrderHeader
	Totals  pricing.Totals
}

// Empty reports whether the plan changes no line.
func (p OrderPlan) Empty() bool {
	return len(p.Deletes) == 0 && len(p.Inserts) == 0 && len(p.Patches) == 0
}

// PurchasePlan replaces every stored line of a receipt.
type PurchasePlan struct {
	Lines   []LineItem
	Deletes []int64
	Inserts []LineItem
	Header  PurchaseHeader
	Totals  pricing.Totals
}

// PlanOrder prices the desired lines and diffs them against the stored ones.
// Quantity, price and rate of a stored line are taken from storage; only its
// discount, tax and price before tax can change. Stored lines missing from
// desired are deleted. header supplies the customer fields and discount.
func PlanOrder(persisted, desired []LineItem, header OrderHeader, mode pricing.TaxMode) (OrderPlan, error) {
	byID := make(map[int64]LineItem, len(persisted))
	for _, p := range persisted {
		byID[p.ID] = p
	}

	seen := make(map[int64]bool, len(desired))
	merged := make([]LineItem, 0, len(desired))
	for _, it := range desired {
		if !it.Persisted() {
			merged = append(merged, it)
			continue
		}
		if seen[it.ID] {
			continue
		}
		stored, ok := byID[it.ID]
		if !ok {
			return OrderPlan{}, &ValidationError{Field: "items", Message: fmt.Sprintf("item %d does not belong to this order", it.ID)}
		}
		seen[it.ID] = true
		if it.Quantity.Sign() <= 0 {
			// a zeroed quantity on a stored line means remove it
			stored.Quantity = it.Quantity
		}
		merged = append(merged, stored)
	}

	lines, totals := Price(Canonical(merged), header.Discount, mode)

	kept := make(map[int64]bool, len(lines))
	plan := OrderPlan{Lines: lines, Totals: totals}
	for _, ln := range lines {
		if !ln.Persisted() {
			ins := ln
			if ins.ClientRef == 0 {
				ins.ClientRef = ins.ID
			}
			ins.ID = 0
			plan.Inserts = append(plan.Inserts, ins)
			continue
		}
		kept[ln.ID] = true
		stored := byID[ln.ID]
		if !stored.Discount.Equal(ln.Discount) || !stored.Tax.Equal(ln.Tax) || !stored.PriceBeforeTax.Equal(ln.PriceBeforeTax) {
			plan.Patches = append(plan.Patches, Patch{
				ItemID:    ln.ID,
				ItemPatch: ItemPatch{Discount: ln.Discount, Tax: ln.Tax, PriceBeforeTax: ln.PriceBeforeTax},
			})
		}
	}
	for _, p := range persisted {
		if !kept[p.ID] {
			plan.Deletes = append(plan.Deletes, p.ID)
		}
	}

	plan.Header = header
	plan.Header.Discount = totals.Discount
	plan.Header.Subtotal = totals.Subtotal
	plan.Header.Tax = totals.Tax
	plan.Header.Total = totals.Total
	return plan, nil
}

// PlanPurchase prices the desired lines and plans a full replacement: every
// stored row is deleted and the priced set is inserted with RowOrder 1..n in
// canonical order.
func PlanPurchase(persisted, desired []LineItem, header PurchaseHeader, mode pricing.TaxMode) PurchasePlan {
	lines, totals := Price(Canonical(desired), header.Discount, mode)

	plan := PurchasePlan{Lines: lines, Totals: totals}
	for _, p := range persisted {
		plan.Deletes = append(plan.Deletes, p.ID)
	}
	for i, ln := range lines {
		ins := ln
		ins.ID = 0
		ins.ClientRef = 0
		ins.RowOrder = i + 1
		plan.Inserts = append(plan.Inserts, ins)
	}

	plan.Header = header
	plan.Header.Discount = totals.Discount
	plan.Header.Subtotal = totals.Subtotal
	plan.Header.Tax = totals.Tax
	plan.Header.Total = totals.Total
	return plan
}
