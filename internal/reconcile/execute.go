package reconcile

import (
	"context"
	"fmt"
)

type progress struct {
	completed []Step
	applied   int
	deleted   []int64
	inserted  []LineItem
	patched   []Patch
}

func (p *progress) fail(v Variant, step Step, err error) *SaveError {
	return &SaveError{
		Variant:   v,
		Step:      step,
		Completed: append([]Step(nil), p.completed...),
		Applied:   p.applied,
		Err:       err,
	}
}

// runOrderPlan issues the plan against a per-call store, one awaited request
// at a time: deletes, inserts, item patches, then the header.
func runOrderPlan(ctx context.Context, store OrderStore, orderID int64, plan OrderPlan, prog *progress) error {
	for _, id := range plan.Deletes {
		if err := ctx.Err(); err != nil {
			return prog.fail(VariantOrder, StepDeleteItems, err)
		}
		if err := store.DeleteOrderItem(ctx, id); err != nil {
			return prog.fail(VariantOrder, StepDeleteItems, err)
		}
		prog.deleted = append(prog.deleted, id)
		prog.applied++
	}
	prog.completed = append(prog.completed, StepDeleteItems)

	if len(plan.Inserts) > 0 {
		if err := ctx.Err(); err != nil {
			return prog.fail(VariantOrder, StepInsertItems, err)
		}
		created, err := store.AddOrderItems(ctx, orderID, plan.Inserts)
		if err != nil {
			return prog.fail(VariantOrder, StepInsertItems, err)
		}
		prog.inserted = append(prog.inserted, created...)
		prog.applied += len(created)
		if len(created) != len(plan.Inserts) {
			return prog.fail(VariantOrder, StepInsertItems,
				fmt.Errorf("storage created %d of %d items", len(created), len(plan.Inserts)))
		}
	}
	prog.completed = append(prog.completed, StepInsertItems)

	for _, p := range plan.Patches {
		if err := ctx.Err(); err != nil {
			return prog.fail(VariantOrder, StepUpdateItems, err)
		}
		if err := store.UpdateOrderItem(ctx, p.ItemID, p.ItemPatch); err != nil {
			return prog.fail(VariantOrder, StepUpdateItems, err)
		}
		prog.patched = append(prog.patched, p)
		prog.applied++
	}
	prog.completed = append(prog.completed, StepUpdateItems)

	if err := ctx.Err(); err != nil {
		return prog.fail(VariantOrder, StepUpdateHeader, err)
	}
	if err := store.UpdateOrder(ctx, orderID, plan.Header); err != nil {
		return prog.fail(VariantOrder, StepUpdateHeader, err)
	}
	prog.applied++
	prog.completed = append(prog.completed, StepUpdateHeader)
	return nil
}

// runPurchasePlan deletes every stored row, re-inserts the priced set in row
// order and writes the header.
func runPurchasePlan(ctx context.Context, store PurchaseStore, purchaseID int64, plan PurchasePlan, prog *progress) error {
	for _, id := range plan.Deletes {
		if err := ctx.Err(); err != nil {
			return prog.fail(VariantPurchase, StepDeleteItems, err)
		}
		if err := store.DeletePurchaseItem(ctx, id); err != nil {
			return prog.fail(VariantPurchase, StepDeleteItems, err)
		}
		prog.deleted = append(prog.deleted, id)
		prog.applied++
	}
	prog.completed = append(prog.completed, StepDeleteItems)

	for _, it := range plan.Inserts {
		if err := ctx.Err(); err != nil {
			return prog.fail(VariantPurchase, StepInsertItems, err)
		}
		created, err := store.CreatePurchaseItem(ctx, purchaseID, it)
		if err != nil {
			return prog.fail(VariantPurchase, StepInsertItems, err)
		}
		prog.inserted = append(prog.inserted, created)
		prog.applied++
	}
	prog.completed = append(prog.completed, StepInsertItems)

	if err := ctx.Err(); err != nil {
		return prog.fail(VariantPurchase, StepUpdateHeader, err)
	}
	if err := store.UpdatePurchase(ctx, purchaseID, plan.Header); err != nil {
		return prog.fail(VariantPurchase, StepUpdateHeader, err)
	}
	prog.applied++
	prog.completed = append(prog.completed, StepUpdateHeader)
	return nil
}

// applyProgress returns the stored rows as they are after prog was applied.
func applyProgress(stored []LineItem, prog progress) []LineItem {
	deleted := make(map[int64]bool, len(prog.deleted))
	for _, id := range prog.deleted {
		deleted[id] = true
	}
	patched := make(map[int64]ItemPatch, len(prog.patched))
	for _, p := range prog.patched {
		patched[p.ItemID] = p.ItemPatch
	}

	out := make([]LineItem, 0, len(stored)+len(prog.inserted))
	for _, it := range stored {
		if deleted[it.ID] {
			continue
		}
		if p, ok := patched[it.ID]; ok {
			it.Discount, it.Tax, it.PriceBeforeTax = p.Discount, p.Tax, p.PriceBeforeTax
			it.Total = p.PriceBeforeTax.Add(p.Tax)
		}
		out = append(out, it)
	}
	return append(out, prog.inserted...)
}

// adoptStored replaces lines that now have a stored row (matched by id or by
// the temporary id recorded as client ref) with that row. Lines naming a row
// that no longer exists are dropped.
func adoptStored(lines, stored []LineItem) []LineItem {
	byID := make(map[int64]LineItem, len(stored))
	byRef := make(map[int64]LineItem, len(stored))
	for _, s := range stored {
		byID[s.ID] = s
		if s.ClientRef != 0 {
			byRef[s.ClientRef] = s
		}
	}
	out := make([]LineItem, 0, len(lines))
	for _, ln := range lines {
		if ln.Persisted() {
			s, ok := byID[ln.ID]
			if !ok {
				continue
			}
			ln.Discount, ln.Tax, ln.PriceBeforeTax, ln.Total = s.Discount, s.Tax, s.PriceBeforeTax, s.Total
		} else if s, ok := byRef[ln.ID]; ok {
			ln = s
		}
		out = append(out, ln)
	}
	return out
}
