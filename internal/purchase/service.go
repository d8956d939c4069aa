package purchase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/lock"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/pgstore"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/reconcile"
	"github.com/noah-isme/backend-pos/internal/tenant"
)

// ModeSource resolves the tenant's tax mode.
type ModeSource interface {
	TaxMode(ctx context.Context) (pricing.TaxMode, error)
}

// Locker serialises work on one key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service implements the purchase receipt endpoints.
type Service struct {
	Store   Store
	Modes   ModeSource
	Locker  Locker
	LockTTL time.Duration
	Logger  zerolog.Logger
}

func tenantID(ctx context.Context) (uuid.UUID, error) {
	tid, err := tenant.UUIDFrom(ctx)
	if err != nil {
		return uuid.Nil, common.NewAppError("TENANT_REQUIRED", "tenant is required", http.StatusBadRequest, err)
	}
	return tid, nil
}

func (s *Service) mode(ctx context.Context) (pricing.TaxMode, error) {
	if s.Modes == nil {
		return pricing.TaxExclusive, nil
	}
	mode, err := s.Modes.TaxMode(ctx)
	if err != nil {
		return pricing.TaxExclusive, fmt.Errorf("resolve tax mode: %w", err)
	}
	return mode, nil
}

func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return common.NotFound("purchase order", err)
	case pgstore.IsForeignKeyViolation(err):
		return common.ValidationError("unknown product", nil)
	case errors.Is(err, lock.ErrBusy):
		return common.NewAppError("RESOURCE_BUSY", "another save of this purchase order is in progress", http.StatusConflict, err)
	}
	return err
}

func canceled(status string) error {
	if status == StatusCanceled {
		return common.NewAppError("INVALID_STATE", "purchase order is canceled", http.StatusConflict, nil)
	}
	return nil
}

// Create stores a receipt with the next PO number. Lines are priced and
// inserted with RowOrder 1..n.
func (s *Service) Create(ctx context.Context, in reconcile.PurchaseSnapshot) (Snapshot, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	mode, err := s.mode(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	header := in.Purchase
	if header.Status == "" {
		header.Status = StatusReceived
	}
	plan := reconcile.PlanPurchase(nil, in.Items, header, mode)

	var snap Snapshot
	err = s.Store.WithTx(ctx, func(tx Store) error {
		number, err := tx.NextReceiptNumber(ctx, tid)
		if err != nil {
			return err
		}
		plan.Header.ReceiptNumber = number
		receipt, err := tx.CreateReceipt(ctx, tid, plan.Header)
		if err != nil {
			return err
		}
		items := make([]reconcile.LineItem, 0, len(plan.Inserts))
		for _, it := range plan.Inserts {
			stored, err := tx.InsertItem(ctx, tid, receipt.ID, it)
			if err != nil {
				return err
			}
			items = append(items, stored)
		}
		snap = Snapshot{Purchase: receipt, Items: items}
		return nil
	})
	if err != nil {
		return Snapshot{}, mapStoreErr(err)
	}
	if obs.DocumentNumbersIssued != nil {
		obs.DocumentNumbersIssued.WithLabelValues(pgstore.KindPurchase).Inc()
	}
	s.Logger.Info().Int64("purchase_id", snap.Purchase.ID).Str("receipt_number", snap.Purchase.ReceiptNumber).
		Int("items", len(snap.Items)).Msg("purchase order created")
	return snap, nil
}

// Get returns a receipt with its lines.
func (s *Service) Get(ctx context.Context, purchaseID int64) (Snapshot, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	receipt, err := s.Store.GetReceipt(ctx, tid, purchaseID, false)
	if err != nil {
		return Snapshot{}, mapStoreErr(err)
	}
	items, err := s.Store.ListItems(ctx, tid, purchaseID)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Purchase: receipt, Items: items}, nil
}

// List returns a page of receipts.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Receipt, int64, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, 0, err
	}
	return s.Store.ListReceipts(ctx, tid, perPage, common.Offset(page, perPage))
}

// Items returns the lines of a receipt in row order.
func (s *Service) Items(ctx context.Context, purchaseID int64) ([]reconcile.LineItem, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.Store.GetReceipt(ctx, tid, purchaseID, false); err != nil {
		return nil, mapStoreErr(err)
	}
	return s.Store.ListItems(ctx, tid, purchaseID)
}

// CreateItem inserts one line exactly as sent.
func (s *Service) CreateItem(ctx context.Context, purchaseID int64, item reconcile.LineItem) (reconcile.LineItem, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return reconcile.LineItem{}, err
	}
	var out reconcile.LineItem
	err = s.Store.WithTx(ctx, func(tx Store) error {
		receipt, err := tx.GetReceipt(ctx, tid, purchaseID, true)
		if err != nil {
			return err
		}
		if err := canceled(receipt.Status); err != nil {
			return err
		}
		item.ID = 0
		item.ClientRef = 0
		out, err = tx.InsertItem(ctx, tid, purchaseID, item)
		return err
	})
	return out, mapStoreErr(err)
}

// DeleteItem removes one line unless its receipt is canceled.
func (s *Service) DeleteItem(ctx context.Context, itemID int64) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	err = s.Store.WithTx(ctx, func(tx Store) error {
		purchaseID, err := tx.ItemReceiptID(ctx, tid, itemID)
		if err != nil {
			return err
		}
		receipt, err := tx.GetReceipt(ctx, tid, purchaseID, true)
		if err != nil {
			return err
		}
		if err := canceled(receipt.Status); err != nil {
			return err
		}
		_, err = tx.DeleteItem(ctx, tid, itemID)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return common.NotFound("purchase order item", err)
	}
	return mapStoreErr(err)
}

// UpdateHeader overwrites supplier, status, discount and totals. The receipt
// number never changes.
func (s *Service) UpdateHeader(ctx context.Context, purchaseID int64, h reconcile.PurchaseHeader) (Receipt, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return Receipt{}, err
	}
	var out Receipt
	err = s.Store.WithTx(ctx, func(tx Store) error {
		cur, err := tx.GetReceipt(ctx, tid, purchaseID, true)
		if err != nil {
			return err
		}
		if h.Status == "" {
			h.Status = cur.Status
		}
		if cur.Status == StatusCanceled && h.Status != StatusCanceled {
			return canceled(cur.Status)
		}
		out, err = tx.UpdateReceipt(ctx, tid, purchaseID, h)
		return err
	})
	return out, mapStoreErr(err)
}

// Reconcile replaces every line of a receipt and rewrites its totals in one
// transaction. Replaying the same request yields the same rows.
func (s *Service) Reconcile(ctx context.Context, purchaseID int64, desired reconcile.PurchaseSnapshot) (Snapshot, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	mode, err := s.mode(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if kept, _ := reconcile.Sanitize(desired.Items); len(kept) == 0 {
		return Snapshot{}, common.ValidationError("purchase order must have at least one item", map[string]string{"items": "is required"})
	}

	start := time.Now()
	var (
		snap Snapshot
		plan reconcile.PurchasePlan
	)
	run := func(ctx context.Context) error {
		return s.Store.WithTx(ctx, func(tx Store) error {
			cur, err := tx.GetReceipt(ctx, tid, purchaseID, true)
			if err != nil {
				return err
			}
			if err := canceled(cur.Status); err != nil {
				return err
			}
			stored, err := tx.ListItems(ctx, tid, purchaseID)
			if err != nil {
				return err
			}
			header := cur.PurchaseHeader
			header.SupplierName = desired.Purchase.SupplierName
			header.Discount = desired.Purchase.Discount
			if desired.Purchase.Status != "" {
				header.Status = desired.Purchase.Status
			}

			plan = reconcile.PlanPurchase(stored, desired.Items, header, mode)
			for _, id := range plan.Deletes {
				if _, err := tx.DeleteItem(ctx, tid, id); err != nil {
					return fmt.Errorf("delete item %d: %w", id, err)
				}
			}
			items := make([]reconcile.LineItem, 0, len(plan.Inserts))
			for _, it := range plan.Inserts {
				row, err := tx.InsertItem(ctx, tid, purchaseID, it)
				if err != nil {
					return err
				}
				items = append(items, row)
			}
			receipt, err := tx.UpdateReceipt(ctx, tid, purchaseID, plan.Header)
			if err != nil {
				return err
			}
			snap = Snapshot{Purchase: receipt, Items: items}
			return nil
		})
	}

	if s.Locker != nil {
		err = s.Locker.WithLock(ctx, tenant.ResourceKey(tid.String(), "purchase", purchaseID), s.LockTTL, run)
	} else {
		err = run(ctx)
	}

	result := "ok"
	if err != nil {
		result = "failed"
		var ae *common.AppError
		if errors.As(mapStoreErr(err), &ae) && ae.HTTPStatus < 500 {
			result = "invalid"
		}
	}
	if obs.ReconcileSavesTotal != nil {
		obs.ReconcileSavesTotal.WithLabelValues("purchase", result).Inc()
	}
	if obs.ReconcileSaveLatency != nil && result != "invalid" {
		obs.ReconcileSaveLatency.WithLabelValues("purchase", result).Observe(obs.DurationMillis(time.Since(start)))
	}
	if err != nil {
		s.Logger.Warn().Err(err).Int64("purchase_id", purchaseID).Str("result", result).Msg("purchase reconcile failed")
		return Snapshot{}, mapStoreErr(err)
	}
	s.Logger.Info().Int64("purchase_id", purchaseID).Int("deleted", len(plan.Deletes)).
		Int("inserted", len(plan.Inserts)).Str("total", plan.Header.Total.String()).Msg("purchase reconciled")
	return snap, nil
}
