package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
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

// Locker serialises work on one key across API instances.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service implements the order endpoints on top of a Store.
type Service struct {
	Store   Store
	Modes   ModeSource
	Locker  Locker
	LockTTL time.Duration
	Logger  zerolog.Logger
}

// CreateInput is the body of POST /orders.
type CreateInput struct {
	Order reconcile.OrderHeader `json:"order"`
	Items []reconcile.LineItem  `json:"items" validate:"dive"`
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
		return common.NotFound("order", err)
	case pgstore.IsForeignKeyViolation(err):
		return common.ValidationError("unknown product", nil)
	case errors.Is(err, lock.ErrBusy):
		return common.NewAppError("RESOURCE_BUSY", "another save of this order is in progress", http.StatusConflict, err)
	}
	var verr *reconcile.ValidationError
	if errors.As(err, &verr) {
		appErr := common.ValidationError(verr.Message, map[string]string{verr.Field: verr.Message})
		appErr.Err = err
		return appErr
	}
	return err
}

func invalidState(status string) error {
	return common.NewAppError("INVALID_STATE", fmt.Sprintf("order is %s and can no longer be edited", strings.ToLower(status)), http.StatusConflict, nil)
}

// Create prices the initial lines, assigns the next order number and stores
// the order in one transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (Snapshot, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	mode, err := s.mode(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	header := in.Order
	if header.Discount.IsNegative() {
		return Snapshot{}, common.ValidationError("discount cannot be negative", nil)
	}
	if header.Status == "" {
		header.Status = StatusOpen
	}
	if header.PaymentStatus == "" {
		header.PaymentStatus = PaymentUnpaid
	}
	if !validPayment(header.PaymentStatus) || statusRank(header.Status) < -1 {
		return Snapshot{}, common.ValidationError("unsupported status", nil)
	}

	fresh := make([]reconcile.LineItem, len(in.Items))
	for i, it := range in.Items {
		if it.ClientRef == 0 && !it.Persisted() {
			it.ClientRef = it.ID
		}
		it.ID = 0
		fresh[i] = it
	}
	lines, totals := reconcile.Price(reconcile.Canonical(fresh), header.Discount, mode)
	header.Discount, header.Subtotal, header.Tax, header.Total = totals.Discount, totals.Subtotal, totals.Tax, totals.Total

	var snap Snapshot
	err = s.Store.WithTx(ctx, func(tx Store) error {
		number, err := tx.NextOrderNumber(ctx, tid)
		if err != nil {
			return err
		}
		header.OrderNumber = number
		order, err := tx.CreateOrder(ctx, tid, header)
		if err != nil {
			return err
		}
		items, err := tx.InsertItems(ctx, tid, order.ID, lines)
		if err != nil {
			return err
		}
		snap = Snapshot{Order: order, Items: items}
		return nil
	})
	if err != nil {
		return Snapshot{}, mapStoreErr(err)
	}
	if obs.DocumentNumbersIssued != nil {
		obs.DocumentNumbersIssued.WithLabelValues(pgstore.KindOrder).Inc()
	}
	s.Logger.Info().Int64("order_id", snap.Order.ID).Str("order_number", snap.Order.OrderNumber).
		Int("items", len(snap.Items)).Msg("order created")
	return snap, nil
}

// Get returns an order with its items.
func (s *Service) Get(ctx context.Context, orderID int64) (Snapshot, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	order, err := s.Store.GetOrder(ctx, tid, orderID, false)
	if err != nil {
		return Snapshot{}, mapStoreErr(err)
	}
	items, err := s.Store.ListItems(ctx, tid, orderID)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Order: order, Items: items}, nil
}

// List returns a page of orders.
func (s *Service) List(ctx context.Context, status string, page, perPage int) ([]Order, int64, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, 0, err
	}
	status = strings.ToUpper(strings.TrimSpace(status))
	if status != "" && statusRank(status) < -1 {
		return nil, 0, common.ValidationError("unsupported status", map[string]string{"status": status})
	}
	return s.Store.ListOrders(ctx, tid, status, perPage, common.Offset(page, perPage))
}

// Items returns the stored lines of an order.
func (s *Service) Items(ctx context.Context, orderID int64) ([]reconcile.LineItem, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.Store.GetOrder(ctx, tid, orderID, false); err != nil {
		return nil, mapStoreErr(err)
	}
	return s.Store.ListItems(ctx, tid, orderID)
}

// AddItems appends lines exactly as sent. Amounts are the caller's.
func (s *Service) AddItems(ctx context.Context, orderID int64, items []reconcile.LineItem) ([]reconcile.LineItem, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	var out []reconcile.LineItem
	err = s.Store.WithTx(ctx, func(tx Store) error {
		order, err := tx.GetOrder(ctx, tid, orderID, true)
		if err != nil {
			return err
		}
		if !editable(order.Status) {
			return invalidState(order.Status)
		}
		fresh := make([]reconcile.LineItem, len(items))
		for i, it := range items {
			if it.ClientRef == 0 && !it.Persisted() {
				it.ClientRef = it.ID
			}
			it.ID = 0
			fresh[i] = it
		}
		out, err = tx.InsertItems(ctx, tid, orderID, fresh)
		return err
	})
	return out, mapStoreErr(err)
}

// PatchItem updates the discount share and amounts of one line.
func (s *Service) PatchItem(ctx context.Context, itemID int64, patch reconcile.ItemPatch) (reconcile.LineItem, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return reconcile.LineItem{}, err
	}
	if patch.Discount.IsNegative() || patch.Tax.IsNegative() || patch.PriceBeforeTax.IsNegative() {
		return reconcile.LineItem{}, common.ValidationError("amounts cannot be negative", nil)
	}
	var item reconcile.LineItem
	err = s.Store.WithTx(ctx, func(tx Store) error {
		if err := requireEditableItem(ctx, tx, tid, itemID); err != nil {
			return err
		}
		item, err = tx.PatchItem(ctx, tid, itemID, patch)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return reconcile.LineItem{}, common.NotFound("order item", err)
	}
	return item, mapStoreErr(err)
}

// DeleteItem removes one line.
func (s *Service) DeleteItem(ctx context.Context, itemID int64) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	err = s.Store.WithTx(ctx, func(tx Store) error {
		if err := requireEditableItem(ctx, tx, tid, itemID); err != nil {
			return err
		}
		_, err := tx.DeleteItem(ctx, tid, itemID)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return common.NotFound("order item", err)
	}
	return mapStoreErr(err)
}

// requireEditableItem locks the parent order of an item and rejects edits
// once the order is closed or canceled. The order row is locked before any
// item row, the same order Reconcile takes them in.
func requireEditableItem(ctx context.Context, tx Store, tid uuid.UUID, itemID int64) error {
	orderID, err := tx.ItemOrderID(ctx, tid, itemID)
	if err != nil {
		return err
	}
	order, err := tx.GetOrder(ctx, tid, orderID, true)
	if err != nil {
		return err
	}
	if !editable(order.Status) {
		return invalidState(order.Status)
	}
	return nil
}

// UpdateHeader overwrites the header fields including the four totals.
// Empty status fields keep their stored value. Totals of a closed or
// canceled order are frozen: omitted totals keep the stored ones and
// different totals are rejected.
func (s *Service) UpdateHeader(ctx context.Context, orderID int64, h reconcile.OrderHeader) (Order, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return Order{}, err
	}
	if h.CustomerCount < 0 {
		return Order{}, common.ValidationError("customer count cannot be negative", nil)
	}
	var out Order
	err = s.Store.WithTx(ctx, func(tx Store) error {
		cur, err := tx.GetOrder(ctx, tid, orderID, true)
		if err != nil {
			return err
		}
		h.Status = strings.ToUpper(h.Status)
		if h.Status == "" {
			h.Status = cur.Status
		}
		if h.Status != cur.Status && !canTransition(cur.Status, h.Status) {
			return common.NewAppError("INVALID_STATE", "state transition not allowed", http.StatusConflict, nil)
		}
		if !editable(cur.Status) {
			if totalsOmitted(h) {
				h.Discount, h.Subtotal, h.Tax, h.Total = cur.Discount, cur.Subtotal, cur.Tax, cur.Total
			} else if !sameTotals(h, cur.OrderHeader) {
				return invalidState(cur.Status)
			}
		}
		if h.PaymentStatus == "" {
			h.PaymentStatus = cur.PaymentStatus
		}
		if !validPayment(h.PaymentStatus) {
			return common.ValidationError("unsupported payment status", nil)
		}
		out, err = tx.UpdateOrder(ctx, tid, orderID, h)
		return err
	})
	return out, mapStoreErr(err)
}

func totalsOmitted(h reconcile.OrderHeader) bool {
	return h.Discount.IsZero() && h.Subtotal.IsZero() && h.Tax.IsZero() && h.Total.IsZero()
}

func sameTotals(a, b reconcile.OrderHeader) bool {
	return a.Discount.Equal(b.Discount) && a.Subtotal.Equal(b.Subtotal) &&
		a.Tax.Equal(b.Tax) && a.Total.Equal(b.Total)
}

// UpdateStatus moves an order forward through OPEN, SERVED and CLOSED, or
// cancels it.
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, status string) (Order, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return Order{}, err
	}
	status = strings.ToUpper(strings.TrimSpace(status))
	if statusRank(status) < -1 {
		return Order{}, common.ValidationError("unsupported status", nil)
	}
	var out Order
	err = s.Store.WithTx(ctx, func(tx Store) error {
		cur, err := tx.GetOrder(ctx, tid, orderID, true)
		if err != nil {
			return err
		}
		if !canTransition(cur.Status, status) {
			return common.NewAppError("INVALID_STATE", "cannot transition to equal or previous state", http.StatusConflict, nil)
		}
		h := cur.OrderHeader
		h.Status = status
		out, err = tx.UpdateOrder(ctx, tid, orderID, h)
		return err
	})
	return out, mapStoreErr(err)
}

// Reconcile applies an edited order in one transaction: stored lines not
// sent are deleted, new lines inserted, changed discount shares patched and
// the header totals rewritten. New lines are matched by client ref so a
// replayed request does not insert twice. A Redis lock per order keeps two
// tills from interleaving.
func (s *Service) Reconcile(ctx context.Context, orderID int64, desired reconcile.OrderSnapshot) (Snapshot, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if desired.Order.Discount.IsNegative() {
		return Snapshot{}, common.ValidationError("discount cannot be negative", nil)
	}
	if desired.Order.CustomerCount < 0 {
		return Snapshot{}, common.ValidationError("customer count cannot be negative", nil)
	}
	mode, err := s.mode(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	start := time.Now()
	var (
		snap Snapshot
		plan reconcile.OrderPlan
	)
	run := func(ctx context.Context) error {
		return s.Store.WithTx(ctx, func(tx Store) error {
			cur, err := tx.GetOrder(ctx, tid, orderID, true)
			if err != nil {
				return err
			}
			if !editable(cur.Status) {
				return invalidState(cur.Status)
			}
			stored, err := tx.ListItems(ctx, tid, orderID)
			if err != nil {
				return err
			}

			header := cur.OrderHeader
			header.CustomerName = desired.Order.CustomerName
			header.CustomerCount = desired.Order.CustomerCount
			header.TableNumber = desired.Order.TableNumber
			header.Discount = desired.Order.Discount

			plan, err = reconcile.PlanOrder(stored, reconcile.ResolveClientRefs(stored, desired.Items), header, mode)
			if err != nil {
				return err
			}
			if len(plan.Lines) == 0 {
				return &reconcile.ValidationError{Field: "items", Message: "order must have at least one item"}
			}
			for _, id := range plan.Deletes {
				if _, err := tx.DeleteItem(ctx, tid, id); err != nil {
					return fmt.Errorf("delete item %d: %w", id, err)
				}
			}
			if _, err := tx.InsertItems(ctx, tid, orderID, plan.Inserts); err != nil {
				return err
			}
			for _, p := range plan.Patches {
				if _, err := tx.PatchItem(ctx, tid, p.ItemID, p.ItemPatch); err != nil {
					return fmt.Errorf("patch item %d: %w", p.ItemID, err)
				}
			}
			order, err := tx.UpdateOrder(ctx, tid, orderID, plan.Header)
			if err != nil {
				return err
			}
			items, err := tx.ListItems(ctx, tid, orderID)
			if err != nil {
				return err
			}
			snap = Snapshot{Order: order, Items: items}
			return nil
		})
	}

	if s.Locker != nil {
		err = s.Locker.WithLock(ctx, tenant.ResourceKey(tid.String(), "order", orderID), s.LockTTL, run)
	} else {
		err = run(ctx)
	}
	s.record(orderID, plan, time.Since(start), err)
	if err != nil {
		return Snapshot{}, mapStoreErr(err)
	}
	return snap, nil
}

func (s *Service) record(orderID int64, plan reconcile.OrderPlan, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
		var verr *reconcile.ValidationError
		var appErr *common.AppError
		if errors.As(err, &verr) || (errors.As(err, &appErr) && appErr.HTTPStatus < 500) {
			result = "invalid"
		}
	}
	if obs.ReconcileSavesTotal != nil {
		obs.ReconcileSavesTotal.WithLabelValues("order", result).Inc()
	}
	if obs.ReconcileSaveLatency != nil && result != "invalid" {
		obs.ReconcileSaveLatency.WithLabelValues("order", result).Observe(obs.DurationMillis(elapsed))
	}
	if err != nil {
		s.Logger.Warn().Err(err).Int64("order_id", orderID).Str("result", result).Msg("order reconcile failed")
		return
	}
	s.Logger.Info().
		Int64("order_id", orderID).
		Int("deleted", len(plan.Deletes)).
		Int("inserted", len(plan.Inserts)).
		Int("patched", len(plan.Patches)).
		Str("total", plan.Header.Total.String()).
		Msg("order reconciled")
}
