package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/pricing"
)

// State is the edit state of a session.
type State int

const (
	StateView State = iota
	StateEditing
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateSaving:
		return "saving"
	default:
		return "view"
	}
}

// SessionConfig wires a session to its collaborators. Orders is required for
// order sessions and Purchases for purchase sessions.
type SessionConfig struct {
	Orders    OrderStore
	Purchases PurchaseStore
	Catalog   Catalog
	Settings  SettingsSource
	Logger    zerolog.Logger
	// Stepwise forces per-call saves even when the store offers an atomic
	// reconcile endpoint.
	Stepwise bool
	Now      func() time.Time
}

// Preview is the live pricing of the lines being edited.
type Preview struct {
	Lines  []LineItem     `json:"lines"`
	Totals pricing.Totals `json:"totals"`
}

// Session edits one stored order or purchase receipt:
// view -> editing -> saving -> view, or back to editing when a save fails.
// It is safe for concurrent use; a second Save while one is in flight fails
// with ErrSaveInProgress instead of queueing.
type Session struct {
	cfg     SessionConfig
	variant Variant
	docID   int64

	mu       sync.Mutex
	state    State
	mode     pricing.TaxMode
	stored   []LineItem
	lines    []LineItem
	order    OrderHeader
	purchase PurchaseHeader
	discount decimal.Decimal
	lastErr  error
	lastTemp int64
}

// NewOrderSession creates a session for the sales order orderID.
func NewOrderSession(orderID int64, cfg SessionConfig) (*Session, error) {
	if cfg.Orders == nil {
		return nil, errors.New("reconcile: order store is required")
	}
	return newSession(VariantOrder, orderID, cfg), nil
}

// NewPurchaseSession creates a session for the purchase receipt purchaseID.
func NewPurchaseSession(purchaseID int64, cfg SessionConfig) (*Session, error) {
	if cfg.Purchases == nil {
		return nil, errors.New("reconcile: purchase store is required")
	}
	return newSession(VariantPurchase, purchaseID, cfg), nil
}

func newSession(v Variant, id int64, cfg SessionConfig) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Session{cfg: cfg, variant: v, docID: id, discount: decimal.Zero}
}

// State returns the current edit state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the error of the last failed save, if any.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Toast returns the operator message for the last failed save.
func (s *Session) Toast() string {
	return Toast(s.LastError())
}

// Mode returns the tax mode read when editing began.
func (s *Session) Mode() pricing.TaxMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// BeginEdit loads the document's header and lines directly from storage and
// reads the store tax mode once for the whole edit.
func (s *Session) BeginEdit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateEditing:
		return ErrAlreadyEditing
	case StateSaving:
		return ErrSaveInProgress
	}

	mode := pricing.TaxExclusive
	if s.cfg.Settings != nil {
		st, err := s.cfg.Settings.StoreSettings(ctx)
		if err != nil {
			return fmt.Errorf("load store settings: %w", err)
		}
		mode = pricing.ModeFor(st.PriceIncludesTax)
	}

	var items []LineItem
	switch s.variant {
	case VariantPurchase:
		header, err := s.cfg.Purchases.GetPurchase(ctx, s.docID)
		if err != nil {
			return fmt.Errorf("load purchase %d: %w", s.docID, err)
		}
		if items, err = s.cfg.Purchases.ListPurchaseItems(ctx, s.docID); err != nil {
			return fmt.Errorf("load purchase %d items: %w", s.docID, err)
		}
		s.purchase = header
		s.discount = header.Discount
	default:
		header, err := s.cfg.Orders.GetOrder(ctx, s.docID)
		if err != nil {
			return fmt.Errorf("load order %d: %w", s.docID, err)
		}
		if items, err = s.cfg.Orders.ListOrderItems(ctx, s.docID); err != nil {
			return fmt.Errorf("load order %d items: %w", s.docID, err)
		}
		s.order = header
		s.discount = header.Discount
	}

	s.mode = mode
	s.stored = append([]LineItem(nil), items...)
	s.lines = append([]LineItem(nil), items...)
	s.lastErr = nil
	s.state = StateEditing
	return nil
}

func (s *Session) requireEditing() error {
	switch s.state {
	case StateEditing:
		return nil
	case StateSaving:
		return ErrSaveInProgress
	default:
		return ErrNotEditing
	}
}

func (s *Session) nextTempID() int64 {
	id := s.cfg.Now().UnixMilli()
	if id < TempIDThreshold {
		id += TempIDThreshold
	}
	if id <= s.lastTemp {
		id = s.lastTemp + 1
	}
	s.lastTemp = id
	return id
}

func (s *Session) find(lineID int64) int {
	for i, ln := range s.lines {
		if ln.ID == lineID {
			return i
		}
	}
	return -1
}

// AddProduct appends qty of a catalog product. Adding a product that is
// already on a new line increases that line instead.
func (s *Session) AddProduct(ctx context.Context, productID int64, qty decimal.Decimal) (LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireEditing(); err != nil {
		return LineItem{}, err
	}
	if qty.Sign() <= 0 {
		return LineItem{}, &ValidationError{Field: "quantity", Message: "quantity must be greater than zero"}
	}
	for i, ln := range s.lines {
		if !ln.Persisted() && ln.ProductID == productID {
			s.lines[i].Quantity = ln.Quantity.Add(qty)
			return s.lines[i], nil
		}
	}
	if s.cfg.Catalog == nil {
		return LineItem{}, errors.New("reconcile: catalog is not configured")
	}
	p, err := s.cfg.Catalog.Product(ctx, productID)
	if err != nil {
		return LineItem{}, fmt.Errorf("load product %d: %w", productID, err)
	}
	ln := LineItem{
		ID:             s.nextTempID(),
		ProductID:      p.ID,
		ProductName:    p.Name,
		SKU:            p.SKU,
		Quantity:       qty,
		UnitPrice:      p.Price,
		TaxRatePercent: p.TaxRate,
	}
	s.lines = append(s.lines, ln)
	return ln, nil
}

// AddLine appends a line built by the caller, e.g. a custom-priced item.
// Its id is replaced with a fresh temporary id.
func (s *Session) AddLine(item LineItem) (LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireEditing(); err != nil {
		return LineItem{}, err
	}
	item.ID = s.nextTempID()
	item.ClientRef = 0
	item.RowOrder = 0
	s.lines = append(s.lines, item)
	return item, nil
}

// SetQuantity changes the quantity of a line. A zero quantity keeps the line
// on screen; it is dropped when saving. Stored order lines are read-only.
func (s *Session) SetQuantity(lineID int64, qty decimal.Decimal) error {
	return s.editLine(lineID, func(ln *LineItem) { ln.Quantity = qty })
}

// SetUnitPrice changes the unit price of a line.
func (s *Session) SetUnitPrice(lineID int64, price decimal.Decimal) error {
	if price.Sign() < 0 {
		return &ValidationError{Field: "unitPrice", Message: "unit price cannot be negative"}
	}
	return s.editLine(lineID, func(ln *LineItem) { ln.UnitPrice = price })
}

func (s *Session) editLine(lineID int64, fn func(*LineItem)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireEditing(); err != nil {
		return err
	}
	i := s.find(lineID)
	if i < 0 {
		return ErrLineNotFound
	}
	if s.variant == VariantOrder && s.lines[i].Persisted() {
		return ErrLineLocked
	}
	fn(&s.lines[i])
	return nil
}

// RemoveLine drops a line. Stored lines are deleted on save.
func (s *Session) RemoveLine(lineID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireEditing(); err != nil {
		return err
	}
	i := s.find(lineID)
	if i < 0 {
		return ErrLineNotFound
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	return nil
}

// SetDiscount sets the order-level discount.
func (s *Session) SetDiscount(d decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireEditing(); err != nil {
		return err
	}
	if d.Sign() < 0 {
		return &ValidationError{Field: "discount", Message: "discount cannot be negative"}
	}
	s.discount = d
	return nil
}

// SetCustomer updates the customer fields of an order.
func (s *Session) SetCustomer(name string, count int, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireEditing(); err != nil {
		return err
	}
	if count < 0 {
		return &ValidationError{Field: "customerCount", Message: "customer count cannot be negative"}
	}
	s.order.CustomerName, s.order.CustomerCount, s.order.TableNumber = name, count, table
	return nil
}

// SetSupplier updates the supplier of a purchase receipt.
func (s *Session) SetSupplier(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireEditing(); err != nil {
		return err
	}
	s.purchase.SupplierName = name
	return nil
}

// Lines returns the lines as edited, in display order.
func (s *Session) Lines() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LineItem(nil), s.lines...)
}

// Preview prices the current lines the same way Save will.
func (s *Session) Preview() Preview {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines, totals := Price(Canonical(s.lines), s.discount, s.mode)
	return Preview{Lines: lines, Totals: totals}
}

// Cancel abandons the edit and returns to view.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSaving {
		return ErrSaveInProgress
	}
	s.lines = append([]LineItem(nil), s.stored...)
	s.lastErr = nil
	s.state = StateView
	return nil
}

type saveInput struct {
	stored   []LineItem
	lines    []LineItem
	order    OrderHeader
	purchase PurchaseHeader
	mode     pricing.TaxMode
}

type saveOutcome struct {
	stored   []LineItem
	lines    []LineItem
	order    OrderHeader
	purchase PurchaseHeader
}

// Save reconciles the edited lines with storage. On success the session
// returns to view; on any failure it returns to editing with the error kept
// for Toast. Writes that reached storage before a failure are folded into
// the session so that saving again does not repeat them.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if err := s.requireEditing(); err != nil {
		s.mu.Unlock()
		return err
	}
	if len(Canonical(s.lines)) == 0 {
		err := &ValidationError{Field: "items", Message: "Add at least one item before saving."}
		s.lastErr = err
		s.mu.Unlock()
		s.record("invalid", 0, err)
		return err
	}
	in := saveInput{
		stored:   append([]LineItem(nil), s.stored...),
		lines:    append([]LineItem(nil), s.lines...),
		order:    s.order,
		purchase: s.purchase,
		mode:     s.mode,
	}
	in.order.Discount = s.discount
	in.purchase.Discount = s.discount
	s.state = StateSaving
	s.mu.Unlock()

	start := time.Now()
	var (
		out saveOutcome
		err error
	)
	if s.variant == VariantPurchase {
		out, err = s.savePurchase(ctx, in)
	} else {
		out, err = s.saveOrder(ctx, in)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if out.stored != nil {
		s.stored = out.stored
	}
	if out.lines != nil {
		s.lines = out.lines
	}
	if err != nil {
		s.lastErr = err
		s.state = StateEditing
		s.record(resultLabel(err), time.Since(start), err)
		return err
	}
	s.order, s.purchase = out.order, out.purchase
	s.discount = out.order.Discount
	if s.variant == VariantPurchase {
		s.discount = out.purchase.Discount
	}
	s.lastErr = nil
	s.state = StateView
	s.record("ok", time.Since(start), nil)
	return nil
}

func (s *Session) saveOrder(ctx context.Context, in saveInput) (saveOutcome, error) {
	if atomic, ok := s.cfg.Orders.(AtomicOrderStore); ok && !s.cfg.Stepwise {
		desired := OrderSnapshot{Order: in.order, Items: withClientRefs(in.lines)}
		if err := ctx.Err(); err != nil {
			return saveOutcome{}, &SaveError{Variant: VariantOrder, Step: StepReconcile, Err: err}
		}
		snap, err := atomic.ReconcileOrder(ctx, s.docID, desired)
		if err != nil {
			return saveOutcome{}, &SaveError{Variant: VariantOrder, Step: StepReconcile, Err: err}
		}
		return saveOutcome{stored: snap.Items, lines: append([]LineItem(nil), snap.Items...), order: snap.Order}, nil
	}

	plan, err := PlanOrder(in.stored, in.lines, in.order, in.mode)
	if err != nil {
		return saveOutcome{}, err
	}
	var prog progress
	runErr := runOrderPlan(ctx, s.cfg.Orders, s.docID, plan, &prog)
	stored := applyProgress(in.stored, prog)
	if runErr != nil {
		return saveOutcome{stored: stored, lines: adoptStored(in.lines, stored)}, runErr
	}
	lines := adoptStored(plan.Lines, stored)
	return saveOutcome{stored: append([]LineItem(nil), lines...), lines: lines, order: plan.Header}, nil
}

func (s *Session) savePurchase(ctx context.Context, in saveInput) (saveOutcome, error) {
	if atomic, ok := s.cfg.Purchases.(AtomicPurchaseStore); ok && !s.cfg.Stepwise {
		desired := PurchaseSnapshot{Purchase: in.purchase, Items: in.lines}
		if err := ctx.Err(); err != nil {
			return saveOutcome{}, &SaveError{Variant: VariantPurchase, Step: StepReconcile, Err: err}
		}
		snap, err := atomic.ReconcilePurchase(ctx, s.docID, desired)
		if err != nil {
			return saveOutcome{}, &SaveError{Variant: VariantPurchase, Step: StepReconcile, Err: err}
		}
		return saveOutcome{stored: snap.Items, lines: append([]LineItem(nil), snap.Items...), purchase: snap.Purchase}, nil
	}

	plan := PlanPurchase(in.stored, in.lines, in.purchase, in.mode)
	var prog progress
	runErr := runPurchasePlan(ctx, s.cfg.Purchases, s.docID, plan, &prog)
	stored := applyProgress(in.stored, prog)
	if runErr != nil {
		// the desired lines are unchanged; the next attempt replaces whatever is stored now
		return saveOutcome{stored: stored}, runErr
	}
	return saveOutcome{stored: stored, lines: append([]LineItem(nil), stored...), purchase: plan.Header}, nil
}

func withClientRefs(lines []LineItem) []LineItem {
	out := make([]LineItem, len(lines))
	for i, ln := range lines {
		if !ln.Persisted() && ln.ClientRef == 0 {
			ln.ClientRef = ln.ID
			ln.ID = 0
		}
		out[i] = ln
	}
	return out
}

func resultLabel(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return "invalid"
	}
	var serr *SaveError
	if errors.As(err, &serr) && serr.Partial() {
		return "partial"
	}
	return "failed"
}

func (s *Session) record(result string, elapsed time.Duration, err error) {
	variant := s.variant.String()
	if obs.ReconcileSavesTotal != nil {
		obs.ReconcileSavesTotal.WithLabelValues(variant, result).Inc()
	}
	if obs.ReconcileSaveLatency != nil && result != "invalid" {
		obs.ReconcileSaveLatency.WithLabelValues(variant, result).Observe(obs.DurationMillis(elapsed))
	}
	if err == nil {
		s.cfg.Logger.Info().
			Str("variant", variant).
			Int64("document_id", s.docID).
			Int64("duration_ms", elapsed.Milliseconds()).
			Msg("reconcile save completed")
		return
	}

	evt := s.cfg.Logger.Error().Err(err).
		Str("variant", variant).
		Int64("document_id", s.docID).
		Str("result", result)
	var serr *SaveError
	if errors.As(err, &serr) {
		done := make([]string, len(serr.Completed))
		for i, st := range serr.Completed {
			done[i] = string(st)
		}
		evt = evt.Str("step", string(serr.Step)).Strs("completed", done).Int("applied", serr.Applied)
		if obs.ReconcileStepFailuresTotal != nil {
			obs.ReconcileStepFailuresTotal.WithLabelValues(variant, string(serr.Step)).Inc()
		}
	}
	evt.Msg("reconcile save failed")
}
