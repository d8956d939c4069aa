package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/pricing"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var errNotFound = errors.New("not found")

type fakeOrderStore struct {
	mu      sync.Mutex
	header  OrderHeader
	items   []LineItem
	nextID  int64
	calls   []string
	failOn  map[string]error
	entered chan struct{}
	release chan struct{}
}

func newFakeOrderStore(header OrderHeader, items ...LineItem) *fakeOrderStore {
	next := int64(1)
	for _, it := range items {
		if it.ID >= next {
			next = it.ID + 1
		}
	}
	return &fakeOrderStore{header: header, items: items, nextID: next, failOn: map[string]error{}}
}

func (f *fakeOrderStore) enter(name string) error {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	err := f.failOn[name]
	entered, release := f.entered, f.release
	f.mu.Unlock()
	if entered != nil && name == "UpdateOrder" {
		entered <- struct{}{}
		<-release
	}
	return err
}

func (f *fakeOrderStore) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeOrderStore) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *fakeOrderStore) Items() []LineItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]LineItem(nil), f.items...)
}

func (f *fakeOrderStore) Header() OrderHeader {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.header
}

func (f *fakeOrderStore) GetOrder(ctx context.Context, orderID int64) (OrderHeader, error) {
	if err := f.enter("GetOrder"); err != nil {
		return OrderHeader{}, err
	}
	return f.Header(), nil
}

func (f *fakeOrderStore) ListOrderItems(ctx context.Context, orderID int64) ([]LineItem, error) {
	if err := f.enter("ListOrderItems"); err != nil {
		return nil, err
	}
	return f.Items(), nil
}

func (f *fakeOrderStore) AddOrderItems(ctx context.Context, orderID int64, items []LineItem) ([]LineItem, error) {
	if err := f.enter("AddOrderItems"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	created := make([]LineItem, len(items))
	for i, it := range items {
		it.ID = f.nextID
		f.nextID++
		f.items = append(f.items, it)
		created[i] = it
	}
	return created, nil
}

func (f *fakeOrderStore) UpdateOrderItem(ctx context.Context, itemID int64, patch ItemPatch) error {
	if err := f.enter("UpdateOrderItem"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == itemID {
			f.items[i].Discount = patch.Discount
			f.items[i].Tax = patch.Tax
			f.items[i].PriceBeforeTax = patch.PriceBeforeTax
			f.items[i].Total = patch.PriceBeforeTax.Add(patch.Tax)
			return nil
		}
	}
	return errNotFound
}

func (f *fakeOrderStore) UpdateOrder(ctx context.Context, orderID int64, header OrderHeader) error {
	if err := f.enter("UpdateOrder"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	header.ID, header.OrderNumber = f.header.ID, f.header.OrderNumber
	f.header = header
	return nil
}

func (f *fakeOrderStore) DeleteOrderItem(ctx context.Context, itemID int64) error {
	if err := f.enter("DeleteOrderItem"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == itemID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return errNotFound
}

// atomicOrderStore reconciles on the "server" the way the order service does.
type atomicOrderStore struct {
	*fakeOrderStore
	reconciles int
}

func (a *atomicOrderStore) ReconcileOrder(ctx context.Context, orderID int64, desired OrderSnapshot) (OrderSnapshot, error) {
	a.reconciles++
	stored := a.Items()
	plan, err := PlanOrder(stored, ResolveClientRefs(stored, desired.Items), desired.Order, pricing.TaxExclusive)
	if err != nil {
		return OrderSnapshot{}, err
	}
	var prog progress
	if err := runOrderPlan(ctx, a.fakeOrderStore, orderID, plan, &prog); err != nil {
		return OrderSnapshot{}, err
	}
	return OrderSnapshot{Order: a.Header(), Items: a.Items()}, nil
}

type fakePurchaseStore struct {
	mu     sync.Mutex
	header PurchaseHeader
	items  []LineItem
	nextID int64
	calls  []string
	failAt map[string]int
	counts map[string]int
}

func newFakePurchaseStore(header PurchaseHeader, items ...LineItem) *fakePurchaseStore {
	next := int64(1)
	for _, it := range items {
		if it.ID >= next {
			next = it.ID + 1
		}
	}
	return &fakePurchaseStore{header: header, items: items, nextID: next, failAt: map[string]int{}, counts: map[string]int{}}
}

func (f *fakePurchaseStore) enter(name string) error {
	f.calls = append(f.calls, name)
	f.counts[name]++
	if n, ok := f.failAt[name]; ok && f.counts[name] == n {
		return fmt.Errorf("%s: storage unavailable", name)
	}
	return nil
}

func (f *fakePurchaseStore) GetPurchase(ctx context.Context, purchaseID int64) (PurchaseHeader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.header, f.enter("GetPurchase")
}

func (f *fakePurchaseStore) ListPurchaseItems(ctx context.Context, purchaseID int64) ([]LineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]LineItem(nil), f.items...), f.enter("ListPurchaseItems")
}

func (f *fakePurchaseStore) CreatePurchaseItem(ctx context.Context, purchaseID int64, item LineItem) (LineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreatePurchaseItem"); err != nil {
		return LineItem{}, err
	}
	item.ID = f.nextID
	f.nextID++
	f.items = append(f.items, item)
	return item, nil
}

func (f *fakePurchaseStore) DeletePurchaseItem(ctx context.Context, itemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeletePurchaseItem"); err != nil {
		return err
	}
	for i := range f.items {
		if f.items[i].ID == itemID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return errNotFound
}

func (f *fakePurchaseStore) UpdatePurchase(ctx context.Context, purchaseID int64, header PurchaseHeader) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdatePurchase"); err != nil {
		return err
	}
	header.ID, header.ReceiptNumber = f.header.ID, f.header.ReceiptNumber
	f.header = header
	return nil
}

type fakeCatalog map[int64]Product

func (c fakeCatalog) Product(ctx context.Context, id int64) (Product, error) {
	p, ok := c[id]
	if !ok {
		return Product{}, errNotFound
	}
	return p, nil
}

type fakeSettings struct {
	settings Settings
	reads    int
}

func (s *fakeSettings) StoreSettings(ctx context.Context) (Settings, error) {
	s.reads++
	return s.settings, nil
}
