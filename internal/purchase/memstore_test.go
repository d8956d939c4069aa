package purchase_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-pos/internal/purchase"
	"github.com/noah-isme/backend-pos/internal/reconcile"
)

type itemRow struct {
	tenant     uuid.UUID
	purchaseID int64
	item       reconcile.LineItem
}

type receiptRow struct {
	tenant  uuid.UUID
	receipt purchase.Receipt
}

// memStore is an in-memory purchase.Store with rollback on failed WithTx.
type memStore struct {
	mu       sync.Mutex
	receipts map[int64]receiptRow
	items    map[int64]itemRow
	counter  map[uuid.UUID]int64
	nextID   int64
	nextItem int64
	failAt   map[string]int
	counts   map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		receipts: map[int64]receiptRow{},
		items:    map[int64]itemRow{},
		counter:  map[uuid.UUID]int64{},
		nextID:   1,
		nextItem: 1,
		failAt:   map[string]int{},
		counts:   map[string]int{},
	}
}

func (m *memStore) enter(name string) error {
	m.counts[name]++
	if n, ok := m.failAt[name]; ok && m.counts[name] == n {
		return fmt.Errorf("%s: storage unavailable", name)
	}
	return nil
}

func (m *memStore) WithTx(ctx context.Context, fn func(purchase.Store) error) error {
	m.mu.Lock()
	receipts := make(map[int64]receiptRow, len(m.receipts))
	for k, v := range m.receipts {
		receipts[k] = v
	}
	items := make(map[int64]itemRow, len(m.items))
	for k, v := range m.items {
		items[k] = v
	}
	counter := make(map[uuid.UUID]int64, len(m.counter))
	for k, v := range m.counter {
		counter[k] = v
	}
	nextID, nextItem := m.nextID, m.nextItem
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.receipts, m.items, m.counter, m.nextID, m.nextItem = receipts, items, counter, nextID, nextItem
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) NextReceiptNumber(ctx context.Context, tenantID uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter[tenantID]++
	return fmt.Sprintf("PO-%06d", m.counter[tenantID]), nil
}

func (m *memStore) CreateReceipt(ctx context.Context, tenantID uuid.UUID, h reconcile.PurchaseHeader) (purchase.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h.ID = m.nextID
	m.nextID++
	now := time.Now().UTC()
	p := purchase.Receipt{PurchaseHeader: h, CreatedAt: now, UpdatedAt: now}
	m.receipts[h.ID] = receiptRow{tenant: tenantID, receipt: p}
	return p, nil
}

func (m *memStore) GetReceipt(ctx context.Context, tenantID uuid.UUID, purchaseID int64, forUpdate bool) (purchase.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.receipts[purchaseID]
	if !ok || row.tenant != tenantID {
		return purchase.Receipt{}, purchase.ErrNotFound
	}
	return row.receipt, nil
}

func (m *memStore) ListReceipts(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]purchase.Receipt, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []purchase.Receipt
	for _, row := range m.receipts {
		if row.tenant == tenantID {
			all = append(all, row.receipt)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	if offset >= len(all) {
		return []purchase.Receipt{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *memStore) UpdateReceipt(ctx context.Context, tenantID uuid.UUID, purchaseID int64, h reconcile.PurchaseHeader) (purchase.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateReceipt"); err != nil {
		return purchase.Receipt{}, err
	}
	row, ok := m.receipts[purchaseID]
	if !ok || row.tenant != tenantID {
		return purchase.Receipt{}, purchase.ErrNotFound
	}
	h.ID, h.ReceiptNumber = row.receipt.ID, row.receipt.ReceiptNumber
	row.receipt.PurchaseHeader = h
	m.receipts[purchaseID] = row
	return row.receipt, nil
}

func (m *memStore) ListItems(ctx context.Context, tenantID uuid.UUID, purchaseID int64) ([]reconcile.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []reconcile.LineItem{}
	for _, row := range m.items {
		if row.tenant == tenantID && row.purchaseID == purchaseID {
			out = append(out, row.item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RowOrder != out[j].RowOrder {
			return out[i].RowOrder < out[j].RowOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memStore) InsertItem(ctx context.Context, tenantID uuid.UUID, purchaseID int64, it reconcile.LineItem) (reconcile.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("InsertItem"); err != nil {
		return reconcile.LineItem{}, err
	}
	it.ID = m.nextItem
	m.nextItem++
	m.items[it.ID] = itemRow{tenant: tenantID, purchaseID: purchaseID, item: it}
	return it, nil
}

func (m *memStore) ItemReceiptID(ctx context.Context, tenantID uuid.UUID, itemID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.items[itemID]
	if !ok || row.tenant != tenantID {
		return 0, purchase.ErrNotFound
	}
	return row.purchaseID, nil
}

func (m *memStore) DeleteItem(ctx context.Context, tenantID uuid.UUID, itemID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.items[itemID]
	if !ok || row.tenant != tenantID {
		return 0, purchase.ErrNotFound
	}
	delete(m.items, itemID)
	return row.purchaseID, nil
}
