package order_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-pos/internal/order"
	"github.com/noah-isme/backend-pos/internal/reconcile"
)

type itemRow struct {
	tenant  uuid.UUID
	orderID int64
	item    reconcile.LineItem
}

type orderRow struct {
	tenant uuid.UUID
	order  order.Order
}

type memState struct {
	orders   map[int64]orderRow
	items    map[int64]itemRow
	counters map[uuid.UUID]int64
	nextOrd  int64
	nextItem int64
}

func (s memState) clone() memState {
	c := memState{
		orders:   make(map[int64]orderRow, len(s.orders)),
		items:    make(map[int64]itemRow, len(s.items)),
		counters: make(map[uuid.UUID]int64, len(s.counters)),
		nextOrd:  s.nextOrd,
		nextItem: s.nextItem,
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.counters {
		c.counters[k] = v
	}
	return c
}

// memStore is an in-memory order.Store. WithTx restores the previous state
// when fn fails, like a rolled back transaction.
type memStore struct {
	mu     sync.Mutex
	state  memState
	failOn map[string]error
	calls  []string
}

func newMemStore() *memStore {
	return &memStore{
		state:  memState{orders: map[int64]orderRow{}, items: map[int64]itemRow{}, counters: map[uuid.UUID]int64{}, nextOrd: 1, nextItem: 1},
		failOn: map[string]error{},
	}
}

func (m *memStore) enter(name string) error {
	m.calls = append(m.calls, name)
	return m.failOn[name]
}

func (m *memStore) WithTx(ctx context.Context, fn func(order.Store) error) error {
	m.mu.Lock()
	saved := m.state.clone()
	m.mu.Unlock()
	if err := fn(m); err != nil {
		m.mu.Lock()
		m.state = saved
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) NextOrderNumber(ctx context.Context, tenantID uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("NextOrderNumber"); err != nil {
		return "", err
	}
	m.state.counters[tenantID]++
	return fmt.Sprintf("ORD-%06d", m.state.counters[tenantID]), nil
}

func (m *memStore) CreateOrder(ctx context.Context, tenantID uuid.UUID, h reconcile.OrderHeader) (order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateOrder"); err != nil {
		return order.Order{}, err
	}
	h.ID = m.state.nextOrd
	m.state.nextOrd++
	now := time.Now().UTC()
	o := order.Order{OrderHeader: h, CreatedAt: now, UpdatedAt: now}
	m.state.orders[h.ID] = orderRow{tenant: tenantID, order: o}
	return o, nil
}

func (m *memStore) GetOrder(ctx context.Context, tenantID uuid.UUID, orderID int64, forUpdate bool) (order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetOrder"); err != nil {
		return order.Order{}, err
	}
	row, ok := m.state.orders[orderID]
	if !ok || row.tenant != tenantID {
		return order.Order{}, order.ErrNotFound
	}
	return row.order, nil
}

func (m *memStore) ListOrders(ctx context.Context, tenantID uuid.UUID, status string, limit, offset int) ([]order.Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []order.Order
	for _, row := range m.state.orders {
		if row.tenant == tenantID && (status == "" || row.order.Status == status) {
			all = append(all, row.order)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	if offset >= len(all) {
		return []order.Order{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *memStore) UpdateOrder(ctx context.Context, tenantID uuid.UUID, orderID int64, h reconcile.OrderHeader) (order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateOrder"); err != nil {
		return order.Order{}, err
	}
	row, ok := m.state.orders[orderID]
	if !ok || row.tenant != tenantID {
		return order.Order{}, order.ErrNotFound
	}
	h.ID, h.OrderNumber = row.order.ID, row.order.OrderNumber
	row.order.OrderHeader = h
	row.order.UpdatedAt = time.Now().UTC()
	m.state.orders[orderID] = row
	return row.order, nil
}

func (m *memStore) ListItems(ctx context.Context, tenantID uuid.UUID, orderID int64) ([]reconcile.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []reconcile.LineItem{}
	for _, row := range m.state.items {
		if row.tenant == tenantID && row.orderID == orderID {
			out = append(out, row.item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) InsertItems(ctx context.Context, tenantID uuid.UUID, orderID int64, items []reconcile.LineItem) ([]reconcile.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("InsertItems"); err != nil {
		return nil, err
	}
	out := make([]reconcile.LineItem, 0, len(items))
	for _, it := range items {
		it.ID = m.state.nextItem
		m.state.nextItem++
		m.state.items[it.ID] = itemRow{tenant: tenantID, orderID: orderID, item: it}
		out = append(out, it)
	}
	return out, nil
}

func (m *memStore) ItemOrderID(ctx context.Context, tenantID uuid.UUID, itemID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ItemOrderID"); err != nil {
		return 0, err
	}
	row, ok := m.state.items[itemID]
	if !ok || row.tenant != tenantID {
		return 0, order.ErrNotFound
	}
	return row.orderID, nil
}

func (m *memStore) PatchItem(ctx context.Context, tenantID uuid.UUID, itemID int64, p reconcile.ItemPatch) (reconcile.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("PatchItem"); err != nil {
		return reconcile.LineItem{}, err
	}
	row, ok := m.state.items[itemID]
	if !ok || row.tenant != tenantID {
		return reconcile.LineItem{}, order.ErrNotFound
	}
	row.item.Discount, row.item.Tax, row.item.PriceBeforeTax = p.Discount, p.Tax, p.PriceBeforeTax
	row.item.Total = p.Tax.Add(p.PriceBeforeTax)
	m.state.items[itemID] = row
	return row.item, nil
}

func (m *memStore) DeleteItem(ctx context.Context, tenantID uuid.UUID, itemID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteItem"); err != nil {
		return 0, err
	}
	row, ok := m.state.items[itemID]
	if !ok || row.tenant != tenantID {
		return 0, order.ErrNotFound
	}
	delete(m.state.items, itemID)
	return row.orderID, nil
}

func (m *memStore) setStatus(orderID int64, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.state.orders[orderID]
	row.order.Status = status
	m.state.orders[orderID] = row
}
