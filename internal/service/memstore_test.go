package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dbreno/mugiwaradb/internal/models"
	"github.com/dbreno/mugiwaradb/internal/store"
)

// memStore is an in-memory CheckoutBeginner with the same contract as the
// SQL store: exclusive per-product locks held until commit or rollback, a
// bounded lock wait that fails with ErrBusy, and staged writes that become
// visible atomically on commit.
type memStore struct {
	mu          sync.Mutex
	products    map[int64]*memProduct
	orders      map[int64]*models.Order
	lines       map[int64][]models.OrderLine
	nextOrderID int64
	nextLineID  int64
	lockTimeout time.Duration
	sessions    int32
}

type memProduct struct {
	name  string
	price int64
	stock int
	lock  chan struct{} // buffered 1: a mutex that can be waited on with timeout
}

func newMemStore(lockTimeout time.Duration) *memStore {
	return &memStore{
		products:    make(map[int64]*memProduct),
		orders:      make(map[int64]*models.Order),
		lines:       make(map[int64][]models.OrderLine),
		lockTimeout: lockTimeout,
	}
}

func (m *memStore) addProduct(id int64, name string, price int64, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id] = &memProduct{
		name:  name,
		price: price,
		stock: stock,
		lock:  make(chan struct{}, 1),
	}
}

func (m *memStore) setPrice(id int64, price int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id].price = price
}

func (m *memStore) stockOf(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].stock
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memStore) lineCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ls := range m.lines {
		n += len(ls)
	}
	return n
}

func (m *memStore) linesOf(orderID int64) []models.OrderLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.OrderLine(nil), m.lines[orderID]...)
}

func (m *memStore) sessionsOpened() int32 {
	return atomic.LoadInt32(&m.sessions)
}

func (m *memStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *order
	return &copied, nil
}

func (m *memStore) GetOrderLinesByOrderID(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	return m.linesOf(orderID), nil
}

func (m *memStore) GetOrdersByCustomerID(ctx context.Context, customerID int64) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var orders []models.Order
	for _, order := range m.orders {
		if order.CustomerID == customerID {
			orders = append(orders, *order)
		}
	}
	return orders, nil
}

func (m *memStore) BeginCheckout(ctx context.Context) (store.CheckoutSession, error) {
	atomic.AddInt32(&m.sessions, 1)
	return &memSession{
		store:  m,
		held:   make(map[int64]bool),
		staged: make(map[int64]int),
	}, nil
}

type memSession struct {
	store       *memStore
	held        map[int64]bool
	heldOrder   []int64
	staged      map[int64]int // staged stock decrements per product
	stagedOrder *models.Order
	stagedLines []models.OrderLine
	closed      bool
}

func (s *memSession) LockProduct(ctx context.Context, productID int64) (store.LockedProduct, error) {
	var locked store.LockedProduct

	s.store.mu.Lock()
	p, ok := s.store.products[productID]
	s.store.mu.Unlock()
	if !ok {
		return locked, &store.ProductNotFoundError{ID: productID}
	}

	if !s.held[productID] {
		select {
		case p.lock <- struct{}{}:
			s.held[productID] = true
			s.heldOrder = append(s.heldOrder, productID)
		case <-time.After(s.store.lockTimeout):
			return locked, store.ErrBusy
		case <-ctx.Done():
			return locked, ctx.Err()
		}
	}

	s.store.mu.Lock()
	locked = store.LockedProduct{
		Name:      p.name,
		UnitPrice: p.price,
		Stock:     p.stock - s.staged[productID],
	}
	s.store.mu.Unlock()
	return locked, nil
}

func (s *memSession) InsertOrder(ctx context.Context, order *models.Order) error {
	s.store.mu.Lock()
	s.store.nextOrderID++
	order.ID = s.store.nextOrderID
	s.store.mu.Unlock()

	order.CreatedAt = time.Now()
	s.stagedOrder = order
	return nil
}

func (s *memSession) InsertOrderLine(ctx context.Context, line *models.OrderLine) error {
	if s.stagedOrder == nil || line.OrderID != s.stagedOrder.ID {
		return fmt.Errorf("order line without matching order header")
	}

	s.store.mu.Lock()
	s.store.nextLineID++
	line.ID = s.store.nextLineID
	s.store.mu.Unlock()

	s.stagedLines = append(s.stagedLines, *line)
	return nil
}

func (s *memSession) DecrementStock(ctx context.Context, productID int64, qty int) (int, error) {
	if !s.held[productID] {
		return 0, fmt.Errorf("decrement without holding lock on product %d", productID)
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	p := s.store.products[productID]
	s.staged[productID] += qty
	remaining := p.stock - s.staged[productID]
	if remaining < 0 {
		// Mirrors the stock >= 0 CHECK constraint.
		return 0, fmt.Errorf("stock constraint violated for product %d", productID)
	}
	return remaining, nil
}

func (s *memSession) Commit() error {
	if s.closed {
		return fmt.Errorf("session already closed")
	}

	s.store.mu.Lock()
	for id, qty := range s.staged {
		s.store.products[id].stock -= qty
	}
	if s.stagedOrder != nil {
		s.store.orders[s.stagedOrder.ID] = s.stagedOrder
		s.store.lines[s.stagedOrder.ID] = s.stagedLines
	}
	s.store.mu.Unlock()

	s.release()
	return nil
}

func (s *memSession) Rollback() error {
	if s.closed {
		return nil
	}
	s.release()
	return nil
}

func (s *memSession) release() {
	s.closed = true
	for _, id := range s.heldOrder {
		s.store.mu.Lock()
		p := s.store.products[id]
		s.store.mu.Unlock()
		<-p.lock
	}
	s.heldOrder = nil
	s.held = make(map[int64]bool)
}

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	mu     sync.Mutex
	events []*models.OrderPlacedEvent
}

func (p *capturingPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) published() []*models.OrderPlacedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*models.OrderPlacedEvent(nil), p.events...)
}
