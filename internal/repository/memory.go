package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"flipbook-fulfillment-service/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryOrderRepository keeps orders in process memory. It follows the same
// matching rules as the Mongo repository and backs the service and HTTP tests.
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*model.Order
	now    func() time.Time
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		orders: map[string]*model.Order{},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source used for created_at/updated_at.
func (m *MemoryOrderRepository) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryOrderRepository) Insert(_ context.Context, o *model.Order) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.orders {
		if existing.OrderNumber == o.OrderNumber {
			return "", fmt.Errorf("order number %s already exists", o.OrderNumber)
		}
	}

	stampNew(o, m.now)
	o.ID = primitive.NewObjectID().Hex()

	m.orders[o.ID] = cloneOrder(o)
	return o.ID, nil
}

func (m *MemoryOrderRepository) FindByNumber(_ context.Context, orderNumber string) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, o := range m.orders {
		if o.OrderNumber == orderNumber {
			return cloneOrder(o), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryOrderRepository) FindByID(_ context.Context, id string) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *MemoryOrderRepository) List(_ context.Context, f model.OrderFilters) ([]*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	search := strings.ToLower(f.Search)
	out := []*model.Order{}
	for _, o := range m.orders {
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(o.OrderNumber), search) &&
			!strings.Contains(strings.ToLower(o.Customer.Name), search) &&
			!strings.Contains(strings.ToLower(o.Customer.Phone), search) {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryOrderRepository) UpdateStatus(_ context.Context, id string, status model.OrderStatus, adminNote *string, record model.StatusRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	if adminNote != nil {
		note := *adminNote
		o.AdminNote = &note
	}
	m.touch(o, record)
	return nil
}

func (m *MemoryOrderRepository) UpdateTracking(_ context.Context, id, courier, trackingNumber string, record model.StatusRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Courier = &courier
	o.TrackingNumber = &trackingNumber
	o.Status = model.StatusShipping
	m.touch(o, record)
	return nil
}

func (m *MemoryOrderRepository) touch(o *model.Order, record model.StatusRecord) {
	if record.At.IsZero() {
		record.At = m.now()
	}
	o.History = append(o.History, record)
	o.UpdatedAt = record.At
}

func cloneOrder(o *model.Order) *model.Order {
	c := *o
	c.History = append([]model.StatusRecord(nil), o.History...)
	return &c
}
