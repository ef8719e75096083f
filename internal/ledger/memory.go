package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a Store for tests and for runs without a database.
type MemoryStore struct {
	mutex      sync.RWMutex
	orders     []OrderRecord
	deliveries []DeliveryRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) RecordOrder(ctx context.Context, order *OrderRecord) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, existing := range m.orders {
		if existing.Name == order.Name {
			return fmt.Errorf("order %s already recorded", order.Name)
		}
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	m.orders = append(m.orders, cloneOrder(*order))
	return nil
}

func (m *MemoryStore) RecordDelivery(ctx context.Context, delivery *DeliveryRecord) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, existing := range m.deliveries {
		if existing.ArchiveName == delivery.ArchiveName {
			return fmt.Errorf("delivery %s already recorded", delivery.ArchiveName)
		}
	}
	if delivery.ID == "" {
		delivery.ID = uuid.New().String()
	}
	m.deliveries = append(m.deliveries, *delivery)
	return nil
}

func (m *MemoryStore) MarkDeliveryProcessed(ctx context.Context, archiveName string, at time.Time) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i := range m.deliveries {
		if m.deliveries[i].ArchiveName == archiveName {
			processed := at
			m.deliveries[i].ProcessedAt = &processed
			return nil
		}
	}
	return ErrNotFound
}

// ListOrders returns the newest order first.
func (m *MemoryStore) ListOrders(ctx context.Context) ([]OrderRecord, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	orders := make([]OrderRecord, 0, len(m.orders))
	for i := len(m.orders) - 1; i >= 0; i-- {
		orders = append(orders, cloneOrder(m.orders[i]))
	}
	return orders, nil
}

func (m *MemoryStore) GetOrder(ctx context.Context, name string) (*OrderRecord, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, order := range m.orders {
		if order.Name == name {
			found := cloneOrder(order)
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

// ListDeliveries returns the newest delivery first.
func (m *MemoryStore) ListDeliveries(ctx context.Context) ([]DeliveryRecord, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	deliveries := append(make([]DeliveryRecord, 0, len(m.deliveries)), m.deliveries...)
	slices.Reverse(deliveries)
	return deliveries, nil
}

func (m *MemoryStore) HasDelivery(ctx context.Context, archiveName string) (bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return slices.ContainsFunc(m.deliveries, func(d DeliveryRecord) bool {
		return d.ArchiveName == archiveName
	}), nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func cloneOrder(o OrderRecord) OrderRecord {
	o.TargetLanguages = slices.Clone(o.TargetLanguages)
	o.Files = slices.Clone(o.Files)
	return o
}
