package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/roach88/ordersync/internal/model"
)

// Memory is a process-local order store with the same semantics as Store.
// It backs peers that run without a database file.
type Memory struct {
	mu      sync.RWMutex
	orders  map[string]model.Order
	removed map[string]time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		orders:  make(map[string]model.Order),
		removed: make(map[string]time.Time),
	}
}

// SetOrder upserts o unless the stored snapshot is newer.
func (m *Memory) SetOrder(_ context.Context, o model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.orders[o.ID]; ok && cur.UpdatedAt.After(o.UpdatedAt) {
		return nil
	}
	m.orders[o.ID] = o.Clone()
	return nil
}

// GetOrder returns the snapshot for id, or ErrNotFound.
func (m *Memory) GetOrder(_ context.Context, id string) (model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return model.Order{}, ErrNotFound
	}
	return o.Clone(), nil
}

// RemoveOrder deletes id and records a tombstone.
func (m *Memory) RemoveOrder(_ context.Context, id string, removedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.orders, id)
	if _, ok := m.removed[id]; !ok {
		m.removed[id] = removedAt
	}
	return nil
}

// AllOrders returns every order sorted by creation time then id.
func (m *Memory) AllOrders(_ context.Context) ([]model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// RemovedOrders returns a copy of the tombstones.
func (m *Memory) RemovedOrders(_ context.Context) (map[string]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]time.Time, len(m.removed))
	for id, at := range m.removed {
		out[id] = at
	}
	return out, nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
