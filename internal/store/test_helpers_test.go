package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/ordersync/internal/model"
)

// orderStore is the surface shared by Store and Memory.
type orderStore interface {
	SetOrder(ctx context.Context, o model.Order) error
	GetOrder(ctx context.Context, id string) (model.Order, error)
	RemoveOrder(ctx context.Context, id string, removedAt time.Time) error
	AllOrders(ctx context.Context) ([]model.Order, error)
	RemovedOrders(ctx context.Context) (map[string]time.Time, error)
}

var base = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// bothStores runs fn against the SQLite store and the in-memory store.
func bothStores(t *testing.T, fn func(t *testing.T, s orderStore)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, createTestStore(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
}

// createTestOrder creates an order with one line, created at base+offset.
func createTestOrder(id, customerID string, offset time.Duration) model.Order {
	at := base.Add(offset)
	o := model.Order{
		ID:           id,
		CustomerID:   customerID,
		CustomerName: "Guest " + customerID,
		TableNumber:  7,
		Items: []model.OrderItem{{
			ID:         id + "-line-1",
			MenuItemID: "soup",
			MenuItem:   model.MenuItem{ID: "soup", Name: "Soup", Price: decimal.NewFromInt(120)},
			Quantity:   2,
		}},
		Status:    model.StatusPending,
		CreatedAt: at,
		UpdatedAt: at,
		CanCancel: true,
	}
	o.Recalculate()
	return o
}
