// Package shared is the key/value store every peer reads and writes, with a
// change notification fired to the other peers on each write.
//
// Notifications mirror the browser storage event: they reach every
// subscriber except the one whose write caused them, they carry the new
// value, and no ordering is promised across writers.
package shared

import (
	"context"
	"errors"
)

// Well-known keys.
const (
	KeyOrders          = "orders"
	KeyCustomers       = "customers"
	KeyCurrentCustomer = "currentCustomer"
	KeyCurrentUser     = "currentUser"
	KeyCart            = "cart"
)

// ErrNotFound is returned by Get for keys that were never written or were deleted.
var ErrNotFound = errors.New("shared: key not found")

// Change describes one write observed by a subscriber.
type Change struct {
	Key    string
	Value  []byte // nil when the key was deleted
	Origin string // peer id of the writer
}

// Handler receives changes. It must not block; peers enqueue and return.
type Handler func(Change)

// Store is one peer's handle on the shared key/value space.
type Store interface {
	// Origin returns the peer id stamped on this handle's writes.
	Origin() string
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value and notifies other peers even when value is unchanged.
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Subscribe registers h for changes written by other peers.
	// The returned func unsubscribes and waits for in-flight delivery to end.
	Subscribe(ctx context.Context, h Handler) (func(), error)
	Close() error
}
