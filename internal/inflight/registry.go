// Package inflight tracks orders that have a status transition in progress.
//
// A marker carries its own expiry, so a stuck marker can never block an
// order forever. Expired markers are treated as absent on read and dropped
// by Sweep.
package inflight

import (
	"sync"
	"time"

	"github.com/roach88/ordersync/internal/clock"
)

// Registry maps order id to the time its busy marker expires.
type Registry struct {
	mu      sync.Mutex
	clock   clock.Clock
	expires map[string]time.Time
}

// New creates an empty registry.
func New(c clock.Clock) *Registry {
	return &Registry{
		clock:   c,
		expires: make(map[string]time.Time),
	}
}

// MarkBusy flags orderID as in flight for ttl. Re-marking replaces the expiry.
func (r *Registry) MarkBusy(orderID string, ttl time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expires[orderID] = r.clock.Now().Add(ttl)
}

// IsBusy reports whether orderID has an unexpired marker.
// Expired markers are removed as a side effect.
func (r *Registry) IsBusy(orderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.expires[orderID]
	if !ok {
		return false
	}
	if !r.clock.Now().Before(exp) {
		delete(r.expires, orderID)
		return false
	}
	return true
}

// Clear removes the marker for orderID, expired or not.
func (r *Registry) Clear(orderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.expires, orderID)
}

// Sweep drops expired markers and returns how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	removed := 0
	for id, exp := range r.expires {
		if !now.Before(exp) {
			delete(r.expires, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of markers, including expired ones not yet swept.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.expires)
}
