package peersync

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/ordersync/internal/shared"
)

// replicated is a shared key handled by a Peer's subscription loop.
type replicated interface {
	Key() string
	// apply merges a remote payload; nil raw means the key was deleted.
	// Returns true if the local value changed.
	apply(raw []byte) (bool, error)
	load(ctx context.Context, s shared.Store) error
}

// Record is a simple value replicated under one shared key with
// replace-on-newer-timestamp semantics. There is no per-field merge.
type Record[T any] struct {
	key  string
	peer *Peer

	mu      sync.Mutex
	value   T
	stamp   time.Time
	present bool
}

func newRecord[T any](p *Peer, key string) *Record[T] {
	return &Record[T]{key: key, peer: p}
}

// Key returns the shared key.
func (r *Record[T]) Key() string {
	return r.key
}

// Get returns the current value and whether one is set.
func (r *Record[T]) Get() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value, r.present
}

// UpdatedAt returns the timestamp of the current value.
func (r *Record[T]) UpdatedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stamp
}

// Set stores v locally, stamped now, and publishes it.
func (r *Record[T]) Set(ctx context.Context, v T) error {
	now := r.peer.clock.Now()
	r.mu.Lock()
	r.value, r.stamp, r.present = v, now, true
	r.mu.Unlock()

	data, err := EncodeRecord(v, now)
	if err != nil {
		return err
	}
	r.peer.write(ctx, r.key, data)
	return nil
}

// Clear removes the value locally and from the shared store.
func (r *Record[T]) Clear(ctx context.Context) {
	var zero T
	r.mu.Lock()
	r.value, r.stamp, r.present = zero, r.peer.clock.Now(), false
	r.mu.Unlock()

	r.peer.remove(ctx, r.key)
}

func (r *Record[T]) apply(raw []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if raw == nil {
		// A delete carries no timestamp; it counts as happening now.
		if now := r.peer.clock.Now(); now.After(r.stamp) {
			r.stamp = now
		}
		if !r.present {
			return false, nil
		}
		var zero T
		r.value, r.present = zero, false
		return true, nil
	}

	v, stamp, err := DecodeRecord[T](r.key, raw)
	if err != nil {
		return false, err
	}
	// A cleared record keeps its stamp, so an older write cannot revive it.
	// Legacy values decode with a zero stamp and only fill a record that was
	// never written.
	if !r.stamp.IsZero() && !stamp.After(r.stamp) {
		return false, nil
	}
	r.value, r.stamp, r.present = v, stamp, true
	return true, nil
}

// load reads the key's current value from the shared store.
func (r *Record[T]) load(ctx context.Context, s shared.Store) error {
	raw, err := s.Get(ctx, r.key)
	if err != nil {
		return err
	}
	_, err = r.apply(raw)
	return err
}
