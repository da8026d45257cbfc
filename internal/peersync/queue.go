package peersync

import (
	"sync"

	"github.com/roach88/ordersync/internal/shared"
)

// changeQueue is a thread-safe FIFO of shared-store notifications.
//
// It is unbounded so the store's delivery callback never blocks. The Run
// loop waits on a buffered signal channel for context-aware dequeuing.
type changeQueue struct {
	mu      sync.Mutex
	changes []shared.Change
	closed  bool
	signal  chan struct{} // buffered, size 1
}

func newChangeQueue() *changeQueue {
	return &changeQueue{
		changes: make([]shared.Change, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds c to the back of the queue. Returns false if closed.
func (q *changeQueue) Enqueue(c shared.Change) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.changes = append(q.changes, c)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front change without blocking.
func (q *changeQueue) TryDequeue() (shared.Change, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.changes) == 0 {
		return shared.Change{}, false
	}
	c := q.changes[0]
	q.changes[0] = shared.Change{}
	if len(q.changes) == 1 {
		q.changes = q.changes[:0]
	} else {
		q.changes = q.changes[1:]
	}
	return c, true
}

// Wait returns a channel that signals when changes may be available.
// It is closed when the queue is closed.
func (q *changeQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued changes.
func (q *changeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.changes)
}

// Close rejects further changes and wakes waiters.
func (q *changeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
