// Package schedule runs keyed, cancellable one-shot tasks.
//
// Each task is identified by a key such as "autocomplete:<order-id>".
// Scheduling a key that is already pending replaces the earlier task.
// Once Cancel returns true the task is guaranteed not to run, even if its
// timer has already fired and is waiting to be dispatched.
package schedule

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/ordersync/internal/clock"
)

// Scheduler owns the pending tasks of one peer.
type Scheduler struct {
	mu      sync.Mutex
	clock   clock.Clock
	tasks   map[string]*Handle
	stopped bool
}

// Handle refers to one scheduled task.
type Handle struct {
	s     *Scheduler
	key   string
	timer clock.Timer
}

// New creates a scheduler driven by c.
func New(c clock.Clock) *Scheduler {
	return &Scheduler{
		clock: c,
		tasks: make(map[string]*Handle),
	}
}

// After runs fn once d has elapsed unless the task is cancelled first.
// Returns nil if the scheduler has been stopped.
func (s *Scheduler) After(key string, d time.Duration, fn func()) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	if prev, ok := s.tasks[key]; ok {
		prev.timer.Stop()
		delete(s.tasks, key)
	}
	if d < 0 {
		d = 0
	}

	h := &Handle{s: s, key: key}
	h.timer = s.clock.AfterFunc(d, func() { s.fire(h, fn) })
	s.tasks[key] = h
	return h
}

func (s *Scheduler) fire(h *Handle, fn func()) {
	s.mu.Lock()
	if s.tasks[h.key] != h {
		// Cancelled or replaced after the timer fired.
		s.mu.Unlock()
		return
	}
	delete(s.tasks, h.key)
	s.mu.Unlock()

	fn()
}

// Cancel removes the pending task for key. Returns false if none was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.tasks[key]
	if !ok {
		return false
	}
	h.timer.Stop()
	delete(s.tasks, key)
	return true
}

// Pending reports whether a task is waiting under key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

// Keys returns the pending task keys in sorted order.
func (s *Scheduler) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.tasks))
	for k := range s.tasks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of pending tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels every pending task and rejects new ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for k, h := range s.tasks {
		h.timer.Stop()
		delete(s.tasks, k)
	}
}

// Cancel prevents this task from running.
// Returns false if it already ran, was cancelled, or was replaced.
func (h *Handle) Cancel() bool {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()

	if h.s.tasks[h.key] != h {
		return false
	}
	h.timer.Stop()
	delete(h.s.tasks, h.key)
	return true
}
