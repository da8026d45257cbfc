// Package guard suppresses repeated user actions inside a cooldown window.
package guard

import (
	"sync"
	"time"

	"github.com/roach88/ordersync/internal/clock"
)

// DefaultMaxAge is how long an entry is kept before Sweep evicts it.
const DefaultMaxAge = time.Hour

// Guard records the last accepted time of each operation key.
//
// A call is accepted when the key is unknown or its last accepted call is
// at least cooldown old. Accepted calls refresh the timestamp; rejected
// calls do not, so a burst of clicks stays suppressed until the cooldown
// has passed since the last accepted one.
type Guard struct {
	mu      sync.Mutex
	clock   clock.Clock
	maxAge  time.Duration
	entries map[string]time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithMaxAge sets the age after which Sweep evicts entries.
func WithMaxAge(d time.Duration) Option {
	return func(g *Guard) {
		g.maxAge = d
	}
}

// New creates an empty guard.
func New(c clock.Clock, opts ...Option) *Guard {
	g := &Guard{
		clock:   c,
		maxAge:  DefaultMaxAge,
		entries: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ShouldProceed reports whether the action identified by key may run now.
func (g *Guard) ShouldProceed(key string, cooldown time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if last, ok := g.entries[key]; ok && now.Sub(last) < cooldown {
		return false
	}
	g.entries[key] = now
	return true
}

// Sweep evicts entries older than the max age and returns how many were removed.
func (g *Guard) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.clock.Now().Add(-g.maxAge)
	removed := 0
	for k, at := range g.entries {
		if at.Before(cutoff) {
			delete(g.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// StartSweeper runs Sweep every interval until the returned stop func is called.
func (g *Guard) StartSweeper(interval time.Duration) (stop func()) {
	return startSweeper(g.clock, interval, func() { g.Sweep() })
}

func startSweeper(c clock.Clock, interval time.Duration, sweep func()) func() {
	var (
		mu      sync.Mutex
		stopped bool
		timer   clock.Timer
	)
	var tick func()
	tick = func() {
		sweep()
		mu.Lock()
		defer mu.Unlock()
		if !stopped {
			timer = c.AfterFunc(interval, tick)
		}
	}

	mu.Lock()
	timer = c.AfterFunc(interval, tick)
	mu.Unlock()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		stopped = true
		timer.Stop()
	}
}
