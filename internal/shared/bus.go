package shared

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by a Bus endpoint after Close.
var ErrClosed = errors.New("shared: endpoint closed")

// Bus is an in-process shared store. Every Attach returns an endpoint that
// behaves like a separate peer. Delivery is synchronous on the writer's
// goroutine, so handlers must only enqueue.
type Bus struct {
	mu     sync.RWMutex
	values map[string][]byte
	subs   map[int]*subscription
	nextID int
}

type subscription struct {
	origin string
	h      Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		values: make(map[string][]byte),
		subs:   make(map[int]*subscription),
	}
}

// Attach returns a Store for the peer identified by origin.
func (b *Bus) Attach(origin string) *Endpoint {
	return &Endpoint{bus: b, origin: origin}
}

// Peek returns the raw value for key without going through an endpoint.
func (b *Bus) Peek(key string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[key]
	return v, ok
}

func (b *Bus) publish(c Change) {
	b.mu.RLock()
	targets := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.origin != c.Origin {
			targets = append(targets, s.h)
		}
	}
	b.mu.RUnlock()

	for _, h := range targets {
		h(c)
	}
}

// Endpoint is one peer's view of a Bus.
type Endpoint struct {
	bus    *Bus
	origin string

	mu     sync.Mutex
	subIDs []int
	closed bool
}

// Origin returns the peer id.
func (e *Endpoint) Origin() string {
	return e.origin
}

// Get returns the current value of key.
func (e *Endpoint) Get(_ context.Context, key string) ([]byte, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}
	v, ok := e.bus.Peek(key)
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set stores value and notifies the other endpoints.
func (e *Endpoint) Set(_ context.Context, key string, value []byte) error {
	if e.isClosed() {
		return ErrClosed
	}
	v := make([]byte, len(value))
	copy(v, value)

	e.bus.mu.Lock()
	e.bus.values[key] = v
	e.bus.mu.Unlock()

	e.bus.publish(Change{Key: key, Value: v, Origin: e.origin})
	return nil
}

// Delete removes key and notifies the other endpoints.
func (e *Endpoint) Delete(_ context.Context, key string) error {
	if e.isClosed() {
		return ErrClosed
	}
	e.bus.mu.Lock()
	delete(e.bus.values, key)
	e.bus.mu.Unlock()

	e.bus.publish(Change{Key: key, Origin: e.origin})
	return nil
}

// Subscribe registers h for writes made by other endpoints.
func (e *Endpoint) Subscribe(_ context.Context, h Handler) (func(), error) {
	if e.isClosed() {
		return nil, ErrClosed
	}
	e.bus.mu.Lock()
	id := e.bus.nextID
	e.bus.nextID++
	e.bus.subs[id] = &subscription{origin: e.origin, h: h}
	e.bus.mu.Unlock()

	e.mu.Lock()
	e.subIDs = append(e.subIDs, id)
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.bus.mu.Lock()
			delete(e.bus.subs, id)
			e.bus.mu.Unlock()
		})
	}, nil
}

// Close unsubscribes every handler registered through this endpoint.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	e.bus.mu.Lock()
	for _, id := range e.subIDs {
		delete(e.bus.subs, id)
	}
	e.bus.mu.Unlock()
	e.subIDs = nil
	return nil
}

func (e *Endpoint) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
