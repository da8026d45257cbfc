package peersync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/ordersync/internal/clock"
	"github.com/roach88/ordersync/internal/lifecycle"
	"github.com/roach88/ordersync/internal/model"
	"github.com/roach88/ordersync/internal/shared"
)

// Peer connects one lifecycle engine to the shared store.
//
// Every change to the engine's order list is force-written to the orders
// key, even when the serialized list is unchanged, because the store only
// notifies other peers. Notifications from other peers are queued and
// applied by Run (or ProcessPending) one at a time.
//
// If the shared store fails, the peer logs one warning and continues in
// local-only mode: engine operations keep succeeding, nothing is published.
type Peer struct {
	engine *lifecycle.Engine
	store  shared.Store
	clock  clock.Clock
	logger *slog.Logger

	queue       *changeQueue
	unsubscribe func()
	detach      func()

	degraded atomic.Bool
	warnOnce sync.Once

	records         map[string]replicated
	customers       *Record[[]model.Customer]
	currentCustomer *Record[model.Customer]
	currentUser     *Record[model.User]
	cart            *Record[model.Cart]

	published atomic.Int64
}

// Option configures a Peer.
type Option func(*Peer)

// WithClock sets the clock used for envelope timestamps.
func WithClock(c clock.Clock) Option {
	return func(p *Peer) { p.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Peer) { p.logger = l }
}

// New creates a peer for engine on store. Call Start before use.
func New(engine *lifecycle.Engine, store shared.Store, opts ...Option) *Peer {
	p := &Peer{
		engine: engine,
		store:  store,
		clock:  clock.New(),
		logger: slog.Default(),
		queue:  newChangeQueue(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("peer", store.Origin())

	p.customers = newRecord[[]model.Customer](p, shared.KeyCustomers)
	p.currentCustomer = newRecord[model.Customer](p, shared.KeyCurrentCustomer)
	p.currentUser = newRecord[model.User](p, shared.KeyCurrentUser)
	p.cart = newRecord[model.Cart](p, shared.KeyCart)
	p.records = map[string]replicated{
		shared.KeyCustomers:       p.customers,
		shared.KeyCurrentCustomer: p.currentCustomer,
		shared.KeyCurrentUser:     p.currentUser,
		shared.KeyCart:            p.cart,
	}
	return p
}

// ID returns the peer id used as the shared-store origin.
func (p *Peer) ID() string {
	return p.store.Origin()
}

// Customers is the replicated customer list.
func (p *Peer) Customers() *Record[[]model.Customer] { return p.customers }

// CurrentCustomer is the replicated active customer session.
func (p *Peer) CurrentCustomer() *Record[model.Customer] { return p.currentCustomer }

// CurrentUser is the replicated signed-in staff user.
func (p *Peer) CurrentUser() *Record[model.User] { return p.currentUser }

// Cart is the replicated cart of the active customer.
func (p *Peer) Cart() *Record[model.Cart] { return p.cart }

// Degraded reports whether the peer has fallen back to local-only mode.
func (p *Peer) Degraded() bool {
	return p.degraded.Load()
}

// Published returns how many times the orders key has been written.
func (p *Peer) Published() int64 {
	return p.published.Load()
}

// Start subscribes to the shared store, pulls the current shared values,
// and begins publishing engine changes. A store failure here degrades the
// peer instead of failing.
func (p *Peer) Start(ctx context.Context) error {
	p.detach = p.engine.OnChange(func() { p.PublishOrders(context.Background()) })

	unsub, err := p.store.Subscribe(ctx, func(c shared.Change) { p.queue.Enqueue(c) })
	if err != nil {
		p.degrade(err)
		return nil
	}
	p.unsubscribe = unsub

	if raw, err := p.store.Get(ctx, shared.KeyOrders); err == nil {
		p.handle(ctx, shared.Change{Key: shared.KeyOrders, Value: raw})
	} else if !errors.Is(err, shared.ErrNotFound) {
		p.degrade(err)
		return nil
	}
	for _, r := range p.records {
		if err := r.load(ctx, p.store); err != nil && !errors.Is(err, shared.ErrNotFound) {
			p.logger.Warn("initial load failed", "key", r.Key(), "error", err)
		}
	}

	// Announce what this peer holds so siblings can recover it.
	p.PublishOrders(ctx)
	p.logger.Info("peer sync started")
	return nil
}

// Run applies queued notifications until ctx is cancelled or Close is called.
// Must be called from exactly one goroutine.
//
// A notification that fails to apply is logged and discarded; the loop
// keeps going.
func (p *Peer) Run(ctx context.Context) error {
	for {
		if c, ok := p.queue.TryDequeue(); ok {
			p.handle(ctx, c)
			continue
		}

		select {
		case <-ctx.Done():
			p.logger.Info("peer sync stopping: context cancelled")
			return ctx.Err()
		case <-p.queue.Wait():
			if p.queue.Len() == 0 && p.closed() {
				p.logger.Info("peer sync stopping: queue closed")
				return nil
			}
		}
	}
}

// ProcessPending applies every queued notification without blocking and
// returns how many were handled.
func (p *Peer) ProcessPending(ctx context.Context) int {
	n := 0
	for {
		c, ok := p.queue.TryDequeue()
		if !ok {
			return n
		}
		p.handle(ctx, c)
		n++
	}
}

// Pending returns the number of queued notifications.
func (p *Peer) Pending() int {
	return p.queue.Len()
}

// Close stops publishing and unsubscribes. Run returns once the queue drains.
func (p *Peer) Close() {
	if p.detach != nil {
		p.detach()
	}
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
	p.queue.Close()
}

func (p *Peer) closed() bool {
	p.queue.mu.Lock()
	defer p.queue.mu.Unlock()
	return p.queue.closed
}

// PublishOrders force-writes the engine's full order list and tombstones.
func (p *Peer) PublishOrders(ctx context.Context) {
	if p.Degraded() {
		return
	}
	state := p.engine.State()
	data, err := EncodeOrders(state.Orders, state.Tombstones, p.clock.Now())
	if err != nil {
		p.logger.Error("encode orders failed", "error", err)
		return
	}
	if p.write(ctx, shared.KeyOrders, data) {
		p.published.Add(1)
		p.logger.Debug("orders published", "orders", len(state.Orders), "version", state.Version)
	}
}

// ClearSession ends customerID's session if it is the active one, dropping
// the current customer and the cart. It satisfies lifecycle.SessionClearer.
func (p *Peer) ClearSession(customerID string) {
	ctx := context.Background()
	cur, ok := p.currentCustomer.Get()
	if !ok || cur.ID != customerID {
		return
	}
	p.currentCustomer.Clear(ctx)
	p.cart.Clear(ctx)
	p.logger.Info("customer session cleared", "customer_id", customerID)
}

// handle applies one notification. Parse failures discard the notification.
func (p *Peer) handle(ctx context.Context, c shared.Change) {
	if c.Key == shared.KeyOrders {
		p.handleOrders(ctx, c)
		return
	}

	r, ok := p.records[c.Key]
	if !ok {
		p.logger.Debug("ignoring change for unknown key", "key", c.Key, "origin", c.Origin)
		return
	}
	changed, err := r.apply(c.Value)
	if err != nil {
		p.logger.Warn("discarding malformed notification", "key", c.Key, "origin", c.Origin, "error", err)
		return
	}
	if changed {
		p.logger.Debug("record updated", "key", c.Key, "origin", c.Origin)
	}
}

func (p *Peer) handleOrders(ctx context.Context, c shared.Change) {
	if c.Value == nil {
		// Deleting the key removes no orders; only tombstones do.
		p.logger.Debug("orders key deleted remotely", "origin", c.Origin)
		return
	}
	payload, err := DecodeOrders(c.Value)
	if err != nil {
		p.logger.Warn("discarding malformed notification", "key", c.Key, "origin", c.Origin, "error", err)
		return
	}

	res, err := p.engine.ApplySnapshot(ctx, payload.Orders, payload.Tombstones)
	if err != nil {
		p.logger.Error("apply snapshot failed", "origin", c.Origin, "error", err)
		return
	}
	p.logger.Debug("snapshot merged",
		"origin", c.Origin,
		"legacy", payload.Legacy,
		"changed", res.Changed(),
		"added", len(res.Added),
		"updated", len(res.Updated),
		"removed", len(res.Removed),
	)
}

// write sets key, degrading on failure. Returns true on success.
func (p *Peer) write(ctx context.Context, key string, data []byte) bool {
	if p.Degraded() {
		return false
	}
	if err := p.store.Set(ctx, key, data); err != nil {
		p.degrade(err)
		return false
	}
	return true
}

func (p *Peer) remove(ctx context.Context, key string) {
	if p.Degraded() {
		return
	}
	if err := p.store.Delete(ctx, key); err != nil {
		p.degrade(err)
	}
}

func (p *Peer) degrade(err error) {
	p.degraded.Store(true)
	p.warnOnce.Do(func() {
		p.logger.Warn("shared store unavailable, continuing in local-only mode", "error", err)
	})
}
