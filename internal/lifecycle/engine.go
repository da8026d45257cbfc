package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roach88/ordersync/internal/clock"
	"github.com/roach88/ordersync/internal/guard"
	"github.com/roach88/ordersync/internal/inflight"
	"github.com/roach88/ordersync/internal/memo"
	"github.com/roach88/ordersync/internal/merge"
	"github.com/roach88/ordersync/internal/model"
	"github.com/roach88/ordersync/internal/schedule"
)

// Store is the durable order store the engine writes through to.
// Implemented by *store.Store (SQLite) and *store.Memory.
type Store interface {
	SetOrder(ctx context.Context, o model.Order) error
	GetOrder(ctx context.Context, id string) (model.Order, error)
	RemoveOrder(ctx context.Context, id string, removedAt time.Time) error
	AllOrders(ctx context.Context) ([]model.Order, error)
	RemovedOrders(ctx context.Context) (map[string]time.Time, error)
}

// State is a point-in-time copy of a peer's order list.
type State struct {
	Orders     []model.Order
	Tombstones map[string]time.Time
	Version    uint64
}

// Engine owns one peer's order list.
type Engine struct {
	mu         sync.Mutex
	orders     []model.Order
	tombstones map[string]time.Time
	version    uint64

	store    Store
	clock    clock.Clock
	ids      IDGenerator
	notifier Notifier
	printer  Printer
	sessions SessionClearer
	logger   *slog.Logger
	settings Settings
	held     bool

	guard  *guard.Guard
	busy   *inflight.Registry
	recent *memo.Cache[struct{}]
	views  *memo.Cache[[]model.Order]
	sched  *schedule.Scheduler

	listenerMu sync.Mutex
	listeners  map[int]func()
	nextListen int

	prints sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source. Default: clock.New().
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDs sets the id generator. Default: UUIDv7Generator.
func WithIDs(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithNotifier sets where user-facing notifications go. Default: LogNotifier.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithPrinter sets the receipt printer. Default: a printer that always succeeds.
func WithPrinter(p Printer) Option {
	return func(e *Engine) { e.printer = p }
}

// WithSessions sets the session clearer. Default: no-op.
func WithSessions(s SessionClearer) Option {
	return func(e *Engine) { e.sessions = s }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSettings overrides DefaultSettings.
func WithSettings(s Settings) Option {
	return func(e *Engine) { e.settings = s }
}

// WithoutDeferredWork keeps auto-completion, cancel-window expiry and
// session clearing from running. The tasks are still tracked, and a
// long-lived peer derives the same deadlines from the order timestamps.
func WithoutDeferredWork() Option {
	return func(e *Engine) { e.held = true }
}

// New creates an engine with an empty order list. Call RecoverLostOrders
// to load what the store already holds.
func New(s Store, opts ...Option) *Engine {
	e := &Engine{
		store:      s,
		clock:      clock.New(),
		ids:        UUIDv7Generator{},
		printer:    nopPrinter{},
		sessions:   nopSessions{},
		logger:     slog.Default(),
		settings:   DefaultSettings(),
		tombstones: make(map[string]time.Time),
		listeners:  make(map[int]func()),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.notifier == nil {
		e.notifier = LogNotifier{Logger: e.logger}
	}

	e.guard = guard.New(e.clock, guard.WithMaxAge(e.settings.GuardMaxAge))
	e.busy = inflight.New(e.clock)
	e.recent = memo.New[struct{}](e.clock)
	e.views = memo.New[[]model.Order](e.clock)
	if e.held {
		e.sched = schedule.New(clock.Held(e.clock))
	} else {
		e.sched = schedule.New(e.clock)
	}
	return e
}

// OnChange registers fn to run after every change to the order list or the
// tombstone set. fn runs without the engine lock held.
func (e *Engine) OnChange(fn func()) (unsubscribe func()) {
	e.listenerMu.Lock()
	id := e.nextListen
	e.nextListen++
	e.listeners[id] = fn
	e.listenerMu.Unlock()

	return func() {
		e.listenerMu.Lock()
		delete(e.listeners, id)
		e.listenerMu.Unlock()
	}
}

// State returns a copy of the current order list and tombstones.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	tombs := make(map[string]time.Time, len(e.tombstones))
	for id, at := range e.tombstones {
		tombs[id] = at
	}
	return State{
		Orders:     model.CloneOrders(e.orders),
		Tombstones: tombs,
		Version:    e.version,
	}
}

// Orders returns a copy of the full order list in local order.
func (e *Engine) Orders() []model.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := model.CloneOrders(e.orders)
	if out == nil {
		out = []model.Order{}
	}
	return out
}

// Order returns one order from the in-memory list.
func (e *Engine) Order(id string) (model.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexLocked(id)
	if i < 0 {
		return model.Order{}, false
	}
	return e.orders[i].Clone(), true
}

// Version increases on every change to the order list.
func (e *Engine) Version() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version
}

// IsBusy reports whether orderID has a transition in flight.
func (e *Engine) IsBusy(orderID string) bool {
	return e.busy.IsBusy(orderID)
}

// PendingTasks returns the keys of scheduled deferred work, sorted.
func (e *Engine) PendingTasks() []string {
	return e.sched.Keys()
}

// Sweep evicts expired guard, registry and cache entries.
func (e *Engine) Sweep() {
	g := e.guard.Sweep()
	b := e.busy.Sweep()
	r := e.recent.Sweep()
	v := e.views.Sweep()
	e.logger.Debug("swept expired entries", "guard", g, "busy", b, "recent", r, "views", v)
}

// StartSweeper evicts expired guard entries every SweepInterval until stop
// is called. The busy registry and caches expire lazily and are swept by Sweep.
func (e *Engine) StartSweeper() (stop func()) {
	return e.guard.StartSweeper(e.settings.SweepInterval)
}

// Wait blocks until in-flight receipt printing has finished.
func (e *Engine) Wait() {
	e.prints.Wait()
}

// Close cancels scheduled work and waits for receipt printing.
func (e *Engine) Close() {
	e.sched.Stop()
	e.prints.Wait()
}

// effects collects what an operation must do once the lock is released.
type effects struct {
	notes   []Notification
	changed bool
	prints  []model.Order
}

func (fx *effects) note(level Level, orderID, msg string) {
	fx.notes = append(fx.notes, Notification{Level: level, OrderID: orderID, Message: msg})
}

func (fx *effects) fail(err *Error) error {
	fx.notes = append(fx.notes, noteFor(err))
	return err
}

// flush runs side effects outside the engine lock.
func (e *Engine) flush(ctx context.Context, fx *effects) {
	for _, o := range fx.prints {
		e.printReceipt(ctx, o)
	}
	for _, n := range fx.notes {
		e.notifier.Notify(n)
	}
	if fx.changed {
		e.listenerMu.Lock()
		fns := make([]func(), 0, len(e.listeners))
		ids := make([]int, 0, len(e.listeners))
		for id := range e.listeners {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			fns = append(fns, e.listeners[id])
		}
		e.listenerMu.Unlock()
		for _, fn := range fns {
			fn()
		}
	}
}

// printReceipt emits the receipt asynchronously. Failure is surfaced as a
// notification and never rolls back the transition.
func (e *Engine) printReceipt(ctx context.Context, o model.Order) {
	ctx = context.WithoutCancel(ctx)
	e.prints.Add(1)
	go func() {
		defer e.prints.Done()
		if err := e.printer.PrintReceipt(ctx, o); err != nil {
			e.logger.Warn("receipt printing failed", "order_id", o.ID, "error", err)
			le := newError(ErrCodePrintFailure, o.ID, "receipt printing failed: %v", err)
			le.Err = err
			e.notifier.Notify(noteFor(le))
			return
		}
		e.logger.Debug("receipt printed", "order_id", o.ID)
	}()
}

func (e *Engine) indexLocked(id string) int {
	for i := range e.orders {
		if e.orders[i].ID == id {
			return i
		}
	}
	return -1
}

// lookupLocked finds id locally, falling back to recovery from the store.
func (e *Engine) lookupLocked(ctx context.Context, id string, fx *effects) int {
	if i := e.indexLocked(id); i >= 0 {
		return i
	}
	n, changed, err := e.recoverLocked(ctx)
	if err != nil {
		e.logger.Warn("recovery during lookup failed", "order_id", id, "error", err)
	}
	if changed {
		e.logger.Info("recovered lost orders", "count", n)
		e.bumpLocked(fx)
	}
	return e.indexLocked(id)
}

// persistLocked writes o through to the store. A store failure is logged
// and the in-memory change stands.
func (e *Engine) persistLocked(ctx context.Context, o model.Order) {
	if err := e.store.SetOrder(ctx, o); err != nil {
		e.logger.Error("persist order failed", "order_id", o.ID, "error", err)
	}
}

func (e *Engine) bumpLocked(fx *effects) {
	e.version++
	fx.changed = true
}

// recoverLocked appends orders that are in the store but missing locally,
// and drops local orders the store has tombstoned. It returns how many
// orders were appended and whether anything changed.
func (e *Engine) recoverLocked(ctx context.Context) (int, bool, error) {
	removed, err := e.store.RemovedOrders(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("load tombstones: %w", err)
	}
	stored, err := e.store.AllOrders(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("load orders: %w", err)
	}

	changed := e.absorbTombstonesLocked(removed)

	missing := merge.Missing(e.orders, stored, e.tombstones)
	for _, o := range missing {
		e.orders = append(e.orders, o)
		e.armTimersLocked(o)
	}
	return len(missing), changed || len(missing) > 0, nil
}

// absorbTombstonesLocked unions tombs into the local set and removes any
// local orders they name. Returns true if either set changed.
func (e *Engine) absorbTombstonesLocked(tombs map[string]time.Time) bool {
	merged, added := merge.Tombstones(e.tombstones, tombs)
	e.tombstones = merged
	if len(added) == 0 {
		return false
	}
	sort.Strings(added)

	kept := e.orders[:0]
	for _, o := range e.orders {
		if _, dead := e.tombstones[o.ID]; dead {
			e.forgetLocked(o.ID)
			continue
		}
		kept = append(kept, o)
	}
	e.orders = kept
	return true
}

// forgetLocked drops every timer and marker held for id.
func (e *Engine) forgetLocked(id string) {
	e.sched.Cancel(autoCompleteKey(id))
	e.sched.Cancel(cancelWindowKey(id))
	e.busy.Clear(id)
	for _, s := range model.Statuses() {
		e.recent.Delete(recentKey(id, s))
	}
}
