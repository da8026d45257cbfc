package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/roach88/ordersync/internal/lifecycle"
	"github.com/roach88/ordersync/internal/model"
	"github.com/roach88/ordersync/internal/peersync"
	"github.com/roach88/ordersync/internal/shared"
	"github.com/roach88/ordersync/internal/store"
	"github.com/roach88/ordersync/internal/testutil"
)

// maxPumpRounds bounds a sync step. Peers that are still exchanging
// notifications after this many rounds are echoing and fail the scenario.
const maxPumpRounds = 50

// Harness is the test execution engine.
// It runs scenarios against real engines and peers with a fake clock and
// sequential ids, so the same scenario always produces the same trace.
type Harness struct {
	clock     *testutil.FakeClock
	bus       *shared.Bus
	durable   *store.Memory
	peers     map[string]*rig
	order     []string
	menu      map[string]model.MenuItem
	customers map[string]model.Customer
	logger    *slog.Logger
}

// rig is one peer with its own engine and observation hooks.
type rig struct {
	name     string
	engine   *lifecycle.Engine
	peer     *peersync.Peer
	notes    *lifecycle.Recorder
	receipts *receiptLog
}

type receiptLog struct {
	mu  sync.Mutex
	ids []string
}

func (r *receiptLog) PrintReceipt(_ context.Context, o model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, o.ID)
	return nil
}

func (r *receiptLog) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against fresh in-memory stores for isolation.
//
// Execution flow:
// 1. Start every peer and let them converge
// 2. Execute steps, checking each expected error code
// 3. Capture every peer's final orders
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}
	defer h.close()

	ctx := context.Background()
	for _, name := range h.order {
		if err := h.peers[name].peer.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start peer %s: %w", name, err)
		}
	}
	if err := h.pump(ctx); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		ev, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		h.settle()
		result.AddTrace(ev)

		want := step.Expect
		if want == "" {
			want = outcomeOK
		}
		if ev.Outcome != want {
			result.AddError(fmt.Sprintf("steps[%d] %s: expected %s, got %s", i, step.Action, want, ev.Outcome))
		}
	}

	for _, name := range h.order {
		result.State[name] = snapshot(h.peers[name].engine.Orders())
	}

	for _, msg := range EvaluateAssertions(h, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

const outcomeOK = "ok"

func newHarness(s *Scenario) (*Harness, error) {
	h := &Harness{
		clock:     testutil.NewFakeClock(),
		bus:       shared.NewBus(),
		durable:   store.NewMemory(),
		peers:     make(map[string]*rig, len(s.Peers)),
		order:     s.Peers,
		menu:      make(map[string]model.MenuItem, len(s.Menu)),
		customers: make(map[string]model.Customer, len(s.Customers)),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	for _, m := range s.Menu {
		price, err := decimal.NewFromString(m.Price)
		if err != nil {
			return nil, fmt.Errorf("menu item %s: invalid price %q: %w", m.ID, m.Price, err)
		}
		name := m.Name
		if name == "" {
			name = m.ID
		}
		h.menu[m.ID] = model.MenuItem{ID: m.ID, Name: name, Price: price}
	}
	for _, c := range s.Customers {
		h.customers[c.ID] = model.Customer{ID: c.ID, Name: c.Name, TableNumber: c.Table}
	}

	for _, name := range s.Peers {
		r := &rig{name: name, notes: &lifecycle.Recorder{}, receipts: &receiptLog{}}
		r.engine = lifecycle.New(h.durable,
			lifecycle.WithClock(h.clock),
			lifecycle.WithIDs(testutil.NewSequentialIDs(name)),
			lifecycle.WithNotifier(r.notes),
			lifecycle.WithPrinter(r.receipts),
			lifecycle.WithLogger(h.logger),
			lifecycle.WithSessions(lifecycle.SessionClearerFunc(func(id string) { r.peer.ClearSession(id) })),
		)
		r.peer = peersync.New(r.engine, h.bus.Attach(name),
			peersync.WithClock(h.clock),
			peersync.WithLogger(h.logger),
		)
		h.peers[name] = r
	}
	return h, nil
}

func (h *Harness) close() {
	for _, name := range h.order {
		r := h.peers[name]
		r.peer.Close()
		r.engine.Close()
	}
}

// execute runs one step and describes it as a trace event.
// Engine rejections become the event outcome; only malformed steps error.
func (h *Harness) execute(ctx context.Context, s Step) (TraceEvent, error) {
	ev := TraceEvent{Action: s.Action, Peer: s.Peer, Order: s.Order, Outcome: outcomeOK}
	var r *rig
	if s.Peer != "" {
		r = h.peers[s.Peer]
	}

	var opErr error
	switch s.Action {
	case ActionPlace:
		lines := make([]model.CartLine, 0, len(s.Lines))
		for _, l := range s.Lines {
			lines = append(lines, model.CartLine{MenuItem: h.menu[l.Item], Quantity: l.Qty})
		}
		o, err := r.engine.CreateOrder(ctx, lines, h.customers[s.Customer])
		if err == nil {
			ev.Order = o.ID
			ev.Detail = o.TotalAmount.String()
		}
		opErr = err

	case ActionTransition:
		actor, err := h.actor(s)
		if err != nil {
			return ev, err
		}
		target, err := model.ParseStatus(s.Status)
		if err != nil {
			return ev, err
		}
		ev.Detail = string(target)
		opErr = r.engine.RequestTransition(ctx, s.Order, target, actor)

	case ActionCancel:
		actor, err := h.actor(s)
		if err != nil {
			return ev, err
		}
		opErr = r.engine.CancelOrder(ctx, s.Order, actor)

	case ActionItem:
		actor, err := h.actor(s)
		if err != nil {
			return ev, err
		}
		op, err := lifecycle.ParseItemOp(s.Op)
		if err != nil {
			return ev, err
		}
		ev.Detail = s.Item + " " + string(op)
		opErr = r.engine.ModifyPendingOrderItems(ctx, s.Order, s.Item, op, actor)

	case ActionAdvance:
		ev.Detail = s.Duration.String()
		h.clock.Advance(s.Duration)

	case ActionSync:
		if err := h.pump(ctx); err != nil {
			return ev, err
		}

	case ActionPublish:
		r.peer.PublishOrders(ctx)

	case ActionRecover:
		_, opErr = r.engine.RecoverLostOrders(ctx)
	}

	if opErr != nil {
		code := lifecycle.CodeOf(opErr)
		if code == "" {
			return ev, opErr
		}
		ev.Outcome = string(code)
	}
	return ev, nil
}

// actor builds the acting identity of a step.
func (h *Harness) actor(s Step) (model.Actor, error) {
	role, err := model.ParseRole(s.Role)
	if err != nil {
		return model.Actor{}, err
	}
	a := model.Actor{Role: role}
	if role == model.RoleCustomer {
		a.CustomerID = s.Customer
	}
	return a, nil
}

// pump delivers queued shared-store notifications until every peer is idle.
func (h *Harness) pump(ctx context.Context) error {
	for round := 0; round < maxPumpRounds; round++ {
		handled := 0
		for _, name := range h.order {
			handled += h.peers[name].peer.ProcessPending(ctx)
		}
		if handled == 0 {
			return nil
		}
	}
	return fmt.Errorf("peers did not converge after %d rounds", maxPumpRounds)
}

// settle waits for background receipt printing on every peer.
func (h *Harness) settle() {
	for _, name := range h.order {
		h.peers[name].engine.Wait()
	}
}

func snapshot(orders []model.Order) []OrderState {
	out := make([]OrderState, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderState{
			ID:     o.ID,
			Status: string(o.Status),
			Total:  o.TotalAmount.String(),
			Items:  len(o.Items),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
