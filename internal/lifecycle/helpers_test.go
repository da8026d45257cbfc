package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ordersync/internal/model"
	"github.com/roach88/ordersync/internal/store"
	"github.com/roach88/ordersync/internal/testutil"
)

var (
	waiter = model.Actor{Role: model.RoleWaiter}
	chef   = model.Actor{Role: model.RoleChef}
	admin  = model.Actor{Role: model.RoleAdmin}
)

var alice = model.Customer{ID: "cust-alice", Name: "Alice", TableNumber: 4}

func customerActor(c model.Customer) model.Actor {
	return model.Actor{Role: model.RoleCustomer, CustomerID: c.ID}
}

func menuItem(id string, price int64) model.MenuItem {
	return model.MenuItem{ID: id, Name: id, Price: decimal.NewFromInt(price)}
}

type recordingPrinter struct {
	mu      sync.Mutex
	printed []string
	err     error
}

func (p *recordingPrinter) PrintReceipt(_ context.Context, o model.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printed = append(p.printed, o.ID)
	return p.err
}

func (p *recordingPrinter) Printed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.printed...)
}

type recordingSessions struct {
	mu      sync.Mutex
	cleared []string
}

func (s *recordingSessions) ClearSession(customerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared = append(s.cleared, customerID)
}

func (s *recordingSessions) Cleared() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cleared...)
}

// failingStore returns err from every call.
type failingStore struct{ err error }

func (f failingStore) SetOrder(context.Context, model.Order) error { return f.err }
func (f failingStore) GetOrder(context.Context, string) (model.Order, error) {
	return model.Order{}, f.err
}
func (f failingStore) RemoveOrder(context.Context, string, time.Time) error { return f.err }
func (f failingStore) AllOrders(context.Context) ([]model.Order, error) { return nil, f.err }
func (f failingStore) RemovedOrders(context.Context) (map[string]time.Time, error) {
	return nil, f.err
}

var errStoreDown = errors.New("store unavailable")

type fixture struct {
	engine   *Engine
	clock    *testutil.FakeClock
	store    *store.Memory
	notes    *Recorder
	printer  *recordingPrinter
	sessions *recordingSessions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, store.NewMemory(), testutil.NewFakeClock(), "o")
}

func newFixtureWith(t *testing.T, s *store.Memory, c *testutil.FakeClock, idPrefix string) *fixture {
	t.Helper()
	f := &fixture{
		clock:    c,
		store:    s,
		notes:    &Recorder{},
		printer:  &recordingPrinter{},
		sessions: &recordingSessions{},
	}
	f.engine = New(s,
		WithClock(c),
		WithIDs(testutil.NewSequentialIDs(idPrefix)),
		WithNotifier(f.notes),
		WithPrinter(f.printer),
		WithSessions(f.sessions),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	t.Cleanup(f.engine.Close)
	return f
}

// place creates an order for alice and drains the placement notification.
func (f *fixture) place(t *testing.T, lines ...model.CartLine) model.Order {
	t.Helper()
	if len(lines) == 0 {
		lines = []model.CartLine{{MenuItem: menuItem("soup", 120), Quantity: 2}}
	}
	o, err := f.engine.CreateOrder(context.Background(), lines, alice)
	require.NoError(t, err)
	f.notes.Drain()
	return o
}

// advanceTo moves an order to target through the normal roles, waiting
// out the busy marker between steps.
func (f *fixture) advanceTo(t *testing.T, id string, target model.Status) {
	t.Helper()
	ctx := context.Background()
	steps := []struct {
		status model.Status
		actor  model.Actor
	}{
		{model.StatusConfirmed, waiter},
		{model.StatusPreparing, chef},
		{model.StatusReady, chef},
		{model.StatusServed, waiter},
		{model.StatusCompleted, admin},
	}
	for _, s := range steps {
		o, ok := f.engine.Order(id)
		require.True(t, ok)
		if !o.Status.Before(target) {
			break
		}
		if !o.Status.Before(s.status) {
			continue
		}
		require.NoError(t, f.engine.RequestTransition(ctx, id, s.status, s.actor))
		f.clock.Advance(f.engine.settings.BusyTTL)
	}
	f.notes.Drain()
}
