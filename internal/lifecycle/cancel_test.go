package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ordersync/internal/model"
)

func TestCancelOrder_RemovesEverywhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t)

	require.NoError(t, f.engine.CancelOrder(ctx, o.ID, customerActor(alice)))

	_, ok := f.engine.Order(o.ID)
	assert.False(t, ok)
	_, err := f.store.GetOrder(ctx, o.ID)
	assert.Error(t, err)

	removed, err := f.store.RemovedOrders(ctx)
	require.NoError(t, err)
	assert.Contains(t, removed, o.ID)

	state := f.engine.State()
	assert.Equal(t, f.clock.Now(), state.Tombstones[o.ID])
	assert.Empty(t, f.engine.PendingTasks())

	notes := f.notes.All()
	require.Len(t, notes, 1)
	assert.Equal(t, LevelSuccess, notes[0].Level)
}

func TestCancelOrder_WindowExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t)

	f.clock.Advance(2 * time.Minute)

	got, _ := f.engine.Order(o.ID)
	assert.False(t, got.CanCancel, "cancel window timer clears the flag")
	assert.Equal(t, o.UpdatedAt, got.UpdatedAt, "expiry does not stamp UpdatedAt")

	err := f.engine.CancelOrder(ctx, o.ID, customerActor(alice))
	assert.True(t, IsInvalidState(err), "got %v", err)

	_, ok := f.engine.Order(o.ID)
	assert.True(t, ok)
}

func TestCancelWindowExpiry_NotifiesListeners(t *testing.T) {
	f := newFixture(t)
	o := f.place(t)

	calls := 0
	f.engine.OnChange(func() { calls++ })
	version := f.engine.Version()

	f.clock.Advance(2*time.Minute - time.Millisecond)
	assert.Zero(t, calls)

	f.clock.Advance(time.Millisecond)
	assert.Equal(t, 1, calls)
	assert.Equal(t, version+1, f.engine.Version())

	stored, err := f.store.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.False(t, stored.CanCancel)

	f.clock.Advance(time.Hour)
	assert.Equal(t, 1, calls, "expiry runs once")
}

func TestCancelOrder_WindowCheckedAgainstCreatedAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t)

	// A flag that still reads true after the window is not trusted.
	f.engine.sched.Cancel(cancelWindowKey(o.ID))
	f.clock.Advance(2*time.Minute + time.Second)

	got, _ := f.engine.Order(o.ID)
	require.True(t, got.CanCancel)

	err := f.engine.CancelOrder(ctx, o.ID, customerActor(alice))
	assert.True(t, IsInvalidState(err))
}

func TestCancelOrder_AfterStatusAdvanced(t *testing.T) {
	f := newFixture(t)
	o := f.place(t)
	f.advanceTo(t, o.ID, model.StatusConfirmed)

	err := f.engine.CancelOrder(context.Background(), o.ID, customerActor(alice))
	assert.True(t, IsInvalidState(err))
}

func TestCancelOrder_ClearsBusyMarkerFirst(t *testing.T) {
	f := newFixture(t)
	o := f.place(t)

	f.engine.busy.MarkBusy(o.ID, time.Hour)
	require.True(t, f.engine.IsBusy(o.ID))

	require.NoError(t, f.engine.CancelOrder(context.Background(), o.ID, customerActor(alice)))
	assert.False(t, f.engine.IsBusy(o.ID))
}

func TestCancelOrder_Permissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t)

	err := f.engine.CancelOrder(ctx, o.ID, model.Actor{Role: model.RoleCustomer, CustomerID: "cust-bob"})
	assert.True(t, IsForbidden(err))

	f.clock.Advance(2 * time.Second)
	err = f.engine.CancelOrder(ctx, o.ID, chef)
	assert.True(t, IsForbidden(err))

	f.clock.Advance(2 * time.Second)
	require.NoError(t, f.engine.CancelOrder(ctx, o.ID, waiter))
}

func TestCancelOrder_DuplicateSuppressed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t)

	require.NoError(t, f.engine.CancelOrder(ctx, o.ID, customerActor(alice)))
	err := f.engine.CancelOrder(ctx, o.ID, customerActor(alice))
	assert.True(t, IsDuplicate(err))

	f.clock.Advance(2 * time.Second)
	err = f.engine.CancelOrder(ctx, o.ID, customerActor(alice))
	assert.True(t, IsNotFound(err))
}

func TestCancelOrder_NotRecovered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t)
	require.NoError(t, f.engine.CancelOrder(ctx, o.ID, customerActor(alice)))

	n, err := f.engine.RecoverLostOrders(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.engine.Orders())
}
