package lifecycle

import (
	"context"
	"sort"
	"time"

	"github.com/roach88/ordersync/internal/merge"
	"github.com/roach88/ordersync/internal/model"
)

// RecoverLostOrders appends every order the store holds that is missing
// from the in-memory list, skipping cancelled ones. It is safe to call
// repeatedly; a second call with no store changes appends nothing.
// Returns the number of orders appended.
func (e *Engine) RecoverLostOrders(ctx context.Context) (int, error) {
	fx := &effects{}
	n, err := e.recoverLost(ctx, fx)
	e.flush(ctx, fx)
	return n, err
}

func (e *Engine) recoverLost(ctx context.Context, fx *effects) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, changed, err := e.recoverLocked(ctx)
	if err != nil {
		e.logger.Error("recover lost orders failed", "error", err)
		return 0, err
	}
	if changed {
		e.bumpLocked(fx)
	}
	if n > 0 {
		e.logger.Info("recovered lost orders", "count", n)
	}
	return n, nil
}

// SnapshotResult reports what ApplySnapshot changed.
type SnapshotResult struct {
	merge.Result
	Tombstoned []string
	Recovered  int
}

// Changed reports whether the local list or tombstone set changed.
func (r SnapshotResult) Changed() bool {
	return r.Result.Changed() || len(r.Tombstoned) > 0 || r.Recovered > 0
}

// ApplySnapshot merges an order list received from another peer.
//
// Unknown orders are appended; known ones are replaced only by a strictly
// newer UpdatedAt; local orders absent from the snapshot are kept.
// Tombstoned ids are removed and never re-added. Accepted orders are
// written through to the store, then the store is consulted for anything
// the snapshot still missed. Change listeners fire only when something
// changed.
func (e *Engine) ApplySnapshot(ctx context.Context, incoming []model.Order, tombstones map[string]time.Time) (SnapshotResult, error) {
	fx := &effects{}
	res, err := e.applySnapshot(ctx, incoming, tombstones, fx)
	e.flush(ctx, fx)
	return res, err
}

func (e *Engine) applySnapshot(ctx context.Context, incoming []model.Order, tombstones map[string]time.Time, fx *effects) (SnapshotResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var res SnapshotResult

	merged, added := merge.Tombstones(e.tombstones, tombstones)
	e.tombstones = merged
	sort.Strings(added)
	res.Tombstoned = added
	for _, id := range added {
		if err := e.store.RemoveOrder(ctx, id, merged[id]); err != nil {
			e.logger.Error("remove tombstoned order failed", "order_id", id, "error", err)
		}
	}

	res.Result = merge.Orders(e.orders, incoming, e.tombstones)
	e.orders = res.Orders
	for _, id := range res.Removed {
		e.forgetLocked(id)
	}
	for _, id := range append(append([]string{}, res.Added...), res.Updated...) {
		o := e.orders[e.indexLocked(id)]
		e.persistLocked(ctx, o)
		e.armTimersLocked(o)
	}

	n, storeChanged, err := e.recoverLocked(ctx)
	if err != nil {
		e.logger.Warn("store reconcile after merge failed", "error", err)
	}
	res.Recovered = n

	if res.Changed() || storeChanged {
		e.bumpLocked(fx)
		e.logger.Debug("merged remote snapshot",
			"added", len(res.Added),
			"updated", len(res.Updated),
			"removed", len(res.Removed),
			"tombstoned", len(res.Tombstoned),
			"recovered", res.Recovered,
		)
	}
	res.Orders = model.CloneOrders(e.orders)
	return res, nil
}
