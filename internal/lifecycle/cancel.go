package lifecycle

import (
	"context"
	"fmt"

	"github.com/roach88/ordersync/internal/model"
)

// CancelOrder removes a pending order entirely, from the in-memory list and
// the store, and records a tombstone so no peer re-adds it.
//
// The in-flight marker is cleared first so a stuck transition can never
// block a cancel. Cancel is allowed only while the order is pending, its
// CanCancel flag is set, and the cancel window measured from CreatedAt has
// not passed.
func (e *Engine) CancelOrder(ctx context.Context, orderID string, actor model.Actor) error {
	fx := &effects{}
	err := e.cancelOrder(ctx, orderID, actor, fx)
	e.flush(ctx, fx)
	return err
}

func (e *Engine) cancelOrder(ctx context.Context, orderID string, actor model.Actor, fx *effects) error {
	if !e.guard.ShouldProceed(orderID+":cancel", e.settings.CancelCooldown) {
		return &Error{Code: ErrCodeDuplicate, OrderID: orderID, Message: "cancel already requested"}
	}
	e.busy.Clear(orderID)

	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.lookupLocked(ctx, orderID, fx)
	if i < 0 {
		return fx.fail(newError(ErrCodeNotFound, orderID, "order not found"))
	}
	o := e.orders[i]

	if !CanCancel(actor, o) {
		return fx.fail(newError(ErrCodeForbidden, orderID, "%s cannot cancel this order", actor.Role))
	}
	now := e.clock.Now()
	if o.Status != model.StatusPending {
		return fx.fail(newError(ErrCodeInvalidState, orderID, "order is %s and can no longer be cancelled", o.Status))
	}
	if !o.CanCancel || !now.Before(o.CreatedAt.Add(e.settings.CancelWindow)) {
		return fx.fail(newError(ErrCodeInvalidState, orderID, "the cancellation window has passed"))
	}

	if err := e.store.RemoveOrder(ctx, orderID, now); err != nil {
		e.logger.Error("remove order from store failed", "order_id", orderID, "error", err)
	}
	e.orders = append(e.orders[:i], e.orders[i+1:]...)
	e.tombstones[orderID] = now
	e.forgetLocked(orderID)
	e.bumpLocked(fx)

	e.logger.Info("order cancelled", "order_id", orderID, "role", actor.Role)
	fx.note(LevelSuccess, orderID, fmt.Sprintf("Order %s has been cancelled", orderID))
	return nil
}
