package lifecycle

import (
	"context"

	"github.com/roach88/ordersync/internal/model"
)

// RequestTransition moves an order to target on behalf of actor.
//
// Checks run in order: idempotency guard (user actors only), existence
// (with recovery from the store), in-flight marker, same-status no-op,
// permission. An accepted transition marks the order busy, stamps
// UpdatedAt, writes through to the store, schedules follow-up work and
// notifies. A request for the status the order already holds returns nil
// without touching the order.
func (e *Engine) RequestTransition(ctx context.Context, orderID string, target model.Status, actor model.Actor) error {
	fx := &effects{}
	err := e.requestTransition(ctx, orderID, target, actor, fx)
	e.flush(ctx, fx)
	return err
}

func (e *Engine) requestTransition(ctx context.Context, orderID string, target model.Status, actor model.Actor, fx *effects) error {
	if actor.Role != model.RoleSystem {
		key := orderID + ":status:" + string(target)
		if !e.guard.ShouldProceed(key, e.settings.TransitionCooldown) {
			e.logger.Debug("duplicate transition suppressed", "order_id", orderID, "status", target)
			return &Error{Code: ErrCodeDuplicate, OrderID: orderID, Message: "request already received"}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.lookupLocked(ctx, orderID, fx)
	if i < 0 {
		return fx.fail(newError(ErrCodeNotFound, orderID, "order not found"))
	}
	if e.busy.IsBusy(orderID) {
		return fx.fail(newError(ErrCodeBusy, orderID, "order is already being processed"))
	}

	current := e.orders[i]
	if current.Status == target {
		return nil
	}
	if _, seen := e.recent.Get(recentKey(orderID, target)); seen {
		e.logger.Debug("recent transition ignored", "order_id", orderID, "status", target)
		return nil
	}
	if !CanTransition(actor, current, target) {
		return fx.fail(newError(ErrCodeInvalidTransition, orderID,
			"%s cannot move order from %s to %s", actor.Role, current.Status, target))
	}

	ttl := e.settings.BusyTTL
	if target == model.StatusCompleted {
		ttl = e.settings.CompletedBusyTTL
	}
	e.busy.MarkBusy(orderID, ttl)

	next := current.Clone()
	next.Status = target
	next.UpdatedAt = e.clock.Now()
	if target != model.StatusPending {
		next.CanCancel = false
	}
	next.Recalculate()

	e.persistLocked(ctx, next)
	e.orders[i] = next
	e.bumpLocked(fx)
	e.recent.Set(recentKey(orderID, target), struct{}{}, e.settings.RecentTTL)
	e.armTimersLocked(next)

	e.logger.Info("order transitioned",
		"order_id", orderID,
		"from", current.Status,
		"status", target,
		"role", actor.Role,
	)

	switch target {
	case model.StatusServed:
		fx.prints = append(fx.prints, next.Clone())
	case model.StatusCompleted:
		if actor.Role != model.RoleCustomer && next.CustomerID != "" {
			customerID := next.CustomerID
			e.sched.After(sessionKey(customerID), e.settings.SessionClearDelay, func() {
				e.sessions.ClearSession(customerID)
				e.logger.Debug("customer session cleared", "customer_id", customerID)
			})
		}
	}

	level := LevelSuccess
	if actor.Role == model.RoleSystem {
		level = LevelInfo
	}
	fx.note(level, orderID, StatusMessage(orderID, target))
	return nil
}

func recentKey(orderID string, target model.Status) string {
	return orderID + ":" + string(target)
}
