package lifecycle

import (
	"context"
	"fmt"

	"github.com/roach88/ordersync/internal/model"
)

// ItemOp is an edit applied to one line of a pending order.
type ItemOp string

const (
	ItemIncrement ItemOp = "increment"
	ItemDecrement ItemOp = "decrement"
	ItemRemove    ItemOp = "remove"
)

// ParseItemOp validates an op name.
func ParseItemOp(v string) (ItemOp, error) {
	switch op := ItemOp(v); op {
	case ItemIncrement, ItemDecrement, ItemRemove:
		return op, nil
	default:
		return "", fmt.Errorf("unknown item op %q: must be increment, decrement or remove", v)
	}
}

// ModifyPendingOrderItems changes one line of a pending order. Only waiters
// may edit items. A decrement that leaves the quantity at zero removes the
// line. TotalAmount is recomputed after every edit.
func (e *Engine) ModifyPendingOrderItems(ctx context.Context, orderID, itemID string, op ItemOp, actor model.Actor) error {
	fx := &effects{}
	err := e.modifyItems(ctx, orderID, itemID, op, actor, fx)
	e.flush(ctx, fx)
	return err
}

func (e *Engine) modifyItems(ctx context.Context, orderID, itemID string, op ItemOp, actor model.Actor, fx *effects) error {
	if !CanEditItems(actor) {
		return fx.fail(newError(ErrCodeForbidden, orderID, "%s cannot edit order items", actor.Role))
	}
	if _, err := ParseItemOp(string(op)); err != nil {
		return fx.fail(newError(ErrCodeInvalidState, orderID, "%v", err))
	}
	key := orderID + ":item:" + itemID + ":" + string(op)
	if !e.guard.ShouldProceed(key, e.settings.ItemCooldown) {
		return &Error{Code: ErrCodeDuplicate, OrderID: orderID, Message: "item edit already received"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.lookupLocked(ctx, orderID, fx)
	if i < 0 {
		return fx.fail(newError(ErrCodeNotFound, orderID, "order not found"))
	}
	if e.orders[i].Status != model.StatusPending {
		return fx.fail(newError(ErrCodeInvalidState, orderID,
			"items can only be changed while the order is pending (status %s)", e.orders[i].Status))
	}

	next := e.orders[i].Clone()
	j := next.ItemIndex(itemID)
	if j < 0 {
		return fx.fail(newError(ErrCodeNotFound, orderID, "item %s not found in order", itemID))
	}

	switch op {
	case ItemIncrement:
		next.Items[j].Quantity++
	case ItemDecrement:
		next.Items[j].Quantity--
	case ItemRemove:
		next.Items[j].Quantity = 0
	}
	if next.Items[j].Quantity <= 0 {
		next.Items = append(next.Items[:j], next.Items[j+1:]...)
	}
	next.Recalculate()
	next.UpdatedAt = e.clock.Now()

	e.persistLocked(ctx, next)
	e.orders[i] = next
	e.bumpLocked(fx)

	e.logger.Info("order items changed",
		"order_id", orderID,
		"item_id", itemID,
		"op", op,
		"total", next.TotalAmount.String(),
	)
	fx.note(LevelSuccess, orderID, fmt.Sprintf("Order %s updated, total %s", orderID, next.TotalAmount.StringFixed(2)))
	return nil
}
