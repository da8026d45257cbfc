package lifecycle

import (
	"context"
	"fmt"

	"github.com/roach88/ordersync/internal/model"
)

// CreateOrder places a new pending order for customer from cart lines.
// Each line's menu item is snapshotted so later catalog price changes do
// not affect the order. Lines with a non-positive quantity are skipped.
func (e *Engine) CreateOrder(ctx context.Context, lines []model.CartLine, customer model.Customer) (model.Order, error) {
	fx := &effects{}
	o, err := e.createOrder(ctx, lines, customer, fx)
	e.flush(ctx, fx)
	return o, err
}

func (e *Engine) createOrder(ctx context.Context, lines []model.CartLine, customer model.Customer, fx *effects) (model.Order, error) {
	orderID := e.ids.Generate()
	items := make([]model.OrderItem, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		items = append(items, model.OrderItem{
			ID:         e.ids.Generate(),
			MenuItemID: l.MenuItem.ID,
			MenuItem:   l.MenuItem,
			Quantity:   l.Quantity,
		})
	}
	if len(items) == 0 {
		return model.Order{}, fx.fail(newError(ErrCodeInvalidState, "", "an order needs at least one item"))
	}

	now := e.clock.Now()
	o := model.Order{
		ID:           orderID,
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
		TableNumber:  customer.TableNumber,
		Items:        items,
		Status:       model.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
		CanCancel:    true,
	}
	o.Recalculate()

	e.mu.Lock()
	e.persistLocked(ctx, o)
	e.orders = append(e.orders, o)
	e.armTimersLocked(o)
	e.bumpLocked(fx)
	e.mu.Unlock()

	e.logger.Info("order placed",
		"order_id", o.ID,
		"customer_id", o.CustomerID,
		"items", len(o.Items),
		"total", o.TotalAmount.String(),
	)
	fx.note(LevelSuccess, o.ID, fmt.Sprintf("Order %s placed, total %s", o.ID, o.TotalAmount.StringFixed(2)))
	return o.Clone(), nil
}
