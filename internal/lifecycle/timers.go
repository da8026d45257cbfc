package lifecycle

import (
	"context"

	"github.com/roach88/ordersync/internal/model"
)

func autoCompleteKey(id string) string { return "autocomplete:" + id }
func cancelWindowKey(id string) string { return "cancelwindow:" + id }
func sessionKey(customerID string) string { return "session:" + customerID }

// armTimersLocked brings o's deferred work in line with its current state.
// Deadlines are relative to the order's own timestamps, so re-arming after a
// reload or a merge keeps the original due time.
func (e *Engine) armTimersLocked(o model.Order) {
	now := e.clock.Now()
	id := o.ID

	if o.Status == model.StatusServed {
		due := o.UpdatedAt.Add(e.settings.AutoComplete)
		e.sched.After(autoCompleteKey(id), due.Sub(now), func() { e.autoComplete(id) })
	} else {
		e.sched.Cancel(autoCompleteKey(id))
	}

	if o.Status == model.StatusPending && o.CanCancel {
		due := o.CreatedAt.Add(e.settings.CancelWindow)
		e.sched.After(cancelWindowKey(id), due.Sub(now), func() { e.expireCancelWindow(id) })
	} else {
		e.sched.Cancel(cancelWindowKey(id))
	}
}

// autoComplete finishes a served order once its window has passed. An order
// that was cancelled, removed, or moved on in the meantime is left alone.
func (e *Engine) autoComplete(id string) {
	o, ok := e.Order(id)
	if !ok || o.Status != model.StatusServed {
		e.logger.Debug("auto-complete skipped", "order_id", id, "present", ok, "status", o.Status)
		return
	}
	if err := e.RequestTransition(context.Background(), id, model.StatusCompleted, model.System); err != nil {
		e.logger.Warn("auto-complete failed", "order_id", id, "error", err)
	}
}

// expireCancelWindow clears CanCancel. UpdatedAt is left untouched so the
// expiry never wins a merge over a real transition; every peer derives it
// from CreatedAt on its own. Change listeners still run so the board
// refreshes and the list is republished.
func (e *Engine) expireCancelWindow(id string) {
	fx := &effects{}
	e.mu.Lock()
	i := e.indexLocked(id)
	if i >= 0 && e.orders[i].CanCancel {
		e.orders[i].CanCancel = false
		e.persistLocked(context.Background(), e.orders[i])
		e.bumpLocked(fx)
		e.logger.Debug("cancel window expired", "order_id", id)
	}
	e.mu.Unlock()

	e.flush(context.Background(), fx)
}
