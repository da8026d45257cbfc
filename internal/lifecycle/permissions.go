package lifecycle

import "github.com/roach88/ordersync/internal/model"

// stepPermissions lists the single steps waiters and chefs may take.
var stepPermissions = map[model.Role]map[model.Status]model.Status{
	model.RoleWaiter: {
		model.StatusPending: model.StatusConfirmed,
		model.StatusReady:   model.StatusServed,
	},
	model.RoleChef: {
		model.StatusConfirmed: model.StatusPreparing,
		model.StatusPreparing: model.StatusReady,
	},
}

// CanTransition reports whether actor may move o to target.
//
// Every role is limited to the next status in the sequence, except the
// completed bypass, which is open to admins, the system actor (timers), and
// a customer finalizing their own served order. Same-status requests are
// handled by the caller as no-ops and are not covered here.
func CanTransition(actor model.Actor, o model.Order, target model.Status) bool {
	if o.Status.Terminal() || !target.Valid() || !o.Status.Before(target) {
		return false
	}

	next, _ := o.Status.Next()
	switch actor.Role {
	case model.RoleAdmin:
		return target == next || target == model.StatusCompleted
	case model.RoleSystem:
		return target == model.StatusCompleted
	case model.RoleCustomer:
		return target == model.StatusCompleted &&
			o.Status == model.StatusServed &&
			actor.CustomerID != "" &&
			actor.CustomerID == o.CustomerID
	default:
		allowed, ok := stepPermissions[actor.Role][o.Status]
		return ok && allowed == target
	}
}

// CanEditItems reports whether actor may change the items of o.
func CanEditItems(actor model.Actor) bool {
	return actor.Role == model.RoleWaiter
}

// CanCancel reports whether actor may cancel o, ignoring the order's own state.
func CanCancel(actor model.Actor, o model.Order) bool {
	switch actor.Role {
	case model.RoleCustomer:
		return actor.CustomerID != "" && actor.CustomerID == o.CustomerID
	case model.RoleAdmin, model.RoleWaiter:
		return true
	default:
		return false
	}
}
