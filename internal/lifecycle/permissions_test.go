package lifecycle

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/ordersync/internal/model"
)

func TestCanTransition_Matrix(t *testing.T) {
	type edge struct{ from, to model.Status }
	allowed := map[model.Role]map[edge]bool{
		model.RoleWaiter: {
			{model.StatusPending, model.StatusConfirmed}: true,
			{model.StatusReady, model.StatusServed}:      true,
		},
		model.RoleChef: {
			{model.StatusConfirmed, model.StatusPreparing}: true,
			{model.StatusPreparing, model.StatusReady}:     true,
		},
		model.RoleAdmin: {
			{model.StatusPending, model.StatusConfirmed}:   true,
			{model.StatusConfirmed, model.StatusPreparing}: true,
			{model.StatusPreparing, model.StatusReady}:     true,
			{model.StatusReady, model.StatusServed}:        true,
			{model.StatusServed, model.StatusCompleted}:    true,
			{model.StatusPending, model.StatusCompleted}:   true,
			{model.StatusConfirmed, model.StatusCompleted}: true,
			{model.StatusPreparing, model.StatusCompleted}: true,
			{model.StatusReady, model.StatusCompleted}:     true,
		},
		model.RoleSystem: {
			{model.StatusPending, model.StatusCompleted}:   true,
			{model.StatusConfirmed, model.StatusCompleted}: true,
			{model.StatusPreparing, model.StatusCompleted}: true,
			{model.StatusReady, model.StatusCompleted}:     true,
			{model.StatusServed, model.StatusCompleted}:    true,
		},
		model.RoleCustomer: {
			{model.StatusServed, model.StatusCompleted}: true,
		},
	}

	for role, edges := range allowed {
		actor := model.Actor{Role: role, CustomerID: "c1"}
		for _, from := range model.Statuses() {
			for _, to := range model.Statuses() {
				if from == to {
					continue
				}
				o := model.Order{ID: "o1", CustomerID: "c1", Status: from}
				want := edges[edge{from, to}]
				t.Run(fmt.Sprintf("%s/%s->%s", role, from, to), func(t *testing.T) {
					assert.Equal(t, want, CanTransition(actor, o, to))
				})
			}
		}
	}
}

func TestCanTransition_UnknownTarget(t *testing.T) {
	o := model.Order{Status: model.StatusPending}
	assert.False(t, CanTransition(admin, o, model.Status("archived")))
}

func TestCanTransition_NothingLeavesCompleted(t *testing.T) {
	o := model.Order{Status: model.StatusCompleted, CustomerID: alice.ID}
	for _, actor := range []model.Actor{admin, waiter, chef, model.System, customerActor(alice)} {
		for _, target := range model.Statuses() {
			assert.False(t, CanTransition(actor, o, target), "%s to %s", actor.Role, target)
		}
	}
}

func TestCanTransition_CustomerNeedsIdentity(t *testing.T) {
	o := model.Order{CustomerID: "c1", Status: model.StatusServed}
	assert.False(t, CanTransition(model.Actor{Role: model.RoleCustomer}, o, model.StatusCompleted))
	assert.False(t, CanTransition(model.Actor{Role: model.RoleCustomer, CustomerID: "c2"}, o, model.StatusCompleted))
}

func TestCanCancel(t *testing.T) {
	o := model.Order{CustomerID: "c1"}
	assert.True(t, CanCancel(model.Actor{Role: model.RoleCustomer, CustomerID: "c1"}, o))
	assert.False(t, CanCancel(model.Actor{Role: model.RoleCustomer, CustomerID: "c2"}, o))
	assert.True(t, CanCancel(admin, o))
	assert.True(t, CanCancel(waiter, o))
	assert.False(t, CanCancel(chef, o))
	assert.False(t, CanCancel(model.System, o))
}

func TestCanEditItems(t *testing.T) {
	assert.True(t, CanEditItems(waiter))
	for _, a := range []model.Actor{admin, chef, model.System, {Role: model.RoleCustomer, CustomerID: "c1"}} {
		assert.False(t, CanEditItems(a), "role %s", a.Role)
	}
}
