package model

import "fmt"

// Role identifies who is acting on an order.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleWaiter   Role = "waiter"
	RoleChef     Role = "chef"
	RoleCustomer Role = "customer"

	// RoleSystem is used by deferred work (auto-complete, cancel expiry).
	// It is never accepted from the outside world.
	RoleSystem Role = "system"
)

// ParseRole converts user input to a Role. RoleSystem is not parseable.
func ParseRole(v string) (Role, error) {
	switch r := Role(v); r {
	case RoleAdmin, RoleWaiter, RoleChef, RoleCustomer:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q: must be admin, waiter, chef or customer", v)
	}
}

// Actor is the caller context attached to every mutating request.
// CustomerID is only meaningful for RoleCustomer.
type Actor struct {
	Role       Role   `json:"role"`
	CustomerID string `json:"customerId,omitempty"`
}

// System is the actor used for timer driven transitions.
var System = Actor{Role: RoleSystem}

// User is the signed-in account persisted under the currentUser key.
type User struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}
