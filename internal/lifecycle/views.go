package lifecycle

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/ordersync/internal/model"
)

// View selects the orders an actor sees.
//
// Role visibility: customers see their own orders, chefs see the kitchen
// queue (confirmed, preparing, ready), waiters see everything not yet
// completed, admins see everything. Statuses and Query narrow further;
// Query matches customer name, order id, or table number, ignoring case
// and Unicode width differences.
type View struct {
	Actor    model.Actor
	Statuses []model.Status
	Query    string
}

var kitchenStatuses = map[model.Status]bool{
	model.StatusConfirmed: true,
	model.StatusPreparing: true,
	model.StatusReady:     true,
}

// View returns the orders matching v in creation order. Results are
// memoized per list version.
func (e *Engine) View(v View) []model.Order {
	e.mu.Lock()
	version := e.version
	e.mu.Unlock()

	key := v.cacheKey(version)
	out := e.views.Remember(key, e.settings.ViewTTL, func() []model.Order {
		return v.apply(e.Orders())
	})
	return model.CloneOrders(out)
}

// ForCustomer returns a customer's orders.
func (e *Engine) ForCustomer(customerID string) []model.Order {
	return e.View(View{Actor: model.Actor{Role: model.RoleCustomer, CustomerID: customerID}})
}

// ByStatus returns all orders in any of statuses.
func (e *Engine) ByStatus(statuses ...model.Status) []model.Order {
	return e.View(View{Actor: model.Actor{Role: model.RoleAdmin}, Statuses: statuses})
}

// Search returns all orders matching query.
func (e *Engine) Search(query string) []model.Order {
	return e.View(View{Actor: model.Actor{Role: model.RoleAdmin}, Query: query})
}

func (v View) cacheKey(version uint64) string {
	statuses := make([]string, len(v.Statuses))
	for i, s := range v.Statuses {
		statuses[i] = string(s)
	}
	sort.Strings(statuses)
	return fmt.Sprintf("%d|%s|%s|%s|%s",
		version, v.Actor.Role, v.Actor.CustomerID, strings.Join(statuses, ","), normalizeSearch(v.Query))
}

func (v View) apply(orders []model.Order) []model.Order {
	var want map[model.Status]bool
	if len(v.Statuses) > 0 {
		want = make(map[model.Status]bool, len(v.Statuses))
		for _, s := range v.Statuses {
			want[s] = true
		}
	}
	query := normalizeSearch(v.Query)

	out := []model.Order{}
	for _, o := range orders {
		if !v.visible(o) {
			continue
		}
		if want != nil && !want[o.Status] {
			continue
		}
		if query != "" && !matches(o, query) {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (v View) visible(o model.Order) bool {
	switch v.Actor.Role {
	case model.RoleCustomer:
		return v.Actor.CustomerID != "" && o.CustomerID == v.Actor.CustomerID
	case model.RoleChef:
		return kitchenStatuses[o.Status]
	case model.RoleWaiter:
		return o.Status != model.StatusCompleted
	case model.RoleAdmin, model.RoleSystem:
		return true
	default:
		return false
	}
}

func matches(o model.Order, query string) bool {
	if strings.Contains(normalizeSearch(o.CustomerName), query) {
		return true
	}
	if strings.Contains(normalizeSearch(o.ID), query) {
		return true
	}
	return strconv.Itoa(o.TableNumber) == query
}

// normalizeSearch folds s for comparison: NFKC, then Unicode case folding.
func normalizeSearch(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return cases.Fold().String(norm.NFKC.String(s))
}
