package harness

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/ordersync/internal/model"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Peer     string       // Peer the assertion inspected, empty for converged
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Orders   []OrderState // The peer's orders for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Peer != "" {
		fmt.Fprintf(&buf, " on %s", e.Peer)
	}
	buf.WriteByte('\n')

	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Orders) > 0 {
		fmt.Fprintf(&buf, "\nOrders:\n")
		for _, o := range e.Orders {
			fmt.Fprintf(&buf, "  %s %s total=%s items=%d\n", o.ID, o.Status, o.Total, o.Items)
		}
	}

	return buf.String()
}

// assertOrderStatus checks that the peer holds the order in the given status.
func assertOrderStatus(r *rig, a Assertion) error {
	o, ok := r.engine.Order(a.Order)
	if !ok {
		return &AssertionError{
			Type:     AssertOrderStatus,
			Peer:     r.name,
			Expected: fmt.Sprintf("order %s in status %s", a.Order, a.Status),
			Actual:   "order not found",
			Orders:   snapshot(r.engine.Orders()),
		}
	}
	if string(o.Status) != a.Status {
		return &AssertionError{
			Type:     AssertOrderStatus,
			Peer:     r.name,
			Expected: fmt.Sprintf("order %s in status %s", a.Order, a.Status),
			Actual:   fmt.Sprintf("status %s", o.Status),
			Orders:   snapshot(r.engine.Orders()),
		}
	}
	return nil
}

// assertOrderTotal compares totals numerically, so "250" matches "250.00".
func assertOrderTotal(r *rig, a Assertion) error {
	want, err := decimal.NewFromString(a.Total)
	if err != nil {
		return fmt.Errorf("assertion %s: invalid total %q: %w", AssertOrderTotal, a.Total, err)
	}
	o, ok := r.engine.Order(a.Order)
	if !ok {
		return &AssertionError{
			Type:     AssertOrderTotal,
			Peer:     r.name,
			Expected: fmt.Sprintf("order %s with total %s", a.Order, a.Total),
			Actual:   "order not found",
		}
	}
	if !o.TotalAmount.Equal(want) {
		return &AssertionError{
			Type:     AssertOrderTotal,
			Peer:     r.name,
			Expected: fmt.Sprintf("order %s with total %s", a.Order, want),
			Actual:   fmt.Sprintf("total %s", o.TotalAmount),
		}
	}
	return nil
}

func assertOrderAbsent(r *rig, a Assertion) error {
	if o, ok := r.engine.Order(a.Order); ok {
		return &AssertionError{
			Type:     AssertOrderAbsent,
			Peer:     r.name,
			Expected: fmt.Sprintf("order %s absent", a.Order),
			Actual:   fmt.Sprintf("present in status %s", o.Status),
		}
	}
	return nil
}

func assertOrderCount(r *rig, a Assertion) error {
	orders := r.engine.Orders()
	if len(orders) != a.Count {
		return &AssertionError{
			Type:     AssertOrderCount,
			Peer:     r.name,
			Expected: fmt.Sprintf("%d orders", a.Count),
			Actual:   fmt.Sprintf("%d orders", len(orders)),
			Orders:   snapshot(orders),
		}
	}
	return nil
}

func assertReceipts(r *rig, a Assertion) error {
	if n := r.receipts.count(); n != a.Count {
		return &AssertionError{
			Type:     AssertReceipts,
			Peer:     r.name,
			Expected: fmt.Sprintf("%d receipts printed", a.Count),
			Actual:   fmt.Sprintf("%d receipts printed", n),
		}
	}
	return nil
}

// assertNotified checks that the peer raised at least one notification with
// the given code, optionally for a specific order.
func assertNotified(r *rig, a Assertion) error {
	var seen []string
	for _, n := range r.notes.All() {
		if string(n.Code) == a.Code && (a.Order == "" || n.OrderID == a.Order) {
			return nil
		}
		if n.Code != "" {
			seen = append(seen, string(n.Code))
		}
	}
	actual := "no coded notifications"
	if len(seen) > 0 {
		actual = "codes " + strings.Join(seen, ", ")
	}
	return &AssertionError{
		Type:     AssertNotified,
		Peer:     r.name,
		Expected: fmt.Sprintf("notification with code %s", a.Code),
		Actual:   actual,
	}
}

// assertConverged checks that every peer holds the same orders with the
// same status, total and update time.
func assertConverged(h *Harness) error {
	first := h.order[0]
	want := fingerprint(h.peers[first].engine.Orders())
	for _, name := range h.order[1:] {
		got := fingerprint(h.peers[name].engine.Orders())
		if got != want {
			return &AssertionError{
				Type:     AssertConverged,
				Expected: fmt.Sprintf("%s: %s", first, want),
				Actual:   fmt.Sprintf("%s: %s", name, got),
			}
		}
	}
	return nil
}

func fingerprint(orders []model.Order) string {
	states := snapshot(orders)
	updated := make(map[string]int64, len(orders))
	for _, o := range orders {
		updated[o.ID] = o.UpdatedAt.UnixMilli()
	}
	parts := make([]string, 0, len(states))
	for _, s := range states {
		parts = append(parts, fmt.Sprintf("%s/%s/%s/%d", s.ID, s.Status, s.Total, updated[s.ID]))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// EvaluateAssertions runs all assertions against the harness peers and
// returns the failure messages.
func EvaluateAssertions(h *Harness, assertions []Assertion) []string {
	var errors []string
	for i, a := range assertions {
		var err error
		if a.Type == AssertConverged {
			err = assertConverged(h)
		} else {
			r := h.peers[a.Peer]
			switch a.Type {
			case AssertOrderStatus:
				err = assertOrderStatus(r, a)
			case AssertOrderTotal:
				err = assertOrderTotal(r, a)
			case AssertOrderAbsent:
				err = assertOrderAbsent(r, a)
			case AssertOrderCount:
				err = assertOrderCount(r, a)
			case AssertReceipts:
				err = assertReceipts(r, a)
			case AssertNotified:
				err = assertNotified(r, a)
			default:
				err = fmt.Errorf("unknown assertion type: %s", a.Type)
			}
		}
		if err != nil {
			errors = append(errors, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errors
}
