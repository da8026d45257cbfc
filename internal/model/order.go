package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MenuItem is a catalog entry. Orders keep their own copy of it.
type MenuItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	Subcategory string          `json:"subcategory,omitempty"`
	Image       string          `json:"image,omitempty"`
	IsSpecial   bool            `json:"isSpecial,omitempty"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID         string   `json:"id"`
	MenuItemID string   `json:"menuItemId"`
	MenuItem   MenuItem `json:"menuItem"`
	Quantity   int      `json:"quantity"`
}

// LineTotal returns price × quantity for the line.
func (it OrderItem) LineTotal() decimal.Decimal {
	return it.MenuItem.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Order is one placed transaction.
//
// CustomerID, CustomerName and TableNumber are captured at creation and
// never refreshed from the customer record.
type Order struct {
	ID           string          `json:"id"`
	CustomerID   string          `json:"customerId"`
	CustomerName string          `json:"customerName"`
	TableNumber  int             `json:"tableNumber"`
	Items        []OrderItem     `json:"items"`
	Status       Status          `json:"status"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	CanCancel    bool            `json:"canCancel"`
}

// Clone returns a deep copy so callers can mutate without aliasing
// another peer's or the caller's slice.
func (o Order) Clone() Order {
	c := o
	if o.Items != nil {
		c.Items = make([]OrderItem, len(o.Items))
		copy(c.Items, o.Items)
	}
	return c
}

// Recalculate sets TotalAmount from the current items.
func (o *Order) Recalculate() {
	o.TotalAmount = ItemsTotal(o.Items)
}

// NewerThan reports whether o was updated strictly after other.
func (o Order) NewerThan(other Order) bool {
	return o.UpdatedAt.After(other.UpdatedAt)
}

// ItemIndex returns the position of the line with the given id, or -1.
func (o Order) ItemIndex(itemID string) int {
	for i, it := range o.Items {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}

// ItemsTotal sums price × quantity over items.
func ItemsTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// CloneOrders deep copies a slice of orders.
func CloneOrders(in []Order) []Order {
	if in == nil {
		return nil
	}
	out := make([]Order, len(in))
	for i, o := range in {
		out[i] = o.Clone()
	}
	return out
}
