package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is a menu selection that has not been ordered yet.
type CartLine struct {
	MenuItem MenuItem `json:"menuItem"`
	Quantity int      `json:"quantity"`
}

// Cart is the customer's pending selection, persisted under the cart key.
type Cart struct {
	Lines     []CartLine `json:"lines"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Add increases the quantity of item by qty, appending a new line when
// the item is not in the cart yet. Non-positive qty is ignored.
func (c *Cart) Add(item MenuItem, qty int) {
	if qty <= 0 {
		return
	}
	for i := range c.Lines {
		if c.Lines[i].MenuItem.ID == item.ID {
			c.Lines[i].Quantity += qty
			return
		}
	}
	c.Lines = append(c.Lines, CartLine{MenuItem: item, Quantity: qty})
}

// SetQuantity overwrites the quantity for a menu item.
// A quantity of zero or less removes the line.
func (c *Cart) SetQuantity(menuItemID string, qty int) {
	for i := range c.Lines {
		if c.Lines[i].MenuItem.ID != menuItemID {
			continue
		}
		if qty <= 0 {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return
		}
		c.Lines[i].Quantity = qty
		return
	}
}

// Remove drops the line for a menu item if present.
func (c *Cart) Remove(menuItemID string) {
	c.SetQuantity(menuItemID, 0)
}

// Total returns the cart value.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.MenuItem.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// Empty reports whether the cart has no lines.
func (c Cart) Empty() bool {
	return len(c.Lines) == 0
}
