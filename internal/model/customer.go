package model

import "time"

// Customer is a registered diner. Registration and table checks live
// outside this module.
type Customer struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	TableNumber int       `json:"tableNumber"`
	Phone       string    `json:"phone,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}
