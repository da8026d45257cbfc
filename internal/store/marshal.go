package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/ordersync/internal/model"
)

// marshalOrder converts an order to the JSON TEXT kept in orders.payload.
func marshalOrder(o model.Order) (string, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("marshal order %s: %w", o.ID, err)
	}
	return string(data), nil
}

// unmarshalOrder parses orders.payload.
func unmarshalOrder(data string) (model.Order, error) {
	var o model.Order
	if err := json.Unmarshal([]byte(data), &o); err != nil {
		return model.Order{}, fmt.Errorf("unmarshal order: %w", err)
	}
	return o, nil
}
