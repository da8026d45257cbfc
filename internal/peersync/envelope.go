package peersync

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/roach88/ordersync/internal/clock"
	"github.com/roach88/ordersync/internal/model"
)

// Envelope wraps a replicated value with the writer's timestamp in Unix
// milliseconds. Removed carries order tombstones on the orders key.
type Envelope[T any] struct {
	Data      T                `json:"data"`
	Timestamp int64            `json:"_timestamp"`
	Removed   map[string]int64 `json:"_removed,omitempty"`
}

// rawEnvelope is used for format detection.
type rawEnvelope struct {
	Data      json.RawMessage  `json:"data"`
	Timestamp *int64           `json:"_timestamp"`
	Removed   map[string]int64 `json:"_removed"`
}

// OrdersPayload is a decoded orders key.
type OrdersPayload struct {
	Orders     []model.Order
	Timestamp  time.Time // zero for the legacy format
	Tombstones map[string]time.Time
	Legacy     bool
}

// EncodeOrders builds the envelope for the orders key.
func EncodeOrders(orders []model.Order, tombstones map[string]time.Time, at time.Time) ([]byte, error) {
	if orders == nil {
		orders = []model.Order{}
	}
	env := Envelope[[]model.Order]{Data: orders, Timestamp: clock.Millis(at)}
	if len(tombstones) > 0 {
		env.Removed = make(map[string]int64, len(tombstones))
		for id, t := range tombstones {
			env.Removed[id] = clock.Millis(t)
		}
	}
	return json.Marshal(env)
}

// DecodeOrders accepts the envelope format and the legacy bare array.
func DecodeOrders(raw []byte) (OrdersPayload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return OrdersPayload{}, &ParseError{Key: "orders", Err: errors.New("empty payload")}
	}

	if trimmed[0] == '[' {
		var orders []model.Order
		if err := json.Unmarshal(trimmed, &orders); err != nil {
			return OrdersPayload{}, &ParseError{Key: "orders", Err: err}
		}
		return OrdersPayload{Orders: orders, Legacy: true}, nil
	}

	env, err := decodeEnvelope(trimmed)
	if err != nil {
		return OrdersPayload{}, &ParseError{Key: "orders", Err: err}
	}
	var orders []model.Order
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &orders); err != nil {
			return OrdersPayload{}, &ParseError{Key: "orders", Err: err}
		}
	}

	p := OrdersPayload{Orders: orders, Timestamp: clock.FromMillis(*env.Timestamp)}
	if len(env.Removed) > 0 {
		p.Tombstones = make(map[string]time.Time, len(env.Removed))
		for id, ms := range env.Removed {
			p.Tombstones[id] = clock.FromMillis(ms)
		}
	}
	return p, nil
}

// EncodeRecord wraps v in an envelope stamped at.
func EncodeRecord[T any](v T, at time.Time) ([]byte, error) {
	return json.Marshal(Envelope[T]{Data: v, Timestamp: clock.Millis(at)})
}

// DecodeRecord accepts an envelope or a bare legacy value, which decodes
// with a zero timestamp.
func DecodeRecord[T any](key string, raw []byte) (T, time.Time, error) {
	var zero T
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return zero, time.Time{}, &ParseError{Key: key, Err: errors.New("empty payload")}
	}

	if trimmed[0] == '{' {
		if env, err := decodeEnvelope(trimmed); err == nil {
			var v T
			if err := json.Unmarshal(env.Data, &v); err != nil {
				return zero, time.Time{}, &ParseError{Key: key, Err: err}
			}
			return v, clock.FromMillis(*env.Timestamp), nil
		}
	}

	var v T
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return zero, time.Time{}, &ParseError{Key: key, Err: err}
	}
	return v, time.Time{}, nil
}

func decodeEnvelope(raw []byte) (rawEnvelope, error) {
	var env rawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return rawEnvelope{}, err
	}
	if env.Timestamp == nil {
		return rawEnvelope{}, errors.New("object payload without _timestamp")
	}
	if env.Data == nil {
		return rawEnvelope{}, errors.New("envelope without data")
	}
	return env, nil
}
