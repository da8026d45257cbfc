package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/ordersync/internal/model"
)

// GetOrder returns the stored snapshot for id, or ErrNotFound.
func (s *Store) GetOrder(ctx context.Context, id string) (model.Order, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM orders WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, ErrNotFound
	}
	if err != nil {
		return model.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return unmarshalOrder(payload)
}

// AllOrders returns every stored order, oldest first.
// Returns an empty slice (not nil) if the store is empty.
func (s *Store) AllOrders(ctx context.Context) ([]model.Order, error) {
	return s.queryOrders(ctx, `
		SELECT payload FROM orders
		ORDER BY created_at ASC, id ASC COLLATE BINARY
	`)
}

func (s *Store) queryOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o, err := unmarshalOrder(payload)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

// RemovedOrders returns every tombstone as id → removal time.
func (s *Store) RemovedOrders(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, removed_at FROM removed_orders`)
	if err != nil {
		return nil, fmt.Errorf("query removed orders: %w", err)
	}
	defer rows.Close()

	removed := make(map[string]time.Time)
	for rows.Next() {
		var (
			id string
			at int64
		)
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("scan removed order: %w", err)
		}
		removed[id] = time.Unix(0, at).UTC()
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate removed orders: %w", err)
	}
	return removed, nil
}
