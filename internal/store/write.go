package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/ordersync/internal/model"
)

// SetOrder upserts an order snapshot.
//
// An existing row is only replaced when the incoming UpdatedAt is not older
// than the stored one, so a stale peer cannot roll the store backwards.
// Writing a tombstoned id is allowed; callers decide whether that is valid.
func (s *Store) SetOrder(ctx context.Context, o model.Order) error {
	payload, err := marshalOrder(o)
	if err != nil {
		return fmt.Errorf("set order: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, status, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer_id = excluded.customer_id,
			status      = excluded.status,
			payload     = excluded.payload,
			updated_at  = excluded.updated_at
		WHERE excluded.updated_at >= orders.updated_at
	`,
		o.ID,
		o.CustomerID,
		string(o.Status),
		payload,
		o.CreatedAt.UnixNano(),
		o.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("set order %s: %w", o.ID, err)
	}
	return nil
}

// RemoveOrder deletes an order and records a tombstone at removedAt.
// Removing an unknown id still records the tombstone.
func (s *Store) RemoveOrder(ctx context.Context, id string, removedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("remove order: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove order %s: delete: %w", id, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO removed_orders (id, removed_at) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, removedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("remove order %s: tombstone: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("remove order %s: commit: %w", id, err)
	}
	return nil
}
