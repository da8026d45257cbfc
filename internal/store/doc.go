// Package store provides the SQLite-backed persistent order store.
//
// The store is the durability anchor shared by every peer on a host. It is
// independent of any peer's in-memory order list: a peer that restarts, or
// one that missed a change notification, rebuilds missing orders from here.
//
// # Tables
//
//   - orders: one row per live order, the full snapshot kept as JSON
//   - removed_orders: tombstones for cancelled orders
//
// # Write rules
//
//   - SetOrder is an upsert that never replaces a row with an older
//     snapshot (updated_at comparison in the ON CONFLICT clause)
//   - RemoveOrder deletes the row and records a tombstone in one transaction
//
// # Read rules
//
//   - AllOrders returns rows ORDER BY created_at ASC, id ASC COLLATE BINARY
//     so every peer sees the same order
//
// # Database Configuration
//
//   - WAL mode: concurrent readers from several peer processes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
