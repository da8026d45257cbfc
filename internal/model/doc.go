// Package model defines the restaurant order types shared by every peer.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import model; model imports nothing internal.
//
// Key design constraints:
//   - Money is decimal.Decimal, never float64
//   - Menu items are embedded by value in order lines so later catalog
//     edits never change an existing order
//   - JSON tags use camelCase to match the shared-store layout
//   - UpdatedAt is the only field used to resolve conflicts between peers
package model
