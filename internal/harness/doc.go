// Package harness runs multi-peer order scenarios against real lifecycle
// engines and sync peers.
//
// Every peer in a scenario has its own engine and in-memory order list.
// All peers share one durable store, one shared key-value bus and one fake
// clock, the way browser tabs share local storage. Notifications are only
// delivered by explicit sync steps, so concurrent edits and stale peers can
// be staged precisely.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	peers: [front, kitchen]
//	menu:
//	  - { id: soup, name: Soup, price: "120" }
//	customers:
//	  - { id: cust-alice, name: Alice, table: 4 }
//	steps:
//	  - { action: place, peer: front, customer: cust-alice, lines: [{ item: soup, qty: 2 }] }
//	  - { action: sync }
//	  - { action: transition, peer: kitchen, order: front-1, status: confirmed, role: chef, expect: INVALID_TRANSITION }
//	  - { action: advance, duration: 3s }
//	assertions:
//	  - { type: order_status, peer: kitchen, order: front-1, status: pending }
//	  - { type: converged }
//
// # Step Actions
//
//   - place: create an order on a peer from menu lines
//   - transition: request a status change as a role
//   - cancel: cancel an order as a role
//   - item: increment, decrement or remove an order line
//   - advance: move the shared fake clock, firing due timers
//   - sync: deliver shared-store notifications until all peers are idle
//   - publish: force-write a peer's order list
//   - recover: re-read the durable store on a peer
//
// A step's expect field names the error code the engine must return.
//
// # Assertion Types
//
//   - order_status, order_total, order_absent, order_count: one peer's orders
//   - receipts: number of receipts printed by a peer
//   - notified: a peer raised a notification with a given code
//   - converged: every peer holds identical orders
package harness
