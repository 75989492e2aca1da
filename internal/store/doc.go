// Package store provides SQLite-backed durable storage for the activity
// history: activities, their boundary events, and the reconciled-window
// log that anchors continuity between aggregation cycles.
//
// The reconciliation engine never touches the store. The orchestrator
// reads a frozen stitchable snapshot before a cycle and applies the
// engine's ReconciliationOutput in one transaction after it, so a failed
// window leaves the history untouched.
//
// # Critical Patterns
//
// CP-1: Transactional Window Application
//   - One window's deltas (events, metadata, new activities, window row)
//     commit atomically or not at all
//
// CP-4: Deterministic Query Results
//   - Snapshot queries ORDER BY created_at, id ASC COLLATE BINARY
//   - The stitchable snapshot order feeds order-dependent greedy
//     matching downstream and must be stable across runs
//
// Ids are UUIDv7: time-sortable, so id ties break in creation order.
// All timestamps are stored as Unix milliseconds UTC.
package store
