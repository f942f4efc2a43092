// Package store keeps the history of fixture runs in SQLite.
//
// Three tables, each row owned by the one above it:
//   - runs: one row per suite run with its summary counts
//   - case_results: one row per case, keyed by run and position
//   - step_results: one row per replayed request
//
// Argument and outcome columns hold canonical JSON (internal/canonical) and
// each case row carries the content hash of the merged case, so two runs of
// the same fixture can be compared even after the file moves.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
