// Package store provides SQLite-backed storage for owners and their records.
//
// The store is the only component that touches persisted state. It offers:
//   - Owners: the entities whose records are merged (also used as participants)
//   - Records: time-bounded units owned by one owner
//   - Record participants: many-to-many links from records to owners
//
// # Ordered Reads
//
// FetchOrdered returns an owner's records ORDER BY start_time ASC, seq ASC.
// seq is an AUTOINCREMENT column, so records with equal start times come back
// in creation order. Times are persisted as fixed-width RFC 3339 UTC text
// (years 0001 to 9999, nine fraction digits), so SQL text ordering is
// chronological.
//
// # Transactional Apply
//
// Begin opens a Scope wrapping one SQL transaction. Removals and insertions
// queued on a Scope become visible together on Commit, or not at all.
// Release must be called on every exit path; it is idempotent and rolls back
// a scope that was neither committed nor rolled back.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity (cascading deletes)
//
// Two drivers are supported: "sqlite3" (github.com/mattn/go-sqlite3, cgo) and
// "sqlite" (modernc.org/sqlite, pure Go).
package store
