// Package repositories implements SQLite persistence for download history.
//
// Repositories handle CRUD operations with atomic sequence generation for human-readable ordering.
// Rows are soft deleted via deleted_at timestamps and excluded from queries by default.
//
// Key Implementations:
//   - [DownloadRepository] : one row per finished or failed task, filterable by status and resource
//   - [HistoryRecorder] : listens to task events and writes them through [DownloadRepository]
//
// Sequence numbers provide stable, human-readable ordering (e.g., download #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
