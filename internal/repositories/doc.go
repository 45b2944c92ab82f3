// Package repositories implements SQLite persistence for the local track library and listening sessions.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [TrackRepository] : Local track library keyed by source bucket and key; also serves as an offline [services.Catalog]
//   - [TrackImporter] : Bulk upsert of catalog tracks into the library
//   - [SessionRepository] : Listening session summaries; implements [telemetry.Store]
//
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
