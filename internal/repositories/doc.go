// Package repositories implements SQLite persistence for run history.
//
// [RunRepository] handles CRUD for runs and their per-episode outcome records.
// Runs are identified by generated UUIDs; episode records belong to a run and
// are deleted with it via cascade. [RunRepository.RecordResult] persists a
// whole engine result transactionally so history never records half a run.
package repositories
