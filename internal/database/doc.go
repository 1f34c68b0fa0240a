// Package database provides SQLite-based storage for webtrail.
//
// The HistoryDB owns three object kinds:
//   - history items, unique by (url, last_visit_time)
//   - visit details, unique by visit id and immutable once written
//   - category records, at most one per url, overwritten on re-classification
//
// Writes for one logical batch run inside a single transaction per object
// kind; a failed write aborts the transaction and surfaces one aggregate
// error, so readers never observe partial batches. History item writes are
// deduplicated against already-stored keys with one bulk read, which makes
// repeated ingestion over overlapping time windows idempotent.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
//  1. No external dependencies - the database is a single file
//  2. CGO-free implementation allows easy cross-compilation
//  3. WAL mode gives concurrent readers a consistent snapshot while the
//     single writer proceeds, which is exactly the concurrency model the
//     analytics queries need
package database
