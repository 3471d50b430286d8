// Package sqlite provides the durable SQLite-backed passage store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO, enabling easy cross-compilation. Passages are stored in a
// single table with their embedding vectors serialised as little-endian
// float32 blobs; similarity search scans the candidate version and ranks by
// cosine similarity in process.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql
// files.
//
// # Data Location
//
// By default, the database is stored at ~/.docvec/data/passages.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking
// provided by SQLite in WAL mode.
package sqlite
