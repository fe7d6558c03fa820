// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - ContentRepository: File and text items with conditional status updates
//   - EmbeddingStore: Embedded chunks and the fixed corpus dimension
//   - UsageStore: Daily usage rollups
//   - SchedulerStore: Background task state and history
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.kbase/data/kbase.db
//
// # Thread Safety
//
// All operations are thread-safe. The store holds a single connection, so
// status changes and batch inserts are serialised by the database.
package sqlite
