// Package sqlite provides the SQLite-backed run history used by the
// scheduler and the describe loop.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. It implements driven.SchedulerStore: task state (last
// run, last error) and a bounded history of task results.
//
// # Schema
//
// The schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql
// files; applied versions are recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.vpp/data/metadata.db
//
// # Thread Safety
//
// All operations are safe for concurrent use. SQLite runs in WAL mode with a
// busy timeout so the watch loop and one-shot commands can share the file.
package sqlite
