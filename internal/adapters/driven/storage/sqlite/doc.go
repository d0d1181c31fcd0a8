// Package sqlite stores client-side state in a local SQLite database.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. One database backs two driven ports:
//
//   - SessionStore: active training item, selection, template and last
//     generation job, restored on the next start
//   - OutcomeStore: history of finished generation jobs
//
// # Schema
//
// The schema is managed through versioned migrations in the migrations/
// directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.privatetune/data/state.db
package sqlite
