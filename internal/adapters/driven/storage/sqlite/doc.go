// Package sqlite persists documents, versions, change records, ingestion
// runs and scheduler state in a single SQLite database.
//
// It uses modernc.org/sqlite, a pure Go driver, so the binary builds
// without CGO. The schema is managed by the numbered migrations embedded
// from the migrations/ directory.
//
// By default the database lives at ~/.changelens/data/changelens.db. The
// database runs in WAL mode and is safe for concurrent use.
package sqlite
