// Package memory provides in-memory implementations of the persistence
// ports. They back tests and ephemeral runs started with --memory.
package memory

import "github.com/custodia-labs/changelens/internal/core/ports/driven"

// Store groups the in-memory stores behind the same accessors as the
// SQLite store.
type Store struct {
	documents *DocumentStore
	versions  *VersionStore
	changes   *ChangeStore
	runs      *RunStore
	scheduler *SchedulerStore
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		documents: NewDocumentStore(),
		versions:  NewVersionStore(),
		changes:   NewChangeStore(),
		runs:      NewRunStore(),
		scheduler: NewSchedulerStore(),
	}
}

// DocumentStore returns the document store.
func (s *Store) DocumentStore() driven.DocumentStore { return s.documents }

// VersionStore returns the version store.
func (s *Store) VersionStore() driven.VersionStore { return s.versions }

// ChangeStore returns the change store.
func (s *Store) ChangeStore() driven.ChangeStore { return s.changes }

// RunStore returns the run store.
func (s *Store) RunStore() driven.RunStore { return s.runs }

// SchedulerStore returns the scheduler store.
func (s *Store) SchedulerStore() driven.SchedulerStore { return s.scheduler }

// Close is a no-op.
func (s *Store) Close() error { return nil }
