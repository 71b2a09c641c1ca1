package driven

import (
	"context"

	"github.com/custodia-labs/changelens/internal/core/domain"
)

// DocumentStore persists tracked documents.
type DocumentStore interface {
	// CreateDocument inserts a new document.
	CreateDocument(ctx context.Context, doc *domain.Document) error

	// UpdateDocument applies a partial update.
	// Returns domain.ErrNotFound if the document does not exist.
	UpdateDocument(ctx context.Context, id string, update domain.DocumentUpdate) error

	// GetDocument retrieves a document by ID, including soft-deleted documents.
	// Returns domain.ErrNotFound if it does not exist.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetDocumentByExternalID looks a document up by storage identity,
	// including soft-deleted documents.
	// Returns domain.ErrNotFound if none matches.
	GetDocumentByExternalID(ctx context.Context, externalID string) (*domain.Document, error)

	// ListActiveDocuments returns every document that is not soft-deleted.
	ListActiveDocuments(ctx context.Context) ([]domain.Document, error)

	// CountDocuments counts all documents, soft-deleted included.
	CountDocuments(ctx context.Context) (int, error)
}

// VersionStore persists immutable document versions.
type VersionStore interface {
	// CreateVersion inserts a new version.
	CreateVersion(ctx context.Context, version *domain.DocumentVersion) error

	// GetVersion retrieves a version by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetVersion(ctx context.Context, id string) (*domain.DocumentVersion, error)
}

// ChangeStore persists change records.
type ChangeStore interface {
	// CreateChange inserts a new change record.
	CreateChange(ctx context.Context, record *domain.ChangeRecord) error

	// UpdateExplanation writes the explanation fields of a record that has
	// no explanation status yet. It is a no-op for records already explained.
	// Returns domain.ErrNotFound if the record does not exist.
	UpdateExplanation(ctx context.Context, id string, update domain.ExplanationUpdate) error

	// ListUnexplained returns records with no explanation status, oldest first.
	// A non-positive limit returns all of them.
	ListUnexplained(ctx context.Context, limit int) ([]domain.ChangeRecord, error)

	// GetChange retrieves a record by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetChange(ctx context.Context, id string) (*domain.ChangeRecord, error)

	// ListChanges returns the most recent records first.
	// A non-positive limit returns all of them.
	ListChanges(ctx context.Context, limit int) ([]domain.ChangeRecord, error)
}

// RunStore persists ingestion runs.
type RunStore interface {
	// CreateRun inserts a new run.
	CreateRun(ctx context.Context, run *domain.IngestionRun) error

	// UpdateRun writes the status, counters, error and finish time of a run.
	// Returns domain.ErrNotFound if the run does not exist.
	UpdateRun(ctx context.Context, run *domain.IngestionRun) error

	// GetRun retrieves a run by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetRun(ctx context.Context, id string) (*domain.IngestionRun, error)

	// ListRuns returns the most recent runs first.
	// A non-positive limit returns all of them.
	ListRuns(ctx context.Context, limit int) ([]domain.IngestionRun, error)
}
