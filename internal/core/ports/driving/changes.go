package driving

import (
	"context"

	"github.com/custodia-labs/changelens/internal/core/domain"
)

// ChangeService exposes detected changes and runs for reading.
type ChangeService interface {
	// ListChanges returns the most recent change records first.
	ListChanges(ctx context.Context, limit int) ([]domain.ChangeRecord, error)

	// GetChange returns one change record.
	GetChange(ctx context.Context, id string) (*domain.ChangeRecord, error)

	// GetDocument returns the tracked document a record refers to.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListRuns returns the most recent ingestion runs first.
	ListRuns(ctx context.Context, limit int) ([]domain.IngestionRun, error)
}
