package driving

import (
	"context"

	"github.com/custodia-labs/changelens/internal/core/domain"
)

// IngestionService runs the scan-and-classify pipeline.
// At most one run executes at a time; overlapping requests fail with
// domain.ErrIngestionInProgress and have no side effects.
type IngestionService interface {
	// Run executes an ingestion for an already created run record and
	// leaves it in a terminal state.
	Run(ctx context.Context, runID, location string) (*domain.IngestionRun, error)

	// RunNow creates a run record and executes it.
	RunNow(ctx context.Context, location string) (*domain.IngestionRun, error)

	// InProgress reports whether a run is currently executing.
	InProgress() bool
}
