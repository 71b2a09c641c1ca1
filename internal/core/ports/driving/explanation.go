package driving

import (
	"context"

	"github.com/custodia-labs/changelens/internal/core/domain"
)

// ExplanationService settles the explanation lifecycle of change records.
type ExplanationService interface {
	// Explain generates and stores the explanation of a record.
	// Records that already carry an explanation status are left untouched.
	Explain(ctx context.Context, record *domain.ChangeRecord) error

	// ExplainByID loads a record and explains it.
	ExplainByID(ctx context.Context, changeID string) error

	// Backfill explains every record with no explanation status using the
	// deterministic generator, and returns how many were written.
	Backfill(ctx context.Context) (int, error)
}
