package services

import (
	"context"

	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
	"github.com/custodia-labs/changelens/internal/core/ports/driving"
)

// Ensure ChangeService implements the interface.
var _ driving.ChangeService = (*ChangeService)(nil)

// ChangeService reads change records, the documents they refer to and
// ingestion runs.
type ChangeService struct {
	changes   driven.ChangeStore
	documents driven.DocumentStore
	runs      driven.RunStore
}

// NewChangeService creates a change service.
func NewChangeService(changes driven.ChangeStore, documents driven.DocumentStore, runs driven.RunStore) *ChangeService {
	return &ChangeService{changes: changes, documents: documents, runs: runs}
}

// ListChanges returns the most recent change records first.
func (s *ChangeService) ListChanges(ctx context.Context, limit int) ([]domain.ChangeRecord, error) {
	return s.changes.ListChanges(ctx, limit)
}

// GetChange returns one change record.
func (s *ChangeService) GetChange(ctx context.Context, id string) (*domain.ChangeRecord, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.changes.GetChange(ctx, id)
}

// GetDocument returns one tracked document, soft-deleted ones included.
func (s *ChangeService) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.documents.GetDocument(ctx, id)
}

// ListRuns returns the most recent ingestion runs first.
func (s *ChangeService) ListRuns(ctx context.Context, limit int) ([]domain.IngestionRun, error) {
	return s.runs.ListRuns(ctx, limit)
}
