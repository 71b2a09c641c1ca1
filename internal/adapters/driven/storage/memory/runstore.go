package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
)

// Ensure RunStore implements the interface.
var _ driven.RunStore = (*RunStore)(nil)

// RunStore is an in-memory implementation of driven.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]domain.IngestionRun
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]domain.IngestionRun)}
}

// CreateRun inserts a new run.
func (s *RunStore) CreateRun(_ context.Context, run *domain.IngestionRun) error {
	if run == nil || run.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; ok {
		return domain.ErrInvalidInput
	}
	s.runs[run.ID] = *run
	return nil
}

// UpdateRun writes the mutable fields of a run.
func (s *RunStore) UpdateRun(_ context.Context, run *domain.IngestionRun) error {
	if run == nil {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.runs[run.ID]
	if !ok {
		return domain.ErrNotFound
	}
	existing.Location = run.Location
	existing.Status = run.Status
	existing.DocumentsProcessed = run.DocumentsProcessed
	existing.ChangesDetected = run.ChangesDetected
	existing.Error = run.Error
	existing.FinishedAt = run.FinishedAt
	s.runs[run.ID] = existing
	return nil
}

// GetRun retrieves a run by ID.
func (s *RunStore) GetRun(_ context.Context, id string) (*domain.IngestionRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &run, nil
}

// ListRuns returns the most recent runs first.
func (s *RunStore) ListRuns(_ context.Context, limit int) ([]domain.IngestionRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.IngestionRun, 0, len(s.runs))
	for id := range s.runs {
		result = append(result, s.runs[id])
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
