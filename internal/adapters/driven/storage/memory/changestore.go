package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
)

// Ensure ChangeStore implements the interface.
var _ driven.ChangeStore = (*ChangeStore)(nil)

// ChangeStore is an in-memory implementation of driven.ChangeStore.
// Records are kept in insertion order.
type ChangeStore struct {
	mu      sync.RWMutex
	records []domain.ChangeRecord
	index   map[string]int
}

// NewChangeStore creates a new in-memory change store.
func NewChangeStore() *ChangeStore {
	return &ChangeStore{index: make(map[string]int)}
}

// CreateChange inserts a new change record.
func (s *ChangeStore) CreateChange(_ context.Context, record *domain.ChangeRecord) error {
	if record == nil || record.ID == "" {
		return domain.ErrInvalidInput
	}
	if err := record.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[record.ID]; ok {
		return fmt.Errorf("%w: change %s already exists", domain.ErrInvalidInput, record.ID)
	}
	s.index[record.ID] = len(s.records)
	s.records = append(s.records, copyRecord(*record))
	return nil
}

// UpdateExplanation writes the explanation of a record that has none yet.
func (s *ChangeStore) UpdateExplanation(_ context.Context, id string, update domain.ExplanationUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return domain.ErrNotFound
	}
	if s.records[i].IsExplained() {
		return nil
	}
	update.Apply(&s.records[i])
	return nil
}

// ListUnexplained returns records with no explanation status, oldest first.
func (s *ChangeStore) ListUnexplained(_ context.Context, limit int) ([]domain.ChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.ChangeRecord
	for i := range s.records {
		if s.records[i].IsExplained() {
			continue
		}
		result = append(result, copyRecord(s.records[i]))
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// GetChange retrieves a record by ID.
func (s *ChangeStore) GetChange(_ context.Context, id string) (*domain.ChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	record := copyRecord(s.records[i])
	return &record, nil
}

// ListChanges returns the most recent records first.
func (s *ChangeStore) ListChanges(_ context.Context, limit int) ([]domain.ChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.ChangeRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		result = append(result, copyRecord(s.records[i]))
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// copyRecord detaches the mutable explanation bullets from the stored copy.
func copyRecord(r domain.ChangeRecord) domain.ChangeRecord {
	if r.ExplanationBullets != nil {
		b := *r.ExplanationBullets
		r.ExplanationBullets = &b
	}
	return r
}
