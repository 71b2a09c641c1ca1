package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
)

// Ensure the stores implement the interfaces.
var (
	_ driven.DocumentStore = (*DocumentStore)(nil)
	_ driven.VersionStore  = (*VersionStore)(nil)
)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu         sync.RWMutex
	documents  map[string]domain.Document
	byExternal map[string]string
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents:  make(map[string]domain.Document),
		byExternal: make(map[string]string),
	}
}

// CreateDocument inserts a new document.
func (s *DocumentStore) CreateDocument(_ context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" || doc.ExternalID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; ok {
		return fmt.Errorf("%w: document %s already exists", domain.ErrInvalidInput, doc.ID)
	}
	if _, ok := s.byExternal[doc.ExternalID]; ok {
		return fmt.Errorf("%w: external id %s already tracked", domain.ErrInvalidInput, doc.ExternalID)
	}
	s.documents[doc.ID] = *doc
	s.byExternal[doc.ExternalID] = doc.ID
	return nil
}

// UpdateDocument applies a partial update.
func (s *DocumentStore) UpdateDocument(_ context.Context, id string, update domain.DocumentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	update.Apply(&doc)
	s.documents[id] = doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetDocumentByExternalID looks a document up by storage identity.
func (s *DocumentStore) GetDocumentByExternalID(_ context.Context, externalID string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExternal[externalID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc := s.documents[id]
	return &doc, nil
}

// ListActiveDocuments returns documents that are not soft-deleted,
// ordered by file name.
func (s *DocumentStore) ListActiveDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Document
	for id := range s.documents {
		if doc := s.documents[id]; !doc.IsDeleted {
			result = append(result, doc)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].FileName != result[j].FileName {
			return result[i].FileName < result[j].FileName
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// CountDocuments counts all documents, soft-deleted included.
func (s *DocumentStore) CountDocuments(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents), nil
}

// VersionStore is an in-memory implementation of driven.VersionStore.
type VersionStore struct {
	mu       sync.RWMutex
	versions map[string]domain.DocumentVersion
}

// NewVersionStore creates a new in-memory version store.
func NewVersionStore() *VersionStore {
	return &VersionStore{versions: make(map[string]domain.DocumentVersion)}
}

// CreateVersion inserts a new version. Versions are immutable.
func (s *VersionStore) CreateVersion(_ context.Context, version *domain.DocumentVersion) error {
	if version == nil || version.ID == "" || version.DocumentID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.versions[version.ID]; ok {
		return fmt.Errorf("%w: version %s already exists", domain.ErrInvalidInput, version.ID)
	}
	s.versions[version.ID] = *version
	return nil
}

// GetVersion retrieves a version by ID.
func (s *VersionStore) GetVersion(_ context.Context, id string) (*domain.DocumentVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &v, nil
}

// Count returns the number of stored versions.
func (s *VersionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.versions)
}
