package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
)

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, external_id, file_name, mime_type, last_modified, current_version_id,
	current_hash, is_deleted, deleted_at, created_at, updated_at`

// CreateDocument inserts a new document.
func (s *documentStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" || doc.ExternalID == "" {
		return fmt.Errorf("%w: document requires id and external id", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.ExternalID, doc.FileName, doc.MIMEType, formatNullableTime(doc.LastModified),
		doc.CurrentVersionID, doc.CurrentHash, boolToInt(doc.IsDeleted), formatTimePtr(doc.DeletedAt),
		formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt))

	if isConstraintError(err) {
		return fmt.Errorf("%w: document %s: %w", domain.ErrInvalidInput, doc.ExternalID, err)
	}
	if err != nil {
		return fmt.Errorf("creating document: %w", err)
	}
	return nil
}

// UpdateDocument applies the set fields of update.
func (s *documentStore) UpdateDocument(ctx context.Context, id string, update domain.DocumentUpdate) error {
	var sets []string
	var args []any
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if update.FileName != nil {
		set("file_name", *update.FileName)
	}
	if update.MIMEType != nil {
		set("mime_type", *update.MIMEType)
	}
	if update.LastModified != nil {
		set("last_modified", formatNullableTime(*update.LastModified))
	}
	if update.CurrentVersionID != nil {
		set("current_version_id", *update.CurrentVersionID)
	}
	if update.CurrentHash != nil {
		set("current_hash", *update.CurrentHash)
	}
	if update.IsDeleted != nil {
		set("is_deleted", boolToInt(*update.IsDeleted))
		if !*update.IsDeleted && update.DeletedAt == nil {
			set("deleted_at", nil)
		}
	}
	if update.DeletedAt != nil {
		set("deleted_at", formatTime(*update.DeletedAt))
	}
	set("updated_at", formatTime(time.Now()))
	args = append(args, id)

	res, err := s.store.db.ExecContext(ctx,
		"UPDATE documents SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	return scanDocument(row)
}

// GetDocumentByExternalID looks a document up by storage identity.
func (s *documentStore) GetDocumentByExternalID(ctx context.Context, externalID string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE external_id = ?", externalID)
	return scanDocument(row)
}

// ListActiveDocuments returns documents that are not soft-deleted.
func (s *documentStore) ListActiveDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE is_deleted = 0 ORDER BY file_name, id")
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// CountDocuments counts all documents, soft-deleted included.
func (s *documentStore) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var lastModified, deletedAt sql.NullString
	var createdAt, updatedAt string
	var isDeleted int

	if err := row.Scan(&doc.ID, &doc.ExternalID, &doc.FileName, &doc.MIMEType, &lastModified,
		&doc.CurrentVersionID, &doc.CurrentHash, &isDeleted, &deletedAt, &createdAt, &updatedAt); err != nil {
		return nil, notFound(err, "document")
	}

	doc.LastModified = parseNullableTime(lastModified)
	doc.IsDeleted = isDeleted == 1
	doc.DeletedAt = parseTimePtr(deletedAt)
	doc.CreatedAt = parseTime(createdAt)
	doc.UpdatedAt = parseTime(updatedAt)

	return &doc, nil
}

// ==================== Version Store ====================

// versionStore implements driven.VersionStore.
type versionStore struct {
	store *Store
}

var _ driven.VersionStore = (*versionStore)(nil)

// CreateVersion inserts a new immutable version.
func (s *versionStore) CreateVersion(ctx context.Context, version *domain.DocumentVersion) error {
	if version == nil || version.ID == "" || version.DocumentID == "" {
		return fmt.Errorf("%w: version requires id and document id", domain.ErrInvalidInput)
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO document_versions (id, document_id, hash, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, version.ID, version.DocumentID, version.Hash, version.Content, formatTime(version.CreatedAt))

	if isConstraintError(err) {
		return fmt.Errorf("%w: version %s: %w", domain.ErrInvalidInput, version.ID, err)
	}
	if err != nil {
		return fmt.Errorf("creating version: %w", err)
	}
	return nil
}

// GetVersion retrieves a version by ID.
func (s *versionStore) GetVersion(ctx context.Context, id string) (*domain.DocumentVersion, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, hash, content, created_at
		FROM document_versions WHERE id = ?
	`, id)

	var v domain.DocumentVersion
	var createdAt string
	if err := row.Scan(&v.ID, &v.DocumentID, &v.Hash, &v.Content, &createdAt); err != nil {
		return nil, notFound(err, "version")
	}
	v.CreatedAt = parseTime(createdAt)
	return &v, nil
}
