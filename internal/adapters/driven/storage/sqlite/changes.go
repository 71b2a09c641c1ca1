package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
)

// changeStore implements driven.ChangeStore.
type changeStore struct {
	store *Store
}

var _ driven.ChangeStore = (*changeStore)(nil)

const changeColumns = `id, document_id, previous_version_id, new_version_id, change_type, detected_at,
	summary, reason, severity, explanation_status, explanation_text, explanation_bullets,
	explanation_meta, explanation_error, explained_at`

// CreateChange inserts a new change record.
func (s *changeStore) CreateChange(ctx context.Context, record *domain.ChangeRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("%w: change record requires an id", domain.ErrInvalidInput)
	}
	if err := record.Validate(); err != nil {
		return err
	}

	reasonJSON, err := json.Marshal(record.Reason)
	if err != nil {
		return fmt.Errorf("marshalling reason: %w", err)
	}
	bulletsJSON, err := marshalNullable(record.ExplanationBullets)
	if err != nil {
		return fmt.Errorf("marshalling bullets: %w", err)
	}
	metaJSON, err := marshalMeta(record.ExplanationMeta)
	if err != nil {
		return fmt.Errorf("marshalling meta: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO change_records (`+changeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, nullStringPtr(record.DocumentID), nullStringPtr(record.PreviousVersionID),
		nullStringPtr(record.NewVersionID), string(record.ChangeType), formatTime(record.DetectedAt),
		record.Summary, string(reasonJSON), string(record.Severity),
		nullString(string(record.ExplanationStatus)), nullString(record.ExplanationText), bulletsJSON,
		metaJSON, nullString(record.ExplanationError), formatTimePtr(record.ExplainedAt))

	if isConstraintError(err) {
		return fmt.Errorf("%w: change %s: %w", domain.ErrInvalidInput, record.ID, err)
	}
	if err != nil {
		return fmt.Errorf("creating change record: %w", err)
	}
	return nil
}

// UpdateExplanation writes the explanation of a record that has none yet.
func (s *changeStore) UpdateExplanation(ctx context.Context, id string, update domain.ExplanationUpdate) error {
	bulletsJSON, err := marshalNullable(update.Bullets)
	if err != nil {
		return fmt.Errorf("marshalling bullets: %w", err)
	}
	metaJSON, err := marshalMeta(update.Meta)
	if err != nil {
		return fmt.Errorf("marshalling meta: %w", err)
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE change_records SET
			explanation_status = ?,
			explanation_text = ?,
			explanation_bullets = ?,
			explanation_meta = ?,
			explanation_error = ?,
			explained_at = ?
		WHERE id = ? AND explanation_status IS NULL
	`, string(update.Status), nullString(update.Text), bulletsJSON, metaJSON,
		nullString(update.Error), formatNullableTime(update.ExplainedAt), id)
	if err != nil {
		return fmt.Errorf("updating explanation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating explanation: %w", err)
	}
	if n > 0 {
		return nil
	}

	// Nothing updated: either already explained or missing.
	var exists int
	err = s.store.db.QueryRowContext(ctx, "SELECT 1 FROM change_records WHERE id = ?", id).Scan(&exists)
	if err != nil {
		return notFound(err, "change record")
	}
	return nil
}

// ListUnexplained returns records with no explanation status, oldest first.
func (s *changeStore) ListUnexplained(ctx context.Context, limit int) ([]domain.ChangeRecord, error) {
	return s.query(ctx, `
		SELECT `+changeColumns+` FROM change_records
		WHERE explanation_status IS NULL
		ORDER BY detected_at ASC, rowid ASC
		LIMIT ?
	`, sqlLimit(limit))
}

// GetChange retrieves a record by ID.
func (s *changeStore) GetChange(ctx context.Context, id string) (*domain.ChangeRecord, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+changeColumns+" FROM change_records WHERE id = ?", id)
	return scanChange(row)
}

// ListChanges returns the most recent records first.
func (s *changeStore) ListChanges(ctx context.Context, limit int) ([]domain.ChangeRecord, error) {
	return s.query(ctx, `
		SELECT `+changeColumns+` FROM change_records
		ORDER BY detected_at DESC, rowid DESC
		LIMIT ?
	`, sqlLimit(limit))
}

func (s *changeStore) query(ctx context.Context, query string, args ...any) ([]domain.ChangeRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying change records: %w", err)
	}
	defer rows.Close()

	var records []domain.ChangeRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		record, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating change records: %w", err)
	}

	return records, nil
}

func scanChange(row rowScanner) (*domain.ChangeRecord, error) {
	var r domain.ChangeRecord
	var documentID, previousID, newID sql.NullString
	var changeType, severity, detectedAt, reasonJSON string
	var status, text, bulletsJSON, metaJSON, explanationErr, explainedAt sql.NullString

	if err := row.Scan(&r.ID, &documentID, &previousID, &newID, &changeType, &detectedAt,
		&r.Summary, &reasonJSON, &severity, &status, &text, &bulletsJSON,
		&metaJSON, &explanationErr, &explainedAt); err != nil {
		return nil, notFound(err, "change record")
	}

	r.DocumentID = stringPtr(documentID)
	r.PreviousVersionID = stringPtr(previousID)
	r.NewVersionID = stringPtr(newID)
	r.ChangeType = domain.ChangeType(changeType)
	r.DetectedAt = parseTime(detectedAt)
	r.Severity = domain.Severity(severity)

	if reasonJSON != "" {
		if err := json.Unmarshal([]byte(reasonJSON), &r.Reason); err != nil {
			return nil, fmt.Errorf("unmarshaling reason: %w", err)
		}
	}

	r.ExplanationStatus = domain.ExplanationStatus(status.String)
	r.ExplanationText = text.String
	r.ExplanationError = explanationErr.String
	r.ExplainedAt = parseTimePtr(explainedAt)

	if bulletsJSON.Valid && bulletsJSON.String != "" {
		var bullets domain.ExplanationBullets
		if err := json.Unmarshal([]byte(bulletsJSON.String), &bullets); err != nil {
			return nil, fmt.Errorf("unmarshaling bullets: %w", err)
		}
		r.ExplanationBullets = &bullets
	}
	if metaJSON.Valid {
		meta, err := domain.UnmarshalExplanationMeta([]byte(metaJSON.String))
		if err != nil {
			return nil, err
		}
		r.ExplanationMeta = meta
	}

	return &r, nil
}

// marshalNullable encodes v as JSON, or returns nil for a nil pointer.
func marshalNullable[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// marshalMeta encodes an explanation meta with its discriminant, or
// returns nil when there is none.
func marshalMeta(meta domain.ExplanationMeta) (any, error) {
	if meta == nil {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
