package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
)

// runStore implements driven.RunStore.
type runStore struct {
	store *Store
}

var _ driven.RunStore = (*runStore)(nil)

const runColumns = `id, location, created_at, status, documents_processed, changes_detected, error, finished_at`

// CreateRun inserts a new run.
func (s *runStore) CreateRun(ctx context.Context, run *domain.IngestionRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run requires an id", domain.ErrInvalidInput)
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO ingestion_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Location, formatTime(run.CreatedAt), string(run.Status),
		run.DocumentsProcessed, run.ChangesDetected, nullString(run.Error), formatTimePtr(run.FinishedAt))

	if isConstraintError(err) {
		return fmt.Errorf("%w: run %s: %w", domain.ErrInvalidInput, run.ID, err)
	}
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	return nil
}

// UpdateRun writes the mutable fields of a run.
func (s *runStore) UpdateRun(ctx context.Context, run *domain.IngestionRun) error {
	if run == nil {
		return domain.ErrInvalidInput
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE ingestion_runs SET
			location = ?,
			status = ?,
			documents_processed = ?,
			changes_detected = ?,
			error = ?,
			finished_at = ?
		WHERE id = ?
	`, run.Location, string(run.Status), run.DocumentsProcessed, run.ChangesDetected,
		nullString(run.Error), formatTimePtr(run.FinishedAt), run.ID)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *runStore) GetRun(ctx context.Context, id string) (*domain.IngestionRun, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM ingestion_runs WHERE id = ?", id)
	return scanRun(row)
}

// ListRuns returns the most recent runs first.
func (s *runStore) ListRuns(ctx context.Context, limit int) ([]domain.IngestionRun, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM ingestion_runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.IngestionRun //nolint:prealloc // size unknown from query
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	return runs, nil
}

func scanRun(row rowScanner) (*domain.IngestionRun, error) {
	var run domain.IngestionRun
	var createdAt, status string
	var errMsg, finishedAt sql.NullString

	if err := row.Scan(&run.ID, &run.Location, &createdAt, &status,
		&run.DocumentsProcessed, &run.ChangesDetected, &errMsg, &finishedAt); err != nil {
		return nil, notFound(err, "run")
	}

	run.CreatedAt = parseTime(createdAt)
	run.Status = domain.RunStatus(status)
	run.Error = errMsg.String
	run.FinishedAt = parseTimePtr(finishedAt)

	return &run, nil
}
