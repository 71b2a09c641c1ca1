package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
	"github.com/custodia-labs/changelens/internal/core/ports/driving"
	"github.com/custodia-labs/changelens/internal/logger"
)

// Ensure ExplanationService implements the interface.
var _ driving.ExplanationService = (*ExplanationService)(nil)

// DefaultBackfillGrace is how old a record must be before backfill takes
// it over from the explanation dispatched at detection.
const DefaultBackfillGrace = 5 * time.Minute

// ExplanationService settles the explanation of change records. AI output
// is preferred when enabled; any AI failure falls back to the deterministic
// explainer, and only a failure of both marks the record failed.
type ExplanationService struct {
	changes       driven.ChangeStore
	versions      driven.VersionStore
	deterministic *DeterministicExplainer
	ai            *AIExplainer
	enabled       bool
	grace         time.Duration

	now func() time.Time
}

// NewExplanationService creates an explanation service. ai may be nil.
// When enabled is false records are marked skipped without an explanation.
func NewExplanationService(
	changes driven.ChangeStore,
	versions driven.VersionStore,
	deterministic *DeterministicExplainer,
	ai *AIExplainer,
	enabled bool,
) *ExplanationService {
	return &ExplanationService{
		changes:       changes,
		versions:      versions,
		deterministic: deterministic,
		ai:            ai,
		enabled:       enabled,
		grace:         DefaultBackfillGrace,
		now:           time.Now,
	}
}

// SetBackfillGrace changes how long backfill leaves a new record to its
// dispatched explanation. Zero backfills every unexplained record.
func (s *ExplanationService) SetBackfillGrace(d time.Duration) {
	s.grace = max(d, 0)
}

// ExplainByID loads a record and explains it.
func (s *ExplanationService) ExplainByID(ctx context.Context, changeID string) error {
	record, err := s.changes.GetChange(ctx, changeID)
	if err != nil {
		return fmt.Errorf("get change %s: %w", changeID, err)
	}
	return s.Explain(ctx, record)
}

// Explain generates and stores the explanation of record. A record that
// already has an explanation status is left untouched.
func (s *ExplanationService) Explain(ctx context.Context, record *domain.ChangeRecord) error {
	if record == nil {
		return fmt.Errorf("%w: nil change record", domain.ErrInvalidInput)
	}
	if record.IsExplained() {
		logger.Debug("Change %s already explained (%s)", record.ID, record.ExplanationStatus)
		return nil
	}

	if !s.enabled {
		return s.store(ctx, record, domain.ExplanationUpdate{
			Status: domain.ExplanationSkipped,
			Meta:   domain.DeterministicMeta{Confidence: domain.ConfidenceLow, AISkipped: true},
		})
	}

	in, loadErr := s.buildInput(ctx, record)
	if loadErr != nil {
		logger.Debug("Explaining %s without full content: %v", record.ID, loadErr)
	}

	var aiErr error
	if s.ai.Handles(record.ChangeType) {
		explanation, err := s.ai.Generate(ctx, in)
		if err == nil {
			return s.store(ctx, record, generatedUpdate(explanation, ""))
		}
		aiErr = err
		logger.Warn("AI explanation for %s failed, using deterministic fallback: %v", record.ID, err)
	}

	explanation, err := s.safeDeterministic(in)
	if err != nil {
		cause := errors.Join(aiErr, err)
		logger.Error("Explanation for %s failed: %v", record.ID, cause)
		return s.store(ctx, record, domain.ExplanationUpdate{
			Status: domain.ExplanationFailed,
			Error:  cause.Error(),
		})
	}

	diagnostic := ""
	if aiErr != nil {
		if meta, ok := explanation.Meta.(domain.DeterministicMeta); ok {
			meta.FallbackFrom = s.ai.llm.ModelName()
			explanation.Meta = meta
		}
		diagnostic = aiErr.Error()
	}
	return s.store(ctx, record, generatedUpdate(explanation, diagnostic))
}

// Backfill explains every record that has no explanation status with the
// deterministic explainer. Records already explained are never touched,
// and records detected within the grace window are left to the
// explanation dispatched for them.
func (s *ExplanationService) Backfill(ctx context.Context) (int, error) {
	records, err := s.changes.ListUnexplained(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("list unexplained changes: %w", err)
	}

	cutoff := s.now().Add(-s.grace)
	due := records[:0]
	for _, record := range records {
		if !record.IsExplained() && !record.DetectedAt.After(cutoff) {
			due = append(due, record)
		}
	}
	if skipped := len(records) - len(due); skipped > 0 {
		logger.Debug("Backfill leaves %d recent changes to their dispatched explanations", skipped)
	}
	if len(due) == 0 {
		return 0, nil
	}
	logger.Info("Backfilling %d unexplained changes", len(due))

	var errs []error
	written := 0
	for i := range due {
		record := &due[i]

		in, loadErr := s.buildInput(ctx, record)
		if loadErr != nil {
			logger.Debug("Backfilling %s without full content: %v", record.ID, loadErr)
		}

		var update domain.ExplanationUpdate
		explanation, err := s.safeDeterministic(in)
		if err != nil {
			update = domain.ExplanationUpdate{Status: domain.ExplanationFailed, Error: err.Error()}
		} else {
			update = generatedUpdate(explanation, "")
		}

		if err := s.store(ctx, record, update); err != nil {
			errs = append(errs, err)
			continue
		}
		written++
	}
	return written, errors.Join(errs...)
}

// buildInput loads the versions referenced by record. A version that
// cannot be loaded leaves its content empty; the returned error is only
// diagnostic.
func (s *ExplanationService) buildInput(ctx context.Context, record *domain.ChangeRecord) (ExplanationInput, error) {
	in := ExplanationInput{Record: record, FileName: record.Reason.NewName}
	if in.FileName == "" {
		in.FileName = record.Reason.LastSeenName
	}
	if !record.ChangeType.HasContent() {
		return in, nil
	}

	var errs []error
	if record.NewVersionID != nil {
		v, err := s.versions.GetVersion(ctx, *record.NewVersionID)
		if err != nil {
			errs = append(errs, fmt.Errorf("new version: %w", err))
		} else {
			in.NewContent = v.Content
		}
	}
	if record.ChangeType == domain.ChangeModified && record.PreviousVersionID != nil {
		v, err := s.versions.GetVersion(ctx, *record.PreviousVersionID)
		if err != nil {
			errs = append(errs, fmt.Errorf("previous version: %w", err))
		} else {
			in.PreviousContent = v.Content
		}
	}
	return in, errors.Join(errs...)
}

// safeDeterministic runs the deterministic explainer, converting a panic
// into an error.
func (s *ExplanationService) safeDeterministic(in ExplanationInput) (explanation domain.Explanation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("deterministic explanation panicked: %v", r)
		}
	}()
	return s.deterministic.Generate(in), nil
}

func (s *ExplanationService) store(ctx context.Context, record *domain.ChangeRecord, update domain.ExplanationUpdate) error {
	update.ExplainedAt = s.now()
	if err := s.changes.UpdateExplanation(ctx, record.ID, update); err != nil {
		return fmt.Errorf("store explanation for %s: %w", record.ID, err)
	}
	update.Apply(record)
	return nil
}

func generatedUpdate(e domain.Explanation, diagnostic string) domain.ExplanationUpdate {
	bullets := e.Bullets
	return domain.ExplanationUpdate{
		Status:  domain.ExplanationGenerated,
		Text:    e.Text,
		Bullets: &bullets,
		Meta:    e.Meta,
		Error:   diagnostic,
	}
}
