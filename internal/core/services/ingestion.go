package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
	"github.com/custodia-labs/changelens/internal/core/ports/driving"
	"github.com/custodia-labs/changelens/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestionService drives one scan-and-classify pass at a time.
type IngestionService struct {
	runs       driven.RunStore
	classifier *Classifier
	tokens     driven.TokenProvider

	// running is the single-flight guard shared by manual, scheduled and
	// watch-triggered runs.
	running atomic.Bool

	now   func() time.Time
	newID func() string
}

// NewIngestionService creates an ingestion service. tokens may be nil for
// storage backends that need no authentication.
func NewIngestionService(
	runs driven.RunStore,
	classifier *Classifier,
	tokens driven.TokenProvider,
) *IngestionService {
	return &IngestionService{
		runs:       runs,
		classifier: classifier,
		tokens:     tokens,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// InProgress reports whether a run is currently executing.
func (s *IngestionService) InProgress() bool {
	return s.running.Load()
}

// RunNow creates a run record for location and executes it.
// Returns domain.ErrIngestionInProgress, without creating anything, when
// another run is executing.
func (s *IngestionService) RunNow(ctx context.Context, location string) (*domain.IngestionRun, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, domain.ErrIngestionInProgress
	}
	defer s.running.Store(false)

	run := domain.NewIngestionRun(s.newID(), location, s.now())
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return s.execute(ctx, run)
}

// Run executes an already created run record against location.
// Returns domain.ErrIngestionInProgress, without touching the record, when
// another run is executing.
func (s *IngestionService) Run(ctx context.Context, runID, location string) (*domain.IngestionRun, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, domain.ErrIngestionInProgress
	}
	defer s.running.Store(false)

	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	if run.Status.IsTerminal() {
		return run, fmt.Errorf("%w: run %s already %s", domain.ErrInvalidInput, runID, run.Status)
	}
	if location != "" {
		run.Location = location
	}
	return s.execute(ctx, run)
}

// execute moves run to a terminal state. The returned error is the
// failure recorded on the run, if any.
func (s *IngestionService) execute(ctx context.Context, run *domain.IngestionRun) (*domain.IngestionRun, error) {
	logger.Section(fmt.Sprintf("Ingestion run %s", run.ID))

	if s.tokens != nil && !s.tokens.IsAuthenticated() {
		return s.fail(ctx, run, domain.ErrAuthRequired, ClassifyResult{})
	}

	run.Start()
	if err := s.runs.UpdateRun(ctx, run); err != nil {
		return s.fail(ctx, run, fmt.Errorf("mark run in progress: %w", err), ClassifyResult{})
	}

	result, err := s.classifier.Classify(ctx, run.Location)
	if err != nil {
		return s.fail(ctx, run, err, result)
	}

	run.Complete(result.DocumentsProcessed, result.ChangesDetected, s.now())
	if err := s.runs.UpdateRun(ctx, run); err != nil {
		return s.fail(ctx, run, fmt.Errorf("mark run completed: %w", err), result)
	}

	logger.Info("Run %s completed: %d documents, %d changes",
		run.ID, result.DocumentsProcessed, result.ChangesDetected)
	return run, nil
}

func (s *IngestionService) fail(
	ctx context.Context,
	run *domain.IngestionRun,
	cause error,
	result ClassifyResult,
) (*domain.IngestionRun, error) {
	run.Fail(cause, result.DocumentsProcessed, result.ChangesDetected, s.now())
	logger.Warn("Run %s failed: %v", run.ID, cause)
	if err := s.runs.UpdateRun(ctx, run); err != nil {
		logger.Error("Failed to record failure of run %s: %v", run.ID, err)
	}
	return run, cause
}
