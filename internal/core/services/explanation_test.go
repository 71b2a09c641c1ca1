package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/changelens/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/changelens/internal/core/domain"
)

type explanationFixture struct {
	changes  *memory.ChangeStore
	versions *memory.VersionStore
	llm      *mockLLM
}

func newExplanationFixture(t *testing.T) *explanationFixture {
	t.Helper()
	f := &explanationFixture{
		changes:  memory.NewChangeStore(),
		versions: memory.NewVersionStore(),
		llm:      &mockLLM{response: validAIResponse, model: "claude-test"},
	}
	ctx := context.Background()
	require.NoError(t, f.versions.CreateVersion(ctx, &domain.DocumentVersion{
		ID: "v1", DocumentID: "doc-1", Hash: domain.ContentHash(noticeBefore), Content: noticeBefore,
	}))
	require.NoError(t, f.versions.CreateVersion(ctx, &domain.DocumentVersion{
		ID: "v2", DocumentID: "doc-1", Hash: domain.ContentHash(noticeAfter), Content: noticeAfter,
	}))
	return f
}

func (f *explanationFixture) service(enabled, aiEnabled bool) *ExplanationService {
	analyzer := NewChangeAnalyzer(domain.DefaultVocabulary(), 0)
	ai := NewAIExplainer(f.llm, analyzer, aiEnabled, 0)
	return NewExplanationService(f.changes, f.versions, NewDeterministicExplainer(analyzer), ai, enabled)
}

func (f *explanationFixture) addModified(t *testing.T, id string) *domain.ChangeRecord {
	t.Helper()
	record := &domain.ChangeRecord{
		ID:                id,
		DocumentID:        ptr("doc-1"),
		PreviousVersionID: ptr("v1"),
		NewVersionID:      ptr("v2"),
		ChangeType:        domain.ChangeModified,
		DetectedAt:        time.Now(),
		Summary:           `Content of "Privacy Notice.txt" was modified`,
		Reason:            domain.ChangeReason{ContentChanged: true, NewName: "Privacy Notice.txt"},
		Severity:          domain.SeverityFor(domain.ChangeModified),
	}
	require.NoError(t, f.changes.CreateChange(context.Background(), record))
	return record
}

func (f *explanationFixture) addRenamed(t *testing.T, id string) *domain.ChangeRecord {
	t.Helper()
	record := &domain.ChangeRecord{
		ID:         id,
		DocumentID: ptr("doc-1"),
		ChangeType: domain.ChangeRenamed,
		DetectedAt: time.Now(),
		Summary:    "Document renamed",
		Reason:     domain.ChangeReason{OldName: "Notice.txt", NewName: "Privacy Notice.txt"},
		Severity:   domain.SeverityFor(domain.ChangeRenamed),
	}
	require.NoError(t, f.changes.CreateChange(context.Background(), record))
	return record
}

func (f *explanationFixture) stored(t *testing.T, id string) *domain.ChangeRecord {
	t.Helper()
	record, err := f.changes.GetChange(context.Background(), id)
	require.NoError(t, err)
	return record
}

func TestExplanationService_AISuccess(t *testing.T) {
	f := newExplanationFixture(t)
	s := f.service(true, true)
	record := f.addModified(t, "c-1")

	require.NoError(t, s.Explain(context.Background(), record))

	got := f.stored(t, "c-1")
	assert.Equal(t, domain.ExplanationGenerated, got.ExplanationStatus)
	assert.Empty(t, got.ExplanationError)
	require.NotNil(t, got.ExplanationBullets)
	assert.NotEmpty(t, got.ExplanationBullets.WhatChanged)
	assert.NotNil(t, got.ExplainedAt)

	meta, ok := got.ExplanationMeta.(domain.AIMeta)
	require.True(t, ok)
	assert.Equal(t, "claude-test", meta.Model)

	require.Equal(t, 1, f.llm.calls())
	assert.Contains(t, f.llm.prompts[0], "We may share data with a third party.")

	// The in-memory record reflects what was stored.
	assert.Equal(t, domain.ExplanationGenerated, record.ExplanationStatus)
}

func TestExplanationService_AIFailureFallsBack(t *testing.T) {
	tests := []struct {
		name string
		llm  *mockLLM
	}{
		{"unavailable", &mockLLM{err: errors.New("rate limited"), model: "gpt-test"}},
		{"unparseable", &mockLLM{response: "sorry", model: "gpt-test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newExplanationFixture(t)
			f.llm = tt.llm
			s := f.service(true, true)
			f.addModified(t, "c-1")

			require.NoError(t, s.ExplainByID(context.Background(), "c-1"))

			got := f.stored(t, "c-1")
			assert.Equal(t, domain.ExplanationGenerated, got.ExplanationStatus)
			assert.NotEmpty(t, got.ExplanationError, "AI error is kept as a diagnostic")
			require.NotNil(t, got.ExplanationBullets)
			assert.NotEmpty(t, got.ExplanationBullets.WhatChanged)

			meta, ok := got.ExplanationMeta.(domain.DeterministicMeta)
			require.True(t, ok)
			assert.Equal(t, "gpt-test", meta.FallbackFrom)
			assert.True(t, meta.HighRiskDetected)
		})
	}
}

func TestExplanationService_AIDisabledUsesDeterministic(t *testing.T) {
	f := newExplanationFixture(t)
	s := f.service(true, false)
	f.addModified(t, "c-1")

	require.NoError(t, s.ExplainByID(context.Background(), "c-1"))

	got := f.stored(t, "c-1")
	assert.Equal(t, domain.ExplanationGenerated, got.ExplanationStatus)
	assert.Empty(t, got.ExplanationError)
	assert.True(t, got.ExplanationMeta.IsDeterministic())
	assert.Zero(t, f.llm.calls())
}

func TestExplanationService_NonContentTypesSkipModel(t *testing.T) {
	f := newExplanationFixture(t)
	s := f.service(true, true)
	f.addRenamed(t, "c-1")

	require.NoError(t, s.ExplainByID(context.Background(), "c-1"))

	got := f.stored(t, "c-1")
	assert.Equal(t, domain.ExplanationGenerated, got.ExplanationStatus)
	assert.True(t, got.ExplanationMeta.IsDeterministic())
	assert.Zero(t, f.llm.calls())
}

func TestExplanationService_DisabledMarksSkipped(t *testing.T) {
	f := newExplanationFixture(t)
	s := f.service(false, true)
	f.addModified(t, "c-1")

	require.NoError(t, s.ExplainByID(context.Background(), "c-1"))

	got := f.stored(t, "c-1")
	assert.Equal(t, domain.ExplanationSkipped, got.ExplanationStatus)
	assert.Empty(t, got.ExplanationText)
	assert.Zero(t, f.llm.calls())
}

func TestExplanationService_AlreadyExplainedUntouched(t *testing.T) {
	f := newExplanationFixture(t)
	s := f.service(true, true)
	record := f.addModified(t, "c-1")

	require.NoError(t, s.Explain(context.Background(), record))
	first := f.stored(t, "c-1")

	f.llm.response = `{"what_changed": ["Something else entirely."]}`
	require.NoError(t, s.ExplainByID(context.Background(), "c-1"))

	second := f.stored(t, "c-1")
	assert.Equal(t, first.ExplanationText, second.ExplanationText)
	assert.Equal(t, 1, f.llm.calls())
}

func TestExplanationService_BothFailMarksFailed(t *testing.T) {
	f := newExplanationFixture(t)
	f.llm = &mockLLM{err: errors.New("timeout")}
	analyzer := NewChangeAnalyzer(domain.DefaultVocabulary(), 0)
	// A nil deterministic explainer panics on content analysis.
	s := NewExplanationService(f.changes, f.versions, nil, NewAIExplainer(f.llm, analyzer, true, 0), true)
	f.addModified(t, "c-1")

	require.NoError(t, s.ExplainByID(context.Background(), "c-1"))

	got := f.stored(t, "c-1")
	assert.Equal(t, domain.ExplanationFailed, got.ExplanationStatus)
	assert.Contains(t, got.ExplanationError, "timeout")
	assert.Contains(t, got.ExplanationError, "panicked")
}

func TestExplanationService_MissingVersionsStillExplained(t *testing.T) {
	f := newExplanationFixture(t)
	s := f.service(true, false)
	record := &domain.ChangeRecord{
		ID:                "c-1",
		DocumentID:        ptr("doc-1"),
		PreviousVersionID: ptr("gone"),
		NewVersionID:      ptr("also-gone"),
		ChangeType:        domain.ChangeModified,
		DetectedAt:        time.Now(),
		Severity:          domain.SeverityMedium,
	}
	require.NoError(t, f.changes.CreateChange(context.Background(), record))

	require.NoError(t, s.Explain(context.Background(), record))

	got := f.stored(t, "c-1")
	assert.Equal(t, domain.ExplanationGenerated, got.ExplanationStatus)
	assert.Equal(t, domain.ConfidenceLow, got.ExplanationMeta.ConfidenceLevel())
}

func TestExplanationService_Errors(t *testing.T) {
	f := newExplanationFixture(t)
	s := f.service(true, true)

	assert.ErrorIs(t, s.Explain(context.Background(), nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, s.ExplainByID(context.Background(), "missing"), domain.ErrNotFound)
}

func TestExplanationService_Backfill(t *testing.T) {
	f := newExplanationFixture(t)
	s := f.service(true, true)
	s.SetBackfillGrace(0)
	f.addModified(t, "c-1")
	f.addRenamed(t, "c-2")
	explained := f.addRenamed(t, "c-3")
	require.NoError(t, s.Explain(context.Background(), explained))
	before := f.stored(t, "c-3")

	n, err := s.Backfill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, f.llm.calls(), "backfill never calls the model")

	for _, id := range []string{"c-1", "c-2"} {
		got := f.stored(t, id)
		assert.Equal(t, domain.ExplanationGenerated, got.ExplanationStatus, id)
		assert.True(t, got.ExplanationMeta.IsDeterministic(), id)
	}
	assert.Equal(t, before.ExplainedAt, f.stored(t, "c-3").ExplainedAt)

	n, err = s.Backfill(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "second backfill has nothing to do")
}

func TestExplanationService_BackfillSkipsRecentRecords(t *testing.T) {
	f := newExplanationFixture(t)
	s := f.service(true, true)
	ctx := context.Background()
	f.addModified(t, "c-recent")
	require.NoError(t, f.changes.CreateChange(ctx, &domain.ChangeRecord{
		ID:         "c-old",
		DocumentID: ptr("doc-1"),
		ChangeType: domain.ChangeRenamed,
		DetectedAt: time.Now().Add(-DefaultBackfillGrace - time.Minute),
		Summary:    "Document renamed",
		Reason:     domain.ChangeReason{OldName: "Notice.txt", NewName: "Privacy Notice.txt"},
		Severity:   domain.SeverityFor(domain.ChangeRenamed),
	}))

	n, err := s.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.ExplanationGenerated, f.stored(t, "c-old").ExplanationStatus)
	assert.Empty(t, f.stored(t, "c-recent").ExplanationStatus, "left to its dispatched explanation")

	require.NoError(t, s.Explain(ctx, f.stored(t, "c-recent")))
	s.now = func() time.Time { return time.Now().Add(DefaultBackfillGrace + time.Minute) }

	n, err = s.Backfill(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, f.stored(t, "c-recent").ExplanationMeta.IsDeterministic(), "AI output is kept")
}
