package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/changelens/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
)

// --- Fakes for classifier testing ---

// fakeLister implements driven.FileLister over an in-memory listing.
type fakeLister struct {
	mu         sync.Mutex
	files      []domain.ListedFile
	contents   map[string]string
	fetchErrs  map[string]error
	listErr    error
	types      []string
	fetchCalls map[string]int
	listCalls  int
}

func newFakeLister() *fakeLister {
	return &fakeLister{
		contents:   make(map[string]string),
		fetchErrs:  make(map[string]error),
		types:      []string{"text/plain", "text/markdown"},
		fetchCalls: make(map[string]int),
	}
}

// put adds or replaces a listed file and its content.
func (l *fakeLister) put(file domain.ListedFile, content string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.files {
		if l.files[i].ExternalID == file.ExternalID {
			l.files[i] = file
			l.contents[file.ExternalID] = content
			return
		}
	}
	l.files = append(l.files, file)
	l.contents[file.ExternalID] = content
}

// remove drops a file from the listing.
func (l *fakeLister) remove(externalID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.files {
		if l.files[i].ExternalID == externalID {
			l.files = append(l.files[:i], l.files[i+1:]...)
			return
		}
	}
}

func (l *fakeLister) ListFiles(_ context.Context, _ string) ([]domain.ListedFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listCalls++
	if l.listErr != nil {
		return nil, l.listErr
	}
	return append([]domain.ListedFile(nil), l.files...), nil
}

func (l *fakeLister) FetchContent(_ context.Context, file domain.ListedFile) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetchCalls[file.ExternalID]++
	if err := l.fetchErrs[file.ExternalID]; err != nil {
		return "", err
	}
	return l.contents[file.ExternalID], nil
}

func (l *fakeLister) SupportedMIMETypes() []string {
	return l.types
}

// recordingDispatcher implements driven.ExplanationDispatcher.
type recordingDispatcher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, changeID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, changeID)
	return d.err
}

func (d *recordingDispatcher) dispatched() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.ids...)
}

// failingChangeStore fails CreateChange after a number of successes.
type failingChangeStore struct {
	*memory.ChangeStore
	mu        sync.Mutex
	remaining int
	err       error
}

func (s *failingChangeStore) CreateChange(ctx context.Context, record *domain.ChangeRecord) error {
	s.mu.Lock()
	if s.remaining <= 0 {
		s.mu.Unlock()
		return s.err
	}
	s.remaining--
	s.mu.Unlock()
	return s.ChangeStore.CreateChange(ctx, record)
}

var (
	_ driven.FileLister            = (*fakeLister)(nil)
	_ driven.ExplanationDispatcher = (*recordingDispatcher)(nil)
	_ driven.ChangeStore           = (*failingChangeStore)(nil)
)

// classifierFixture wires a classifier to in-memory stores.
type classifierFixture struct {
	documents  *memory.DocumentStore
	versions   *memory.VersionStore
	changes    *memory.ChangeStore
	lister     *fakeLister
	dispatcher *recordingDispatcher
	classifier *Classifier
}

func newClassifierFixture() *classifierFixture {
	f := &classifierFixture{
		documents:  memory.NewDocumentStore(),
		versions:   memory.NewVersionStore(),
		changes:    memory.NewChangeStore(),
		lister:     newFakeLister(),
		dispatcher: &recordingDispatcher{},
	}
	f.classifier = NewClassifier(f.documents, f.versions, f.changes, f.lister, f.dispatcher, nil)
	return f
}

func (f *classifierFixture) classify(t *testing.T) ClassifyResult {
	t.Helper()
	result, err := f.classifier.Classify(context.Background(), "folder")
	require.NoError(t, err)
	return result
}

func (f *classifierFixture) records(t *testing.T) []domain.ChangeRecord {
	t.Helper()
	all, err := f.changes.ListChanges(context.Background(), 0)
	require.NoError(t, err)
	// Oldest first reads more naturally in assertions.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all
}

func (f *classifierFixture) document(t *testing.T, externalID string) *domain.Document {
	t.Helper()
	doc, err := f.documents.GetDocumentByExternalID(context.Background(), externalID)
	require.NoError(t, err)
	return doc
}

func countType(records []domain.ChangeRecord, changeType domain.ChangeType) int {
	n := 0
	for _, r := range records {
		if r.ChangeType == changeType {
			n++
		}
	}
	return n
}

var listedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func textFile(id, name, checksum string) domain.ListedFile {
	return domain.ListedFile{
		ExternalID:     id,
		Name:           name,
		MIMEType:       "text/plain",
		ModifiedTime:   listedAt,
		NativeChecksum: checksum,
	}
}

// ==================== Classifier Tests ====================

func TestClassifier_BaselineRun(t *testing.T) {
	f := newClassifierFixture()
	f.lister.put(textFile("a", "Alpha.txt", "aa"), "Alpha content")
	f.lister.put(textFile("b", "Beta.txt", "bb"), "Beta content")
	f.lister.put(textFile("c", "Gamma.txt", ""), "Gamma content")

	result := f.classify(t)

	assert.True(t, result.Baseline)
	assert.Equal(t, 3, result.DocumentsProcessed)
	assert.Equal(t, 1, result.ChangesDetected)

	records := f.records(t)
	require.Len(t, records, 1)
	baseline := records[0]
	assert.Equal(t, domain.ChangeBaseline, baseline.ChangeType)
	assert.Nil(t, baseline.DocumentID)
	assert.Equal(t, 3, baseline.Reason.BaselineDocCount)
	assert.Equal(t, domain.SeverityLow, baseline.Severity)
	assert.Zero(t, countType(records, domain.ChangeCreated))

	assert.Equal(t, 3, f.versions.Count())
	assert.Equal(t, []string{baseline.ID}, f.dispatcher.dispatched())

	assert.Equal(t, "md5:aa", f.document(t, "a").CurrentHash)
	assert.Equal(t, domain.ContentHash("Gamma content"), f.document(t, "c").CurrentHash)
}

func TestClassifier_EmptyBaselineEmitsNothing(t *testing.T) {
	f := newClassifierFixture()

	result := f.classify(t)

	assert.True(t, result.Baseline)
	assert.Zero(t, result.ChangesDetected)
	assert.Empty(t, f.records(t))
}

func TestClassifier_NewFileAfterBaseline(t *testing.T) {
	f := newClassifierFixture()
	f.lister.put(textFile("a", "Alpha.txt", "aa"), "Alpha content")
	f.classify(t)

	f.lister.put(textFile("b", "Beta.txt", "bb"), "Beta content")
	result := f.classify(t)

	assert.False(t, result.Baseline)
	assert.Equal(t, 2, result.DocumentsProcessed)
	assert.Equal(t, 1, result.ChangesDetected)

	records := f.records(t)
	require.Len(t, records, 2)
	created := records[1]
	assert.Equal(t, domain.ChangeCreated, created.ChangeType)
	assert.Equal(t, domain.SeverityMedium, created.Severity)
	assert.Equal(t, "Beta.txt", created.Reason.NewName)
	assert.False(t, created.Reason.Reappeared)
	require.NotNil(t, created.DocumentID)
	require.NotNil(t, created.NewVersionID)
	assert.Equal(t, f.document(t, "b").ID, *created.DocumentID)
	assert.Equal(t, f.document(t, "b").CurrentVersionID, *created.NewVersionID)
}

func TestClassifier_SameHashIgnoresModifiedTime(t *testing.T) {
	f := newClassifierFixture()
	f.lister.put(textFile("a", "Alpha.txt", "aa"), "Alpha content")
	f.classify(t)

	later := textFile("a", "Alpha.txt", "AA")
	later.ModifiedTime = listedAt.Add(48 * time.Hour)
	f.lister.put(later, "Alpha content")
	result := f.classify(t)

	assert.Zero(t, result.ChangesDetected)
	assert.Len(t, f.records(t), 1)
	assert.Equal(t, 1, f.lister.fetchCalls["a"], "unchanged native checksum needs no fetch")
	assert.True(t, f.document(t, "a").LastModified.Equal(later.ModifiedTime))
}

func TestClassifier_ContentHashWithoutNativeChecksum(t *testing.T) {
	f := newClassifierFixture()
	f.lister.put(textFile("a", "Alpha.txt", ""), "Alpha content")
	f.classify(t)

	result := f.classify(t)
	assert.Zero(t, result.ChangesDetected)

	f.lister.put(textFile("a", "Alpha.txt", ""), "Alpha content, revised")
	result = f.classify(t)
	assert.Equal(t, 1, result.ChangesDetected)

	records := f.records(t)
	modified := records[len(records)-1]
	assert.Equal(t, domain.ChangeModified, modified.ChangeType)
	assert.Equal(t, domain.ContentHash("Alpha content, revised"), modified.Reason.NewHash)
}

func TestClassifier_RenameAndModifyEmitTwoRecords(t *testing.T) {
	f := newClassifierFixture()
	f.lister.put(textFile("a", "Policy.txt", "aa"), "Old policy text")
	f.classify(t)
	original := f.document(t, "a")

	f.lister.put(textFile("a", "Policy v2.txt", "bb"), "New policy text")
	result := f.classify(t)

	assert.Equal(t, 2, result.ChangesDetected)
	records := f.records(t)
	require.Len(t, records, 3)

	renamed, modified := records[1], records[2]
	assert.Equal(t, domain.ChangeRenamed, renamed.ChangeType)
	assert.Equal(t, domain.SeverityLow, renamed.Severity)
	assert.Equal(t, "Policy.txt", renamed.Reason.OldName)
	assert.Equal(t, "Policy v2.txt", renamed.Reason.NewName)

	assert.Equal(t, domain.ChangeModified, modified.ChangeType)
	assert.Equal(t, domain.SeverityHigh, modified.Severity)
	require.NotNil(t, modified.PreviousVersionID)
	require.NotNil(t, modified.NewVersionID)
	assert.Equal(t, original.CurrentVersionID, *modified.PreviousVersionID)
	assert.True(t, modified.Reason.ContentChanged)
	assert.Equal(t, "md5:aa", modified.Reason.PreviousHash)
	assert.Equal(t, "md5:bb", modified.Reason.NewHash)

	newVersion, err := f.versions.GetVersion(context.Background(), *modified.NewVersionID)
	require.NoError(t, err)
	assert.Equal(t, "New policy text", newVersion.Content)
	assert.NotEqual(t, original.CurrentHash, newVersion.Hash)

	doc := f.document(t, "a")
	assert.Equal(t, "Policy v2.txt", doc.FileName)
	assert.Equal(t, *modified.NewVersionID, doc.CurrentVersionID)
	assert.Equal(t, "md5:bb", doc.CurrentHash)

	dispatched := f.dispatcher.dispatched()
	assert.Contains(t, dispatched, renamed.ID)
	assert.Contains(t, dispatched, modified.ID)
}

func TestClassifier_DeleteAndReappear(t *testing.T) {
	f := newClassifierFixture()
	f.lister.put(textFile("a", "Alpha.txt", "aa"), "Alpha content")
	f.lister.put(textFile("b", "Beta.txt", "bb"), "Beta content")
	f.classify(t)

	f.lister.remove("b")
	result := f.classify(t)
	assert.Equal(t, 1, result.ChangesDetected)

	records := f.records(t)
	deleted := records[len(records)-1]
	assert.Equal(t, domain.ChangeDeleted, deleted.ChangeType)
	assert.Equal(t, domain.SeverityMedium, deleted.Severity)
	assert.Equal(t, "Beta.txt", deleted.Reason.LastSeenName)
	require.NotNil(t, deleted.Reason.LastSeenModified)
	assert.True(t, deleted.Reason.LastSeenModified.Equal(listedAt))

	doc := f.document(t, "b")
	assert.True(t, doc.IsDeleted)
	require.NotNil(t, doc.DeletedAt)

	// Still absent: no second deleted record.
	result = f.classify(t)
	assert.Zero(t, result.ChangesDetected)

	f.lister.put(textFile("b", "Beta.txt", "bb"), "Beta content")
	result = f.classify(t)
	assert.Equal(t, 1, result.ChangesDetected)

	records = f.records(t)
	reappeared := records[len(records)-1]
	assert.Equal(t, domain.ChangeCreated, reappeared.ChangeType)
	assert.True(t, reappeared.Reason.Reappeared)
	assert.False(t, reappeared.Reason.ContentChanged)
	assert.Contains(t, reappeared.Summary, "reappeared")
	require.NotNil(t, reappeared.NewVersionID)
	assert.Equal(t, doc.CurrentVersionID, *reappeared.NewVersionID)

	doc = f.document(t, "b")
	assert.False(t, doc.IsDeleted)
	assert.Nil(t, doc.DeletedAt)
	assert.Equal(t, 1, countType(f.records(t), domain.ChangeDeleted))
}

func TestClassifier_ReappearWithNewContent(t *testing.T) {
	f := newClassifierFixture()
	f.lister.put(textFile("a", "Alpha.txt", "aa"), "Alpha content")
	f.lister.put(textFile("b", "Beta.txt", "bb"), "Beta content")
	f.classify(t)
	before := f.document(t, "b")

	f.lister.remove("b")
	f.classify(t)

	f.lister.put(textFile("b", "Beta.txt", "cc"), "Beta content, rewritten")
	f.classify(t)

	records := f.records(t)
	reappeared := records[len(records)-1]
	assert.True(t, reappeared.Reason.Reappeared)
	assert.True(t, reappeared.Reason.ContentChanged)
	require.NotNil(t, reappeared.PreviousVersionID)
	assert.Equal(t, before.CurrentVersionID, *reappeared.PreviousVersionID)

	doc := f.document(t, "b")
	assert.Equal(t, "md5:cc", doc.CurrentHash)
	assert.NotEqual(t, before.CurrentVersionID, doc.CurrentVersionID)
}

func TestClassifier_UnsupportedTypesSkipped(t *testing.T) {
	f := newClassifierFixture()
	f.lister.put(textFile("a", "Alpha.txt", "aa"), "Alpha content")
	f.lister.put(domain.ListedFile{ExternalID: "img", Name: "logo.png", MIMEType: "image/png"}, "")

	result := f.classify(t)

	assert.Equal(t, 1, result.DocumentsProcessed)
	_, err := f.documents.GetDocumentByExternalID(context.Background(), "img")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, f.lister.fetchCalls["img"])
}

func TestClassifier_ConfiguredMIMETypesNarrowSupport(t *testing.T) {
	f := newClassifierFixture()
	f.classifier = NewClassifier(f.documents, f.versions, f.changes, f.lister, nil, []string{"text/markdown"})
	f.lister.put(textFile("a", "Alpha.txt", "aa"), "Alpha content")
	f.lister.put(domain.ListedFile{ExternalID: "m", Name: "Notes.md", MIMEType: "text/markdown"}, "# Notes")

	result := f.classify(t)

	assert.Equal(t, 1, result.DocumentsProcessed)
	assert.Equal(t, "Notes.md", f.document(t, "m").FileName)
}

func TestClassifier_ExtractionFailureSkipsFile(t *testing.T) {
	f := newClassifierFixture()
	f.lister.put(textFile("a", "Alpha.txt", "aa"), "Alpha content")
	f.lister.put(textFile("b", "Beta.txt", "bb"), "Beta content")
	f.classify(t)

	f.lister.put(textFile("b", "Beta.txt", "b2"), "Beta content v2")
	f.lister.fetchErrs["b"] = errors.New("export timed out")
	f.lister.put(textFile("c", "Gamma.txt", "cc"), "Gamma content")

	result := f.classify(t)

	assert.Equal(t, 2, result.DocumentsProcessed, "the failed file is not counted")
	assert.Equal(t, 1, result.ChangesDetected)

	doc := f.document(t, "b")
	assert.False(t, doc.IsDeleted, "a listed file is never soft-deleted")
	assert.Equal(t, "md5:bb", doc.CurrentHash)
}

func TestClassifier_PersistenceFailureAbortsWithPartialProgress(t *testing.T) {
	f := newClassifierFixture()
	f.lister.put(textFile("a", "Alpha.txt", "aa"), "Alpha content")
	f.classify(t)

	failing := &failingChangeStore{ChangeStore: f.changes, remaining: 1, err: errors.New("disk full")}
	f.classifier = NewClassifier(f.documents, f.versions, failing, f.lister, f.dispatcher, nil)
	f.lister.put(textFile("b", "Beta.txt", "bb"), "Beta content")
	f.lister.put(textFile("c", "Gamma.txt", "cc"), "Gamma content")
	f.lister.put(textFile("d", "Delta.txt", "dd"), "Delta content")

	result, err := f.classifier.Classify(context.Background(), "folder")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, result.ChangesDetected)
	assert.Equal(t, 2, result.DocumentsProcessed)

	// Work committed before the failure stays committed.
	assert.Equal(t, "Beta.txt", f.document(t, "b").FileName)
	assert.Equal(t, "Gamma.txt", f.document(t, "c").FileName)
	_, err = f.documents.GetDocumentByExternalID(context.Background(), "d")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClassifier_ListFailure(t *testing.T) {
	f := newClassifierFixture()
	f.lister.listErr = errors.New("403 forbidden")

	_, err := f.classifier.Classify(context.Background(), "folder")

	require.Error(t, err)
	assert.Empty(t, f.records(t))
}

func TestClassifier_DispatchFailureKeepsRecord(t *testing.T) {
	f := newClassifierFixture()
	f.dispatcher.err = errors.New("redis down")
	f.lister.put(textFile("a", "Alpha.txt", "aa"), "Alpha content")

	result := f.classify(t)

	assert.Equal(t, 1, result.ChangesDetected)
	pending, err := f.changes.ListUnexplained(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestSupportedTypes(t *testing.T) {
	available := []string{"text/plain", "text/markdown", "application/pdf"}

	all := supportedTypes(available, nil)
	assert.Len(t, all, 3)

	narrowed := supportedTypes(available, []string{"application/pdf", "image/png"})
	assert.Equal(t, map[string]bool{"application/pdf": true}, narrowed)
}
