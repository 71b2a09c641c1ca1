package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
	"github.com/custodia-labs/changelens/internal/logger"
)

// ClassifyResult counts what one classification pass did.
type ClassifyResult struct {
	DocumentsProcessed int
	ChangesDetected    int
	Baseline           bool
}

// Classifier compares a storage listing with the tracked documents and
// records the resulting changes.
type Classifier struct {
	documents  driven.DocumentStore
	versions   driven.VersionStore
	changes    driven.ChangeStore
	lister     driven.FileLister
	dispatcher driven.ExplanationDispatcher
	supported  map[string]bool

	now   func() time.Time
	newID func() string
}

// NewClassifier creates a classifier. Only files whose MIME type the lister
// supports are tracked; a non-empty mimeTypes narrows that set further.
// The dispatcher may be nil, in which case records are left for backfill.
func NewClassifier(
	documents driven.DocumentStore,
	versions driven.VersionStore,
	changes driven.ChangeStore,
	lister driven.FileLister,
	dispatcher driven.ExplanationDispatcher,
	mimeTypes []string,
) *Classifier {
	return &Classifier{
		documents:  documents,
		versions:   versions,
		changes:    changes,
		lister:     lister,
		dispatcher: dispatcher,
		supported:  supportedTypes(lister.SupportedMIMETypes(), mimeTypes),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

func supportedTypes(available, configured []string) map[string]bool {
	allowed := make(map[string]bool, len(configured))
	for _, t := range configured {
		allowed[t] = true
	}
	out := make(map[string]bool, len(available))
	for _, t := range available {
		if len(allowed) == 0 || allowed[t] {
			out[t] = true
		}
	}
	return out
}

// classifyPass holds the state of one Classify call.
type classifyPass struct {
	baseline bool
	result   ClassifyResult
}

// Classify lists location, reconciles the listing with stored state and
// emits one change record per detected change. Extraction failures skip
// the file. Persistence failures abort the pass and are returned together
// with the counts reached so far; nothing already written is undone.
func (c *Classifier) Classify(ctx context.Context, location string) (ClassifyResult, error) {
	// Evaluated once so the number of files processed in this pass cannot
	// change it.
	known, err := c.documents.CountDocuments(ctx)
	if err != nil {
		return ClassifyResult{}, fmt.Errorf("count documents: %w", err)
	}
	pass := &classifyPass{baseline: known == 0}
	pass.result.Baseline = pass.baseline

	files, err := c.lister.ListFiles(ctx, location)
	if err != nil {
		return pass.result, fmt.Errorf("list files: %w", err)
	}
	logger.Debug("Listed %d files under %s", len(files), location)

	listed := make(map[string]bool, len(files))
	for _, file := range files {
		listed[file.ExternalID] = true

		if !c.supported[file.MIMEType] {
			logger.Debug("Skipping %s: unsupported type %s", file.Name, file.MIMEType)
			continue
		}

		if err := c.processFile(ctx, pass, file); err != nil {
			if errors.Is(err, domain.ErrExtractionFailed) {
				logger.Warn("Skipping %s: %v", file.Name, err)
				continue
			}
			return pass.result, err
		}
		pass.result.DocumentsProcessed++
	}

	if err := c.detectDeletions(ctx, pass, listed); err != nil {
		return pass.result, err
	}

	if pass.baseline && pass.result.DocumentsProcessed > 0 {
		count := pass.result.DocumentsProcessed
		record := &domain.ChangeRecord{
			ChangeType: domain.ChangeBaseline,
			Summary:    fmt.Sprintf("Baseline established with %d documents", count),
			Reason:     domain.ChangeReason{BaselineDocCount: count},
		}
		if err := c.emit(ctx, pass, record); err != nil {
			return pass.result, err
		}
	}

	return pass.result, nil
}

// processFile reconciles one supported file with its stored document.
//
//nolint:gocyclo // One branch per document state; splitting hides the transitions.
func (c *Classifier) processFile(ctx context.Context, pass *classifyPass, file domain.ListedFile) error {
	doc, err := c.documents.GetDocumentByExternalID(ctx, file.ExternalID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("get document %s: %w", file.ExternalID, err)
	}

	if doc == nil {
		return c.track(ctx, pass, file)
	}

	hash := nativeHash(file)
	var content string
	fetched := false
	if hash == "" {
		if content, err = c.fetch(ctx, file); err != nil {
			return err
		}
		fetched = true
		hash = domain.ContentHash(content)
	}
	contentChanged := hash != doc.CurrentHash
	if contentChanged && !fetched {
		if content, err = c.fetch(ctx, file); err != nil {
			return err
		}
	}

	if doc.IsDeleted {
		return c.restore(ctx, pass, doc, file, hash, content, contentChanged)
	}

	if file.Name != doc.FileName {
		oldName := doc.FileName
		if err := c.documents.UpdateDocument(ctx, doc.ID, domain.DocumentUpdate{FileName: &file.Name}); err != nil {
			return fmt.Errorf("rename document %s: %w", doc.ID, err)
		}
		doc.FileName = file.Name
		record := &domain.ChangeRecord{
			DocumentID: ptr(doc.ID),
			ChangeType: domain.ChangeRenamed,
			Summary:    fmt.Sprintf("Document renamed from %q to %q", oldName, file.Name),
			Reason:     domain.ChangeReason{OldName: oldName, NewName: file.Name},
		}
		if err := c.emit(ctx, pass, record); err != nil {
			return err
		}
	}

	update := domain.DocumentUpdate{}
	if !file.ModifiedTime.IsZero() && !file.ModifiedTime.Equal(doc.LastModified) {
		update.LastModified = ptr(file.ModifiedTime)
	}
	if file.MIMEType != doc.MIMEType {
		update.MIMEType = ptr(file.MIMEType)
	}

	if !contentChanged {
		if update.IsEmpty() {
			return nil
		}
		if err := c.documents.UpdateDocument(ctx, doc.ID, update); err != nil {
			return fmt.Errorf("update document %s: %w", doc.ID, err)
		}
		return nil
	}

	version, err := c.createVersion(ctx, doc.ID, hash, content)
	if err != nil {
		return err
	}
	update.CurrentVersionID = ptr(version.ID)
	update.CurrentHash = ptr(hash)
	if err := c.documents.UpdateDocument(ctx, doc.ID, update); err != nil {
		return fmt.Errorf("update document %s: %w", doc.ID, err)
	}

	record := &domain.ChangeRecord{
		DocumentID:   ptr(doc.ID),
		NewVersionID: ptr(version.ID),
		ChangeType:   domain.ChangeModified,
		Summary:      fmt.Sprintf("Content of %q was modified", file.Name),
		Reason: domain.ChangeReason{
			ContentChanged: true,
			PreviousHash:   doc.CurrentHash,
			NewHash:        hash,
			NewName:        file.Name,
		},
	}
	if doc.CurrentVersionID != "" {
		record.PreviousVersionID = ptr(doc.CurrentVersionID)
	}
	return c.emit(ctx, pass, record)
}

// track starts tracking a file seen for the first time.
func (c *Classifier) track(ctx context.Context, pass *classifyPass, file domain.ListedFile) error {
	content, err := c.fetch(ctx, file)
	if err != nil {
		return err
	}
	hash := nativeHash(file)
	if hash == "" {
		hash = domain.ContentHash(content)
	}

	now := c.now()
	doc := &domain.Document{
		ID:               c.newID(),
		ExternalID:       file.ExternalID,
		FileName:         file.Name,
		MIMEType:         file.MIMEType,
		LastModified:     file.ModifiedTime,
		CurrentVersionID: c.newID(),
		CurrentHash:      hash,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := c.documents.CreateDocument(ctx, doc); err != nil {
		return fmt.Errorf("create document %s: %w", file.ExternalID, err)
	}

	version := &domain.DocumentVersion{
		ID:         doc.CurrentVersionID,
		DocumentID: doc.ID,
		Hash:       hash,
		Content:    content,
		CreatedAt:  now,
	}
	if err := c.versions.CreateVersion(ctx, version); err != nil {
		return fmt.Errorf("create version for %s: %w", doc.ID, err)
	}

	if pass.baseline {
		logger.Debug("Baseline: tracking %s", file.Name)
		return nil
	}

	record := &domain.ChangeRecord{
		DocumentID:   ptr(doc.ID),
		NewVersionID: ptr(version.ID),
		ChangeType:   domain.ChangeCreated,
		Summary:      fmt.Sprintf("New document %q was added", file.Name),
		Reason:       domain.ChangeReason{NewName: file.Name, NewHash: hash},
	}
	return c.emit(ctx, pass, record)
}

// restore clears the soft-delete flag of a document that is listed again.
func (c *Classifier) restore(
	ctx context.Context,
	pass *classifyPass,
	doc *domain.Document,
	file domain.ListedFile,
	hash, content string,
	contentChanged bool,
) error {
	update := domain.DocumentUpdate{
		FileName:  ptr(file.Name),
		MIMEType:  ptr(file.MIMEType),
		IsDeleted: ptr(false),
	}
	if !file.ModifiedTime.IsZero() {
		update.LastModified = ptr(file.ModifiedTime)
	}

	versionID := doc.CurrentVersionID
	if contentChanged {
		version, err := c.createVersion(ctx, doc.ID, hash, content)
		if err != nil {
			return err
		}
		versionID = version.ID
		update.CurrentVersionID = ptr(version.ID)
		update.CurrentHash = ptr(hash)
	}

	if err := c.documents.UpdateDocument(ctx, doc.ID, update); err != nil {
		return fmt.Errorf("restore document %s: %w", doc.ID, err)
	}

	if pass.baseline {
		return nil
	}

	record := &domain.ChangeRecord{
		DocumentID: ptr(doc.ID),
		ChangeType: domain.ChangeCreated,
		Summary:    fmt.Sprintf("Document %q reappeared after being removed", file.Name),
		Reason: domain.ChangeReason{
			NewName:        file.Name,
			NewHash:        hash,
			Reappeared:     true,
			ContentChanged: contentChanged,
		},
	}
	if contentChanged {
		record.Reason.PreviousHash = doc.CurrentHash
		if doc.CurrentVersionID != "" {
			record.PreviousVersionID = ptr(doc.CurrentVersionID)
		}
	}
	if versionID != "" {
		record.NewVersionID = ptr(versionID)
	}
	return c.emit(ctx, pass, record)
}

// detectDeletions soft-deletes active documents missing from the listing.
func (c *Classifier) detectDeletions(ctx context.Context, pass *classifyPass, listed map[string]bool) error {
	active, err := c.documents.ListActiveDocuments(ctx)
	if err != nil {
		return fmt.Errorf("list active documents: %w", err)
	}

	for i := range active {
		doc := active[i]
		if listed[doc.ExternalID] {
			continue
		}

		now := c.now()
		update := domain.DocumentUpdate{IsDeleted: ptr(true), DeletedAt: ptr(now)}
		if err := c.documents.UpdateDocument(ctx, doc.ID, update); err != nil {
			return fmt.Errorf("soft-delete document %s: %w", doc.ID, err)
		}

		reason := domain.ChangeReason{LastSeenName: doc.FileName}
		if !doc.LastModified.IsZero() {
			reason.LastSeenModified = ptr(doc.LastModified)
		}
		record := &domain.ChangeRecord{
			DocumentID: ptr(doc.ID),
			ChangeType: domain.ChangeDeleted,
			Summary:    fmt.Sprintf("Document %q was removed", doc.FileName),
			Reason:     reason,
		}
		if doc.CurrentVersionID != "" {
			record.PreviousVersionID = ptr(doc.CurrentVersionID)
		}
		if err := c.emit(ctx, pass, record); err != nil {
			return err
		}
	}
	return nil
}

func (c *Classifier) createVersion(ctx context.Context, documentID, hash, content string) (*domain.DocumentVersion, error) {
	version := &domain.DocumentVersion{
		ID:         c.newID(),
		DocumentID: documentID,
		Hash:       hash,
		Content:    content,
		CreatedAt:  c.now(),
	}
	if err := c.versions.CreateVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("create version for %s: %w", documentID, err)
	}
	return version, nil
}

func (c *Classifier) fetch(ctx context.Context, file domain.ListedFile) (string, error) {
	content, err := c.lister.FetchContent(ctx, file)
	if err != nil {
		if errors.Is(err, domain.ErrExtractionFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %w", domain.ErrExtractionFailed, file.Name, err)
	}
	return content, nil
}

// emit stores a record and hands it to the dispatcher. Dispatch failures
// are logged; the record stays unexplained and backfill picks it up.
func (c *Classifier) emit(ctx context.Context, pass *classifyPass, record *domain.ChangeRecord) error {
	record.ID = c.newID()
	record.DetectedAt = c.now()
	record.Severity = domain.SeverityFor(record.ChangeType)

	if err := record.Validate(); err != nil {
		return fmt.Errorf("build %s record: %w", record.ChangeType, err)
	}
	if err := c.changes.CreateChange(ctx, record); err != nil {
		return fmt.Errorf("create %s record: %w", record.ChangeType, err)
	}
	pass.result.ChangesDetected++
	logger.Info("%s", record.Summary)

	if c.dispatcher == nil {
		return nil
	}
	if err := c.dispatcher.Dispatch(ctx, record.ID); err != nil {
		logger.Warn("Failed to dispatch explanation for %s: %v", record.ID, err)
	}
	return nil
}

func nativeHash(file domain.ListedFile) string {
	if file.NativeChecksum == "" {
		return ""
	}
	return domain.NativeHash(domain.HashAlgorithmMD5, file.NativeChecksum)
}

func ptr[T any](v T) *T {
	return &v
}
