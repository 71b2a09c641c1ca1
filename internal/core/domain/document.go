package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Document is a tracked file in the monitored storage location.
// The record is never hard-deleted; disappearance sets IsDeleted.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// ExternalID is the storage system's identifier for the file.
	// It is unique across all documents.
	ExternalID string

	// FileName is the current display name.
	FileName string

	// MIMEType is the content type reported by the storage listing.
	MIMEType string

	// LastModified is the modification time reported by the storage listing.
	LastModified time.Time

	// CurrentVersionID points at the most recent DocumentVersion.
	CurrentVersionID string

	// CurrentHash is the content hash of the current version.
	CurrentHash string

	// IsDeleted marks a document that disappeared from the listing.
	IsDeleted bool

	// DeletedAt is when the document was last soft-deleted.
	DeletedAt *time.Time

	// CreatedAt is when the document was first tracked.
	CreatedAt time.Time

	// UpdatedAt is when the document row last changed.
	UpdatedAt time.Time
}

// DocumentUpdate carries a partial update for a document.
// Nil fields are left untouched.
type DocumentUpdate struct {
	FileName         *string
	MIMEType         *string
	LastModified     *time.Time
	CurrentVersionID *string
	CurrentHash      *string

	// IsDeleted toggles the soft-delete flag. Clearing it also clears DeletedAt.
	IsDeleted *bool
	DeletedAt *time.Time
}

// IsEmpty reports whether the update changes nothing.
func (u DocumentUpdate) IsEmpty() bool {
	return u.FileName == nil && u.MIMEType == nil && u.LastModified == nil &&
		u.CurrentVersionID == nil && u.CurrentHash == nil && u.IsDeleted == nil && u.DeletedAt == nil
}

// Apply copies the set fields of u onto doc.
func (u DocumentUpdate) Apply(doc *Document) {
	if u.FileName != nil {
		doc.FileName = *u.FileName
	}
	if u.MIMEType != nil {
		doc.MIMEType = *u.MIMEType
	}
	if u.LastModified != nil {
		doc.LastModified = *u.LastModified
	}
	if u.CurrentVersionID != nil {
		doc.CurrentVersionID = *u.CurrentVersionID
	}
	if u.CurrentHash != nil {
		doc.CurrentHash = *u.CurrentHash
	}
	if u.IsDeleted != nil {
		doc.IsDeleted = *u.IsDeleted
		if !doc.IsDeleted {
			doc.DeletedAt = nil
		}
	}
	if u.DeletedAt != nil {
		t := *u.DeletedAt
		doc.DeletedAt = &t
	}
}

// DocumentVersion is an immutable snapshot of a document's extracted text.
type DocumentVersion struct {
	// ID is the unique identifier for the version.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Hash is the tagged content hash ("md5:<hex>" or "sha256:<hex>").
	Hash string

	// Content is the extracted text, or a placeholder when extraction
	// produced nothing useful.
	Content string

	// CreatedAt is when the version was captured.
	CreatedAt time.Time
}

// Hash algorithm tags used as prefixes in DocumentVersion.Hash.
const (
	HashAlgorithmMD5    = "md5"
	HashAlgorithmSHA256 = "sha256"
)

// NativeHash tags a checksum supplied by the storage system.
func NativeHash(algorithm, checksum string) string {
	return algorithm + ":" + strings.ToLower(checksum)
}

// ContentHash returns the tagged SHA-256 of extracted text.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return HashAlgorithmSHA256 + ":" + hex.EncodeToString(sum[:])
}

// placeholderPrefix starts every stored placeholder.
const placeholderPrefix = "[content unavailable"

// MinSubstantiveLength is the shortest trimmed text treated as real content.
const MinSubstantiveLength = 20

// PlaceholderContent builds the marker stored when no text could be extracted.
func PlaceholderContent(reason string) string {
	if reason == "" {
		return placeholderPrefix + "]"
	}
	return placeholderPrefix + ": " + reason + "]"
}

// IsPlaceholder reports whether content is a stored placeholder.
func IsPlaceholder(content string) bool {
	return strings.HasPrefix(strings.TrimSpace(content), placeholderPrefix)
}

// IsSubstantive reports whether content holds real extracted text.
func IsSubstantive(content string) bool {
	trimmed := strings.TrimSpace(content)
	return len(trimmed) >= MinSubstantiveLength && !IsPlaceholder(trimmed)
}
