package domain

import "time"

// ListedFile is one entry of a flattened storage listing.
type ListedFile struct {
	// ExternalID is the storage system's stable identifier.
	ExternalID string

	// Name is the display name.
	Name string

	// MIMEType is the content type reported by the storage system.
	MIMEType string

	// ModifiedTime is the last modification time reported by the storage system.
	ModifiedTime time.Time

	// NativeChecksum is an MD5 checksum supplied by the storage system.
	// Empty when the storage system has none for this file.
	NativeChecksum string

	// Size is the byte size, when known.
	Size int64
}

// RawContent is the opaque byte payload fetched for a listed file.
// It is the lister's output before text extraction.
type RawContent struct {
	// ExternalID identifies the file the bytes came from.
	ExternalID string

	// Name is the file's display name.
	Name string

	// MIMEType is the content type of Content, which may differ from the
	// listed type when the storage system exports to another format.
	MIMEType string

	// Content is the raw bytes.
	Content []byte
}
