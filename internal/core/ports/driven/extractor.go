package driven

import (
	"context"

	"github.com/custodia-labs/changelens/internal/core/domain"
)

// Extractor turns raw bytes of specific MIME types into plain text.
type Extractor interface {
	// SupportedMIMETypes returns the MIME types this extractor handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific extractors should return 50-89.
	// Fallback extractors should return 1-9.
	Priority() int

	// Extract returns the text content of raw.
	Extract(ctx context.Context, raw *domain.RawContent) (string, error)
}

// ExtractorRegistry selects the appropriate extractor for a payload.
type ExtractorRegistry interface {
	// Extract converts raw using the highest priority matching extractor.
	// Returns domain.ErrUnsupportedType when nothing matches.
	Extract(ctx context.Context, raw *domain.RawContent) (string, error)

	// Register adds an extractor to the registry.
	Register(extractor Extractor)

	// SupportedMIMETypes returns all MIME types that can be extracted.
	SupportedMIMETypes() []string
}
