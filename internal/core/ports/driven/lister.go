package driven

import (
	"context"

	"github.com/custodia-labs/changelens/internal/core/domain"
)

// FileLister lists files under a storage location and fetches their text.
// Recursion into sub-folders is the lister's job; callers receive a flat list.
type FileLister interface {
	// ListFiles returns every file under location, sub-folders flattened.
	ListFiles(ctx context.Context, location string) ([]domain.ListedFile, error)

	// FetchContent returns the extracted text of a file. When no text can be
	// produced but the file itself is readable, a placeholder built with
	// domain.PlaceholderContent is returned instead of an error.
	// Errors wrap domain.ErrExtractionFailed.
	FetchContent(ctx context.Context, file domain.ListedFile) (string, error)

	// SupportedMIMETypes returns the content types FetchContent can handle.
	SupportedMIMETypes() []string
}
