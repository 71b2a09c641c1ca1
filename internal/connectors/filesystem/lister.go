package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
	"github.com/custodia-labs/changelens/internal/normalisers"
)

// Ensure Lister implements the interface.
var _ driven.FileLister = (*Lister)(nil)

// DefaultMaxFileSize is the largest file whose content is read (20MB).
const DefaultMaxFileSize = 20 * 1024 * 1024

// Lister lists and reads documents under a local folder.
type Lister struct {
	registry    driven.ExtractorRegistry
	maxFileSize int64
}

// New creates a lister that extracts text through registry.
func New(registry driven.ExtractorRegistry) *Lister {
	return &Lister{
		registry:    registry,
		maxFileSize: DefaultMaxFileSize,
	}
}

// SupportedMIMETypes returns the types the extractor registry can read.
func (l *Lister) SupportedMIMETypes() []string {
	return l.registry.SupportedMIMETypes()
}

// Validate checks that root is an existing directory.
func Validate(ctx context.Context, root string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if root == "" {
		return fmt.Errorf("%w: folder path is required", domain.ErrInvalidInput)
	}

	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("folder %s does not exist", root)
		}
		return fmt.Errorf("cannot access folder %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}
	return nil
}

// ListFiles walks location recursively and returns every regular,
// non-hidden file.
func (l *Lister) ListFiles(ctx context.Context, location string) ([]domain.ListedFile, error) {
	if err := Validate(ctx, location); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(location)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", location, err)
	}

	var files []domain.ListedFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			// Unreadable sub-trees are skipped, the root itself is not.
			if path == root {
				return walkErr
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel != "." && isHidden(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, domain.ListedFile{
			ExternalID:   path,
			Name:         filepath.ToSlash(rel),
			MIMEType:     detectMIMEType(path),
			ModifiedTime: info.ModTime().UTC(),
			Size:         info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

// FetchContent reads the file and extracts its text. Files over the size
// limit or without readable text yield a placeholder.
func (l *Lister) FetchContent(ctx context.Context, file domain.ListedFile) (string, error) {
	info, err := os.Stat(file.ExternalID)
	if err != nil {
		return "", fmt.Errorf("%w: stat %s: %w", domain.ErrExtractionFailed, file.Name, err)
	}
	if info.Size() > l.maxFileSize {
		return domain.PlaceholderContent(fmt.Sprintf("file larger than %d bytes", l.maxFileSize)), nil
	}

	data, err := os.ReadFile(file.ExternalID)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %w", domain.ErrExtractionFailed, file.Name, err)
	}

	mimeType := file.MIMEType
	if mimeType == "" {
		mimeType = detectMIMEType(file.ExternalID)
	}
	return normalisers.TextOrPlaceholder(ctx, l.registry, &domain.RawContent{
		ExternalID: file.ExternalID,
		Name:       file.Name,
		MIMEType:   mimeType,
		Content:    data,
	})
}
