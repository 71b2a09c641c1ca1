package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/changelens/internal/connectors/google"
	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
	"github.com/custodia-labs/changelens/internal/logger"
	"github.com/custodia-labs/changelens/internal/normalisers"
)

// Ensure Lister implements the interface.
var _ driven.FileLister = (*Lister)(nil)

// Google Workspace MIME types.
const (
	MimeTypeGoogleDoc    = "application/vnd.google-apps.document"
	MimeTypeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypeGoogleSlides = "application/vnd.google-apps.presentation"
	MimeTypeFolder       = "application/vnd.google-apps.folder"
	mimeTypeGoogleApps   = "application/vnd.google-apps."
)

// Export formats for Google Workspace files.
const (
	ExportMimeText = "text/plain"
	ExportMimeCSV  = "text/csv"
)

// MaxExportSize is the maximum size for downloaded or exported content (5MB).
const MaxExportSize = 5 * 1024 * 1024

// exportFormats maps exportable Workspace types to the format requested.
var exportFormats = map[string]string{
	MimeTypeGoogleDoc:    ExportMimeText,
	MimeTypeGoogleSheet:  ExportMimeCSV,
	MimeTypeGoogleSlides: ExportMimeText,
}

const listFields = "nextPageToken, files(id, name, mimeType, modifiedTime, md5Checksum, size)"

// Lister lists the files of a Drive folder tree and fetches their text.
type Lister struct {
	svc      *drive.Service
	registry driven.ExtractorRegistry
	limiter  *google.RateLimiter
	cfg      Config
}

// NewLister creates a lister over svc that extracts binary files through registry.
func NewLister(svc *drive.Service, registry driven.ExtractorRegistry, cfg Config) *Lister {
	cfg = cfg.withDefaults()
	return &Lister{
		svc:      svc,
		registry: registry,
		limiter:  google.NewRateLimiter(cfg.RateLimit),
		cfg:      cfg,
	}
}

// SupportedMIMETypes returns the exportable Workspace types plus every
// type the extractor registry can read.
func (l *Lister) SupportedMIMETypes() []string {
	types := []string{MimeTypeGoogleDoc, MimeTypeGoogleSheet, MimeTypeGoogleSlides}
	return append(types, l.registry.SupportedMIMETypes()...)
}

// ListFiles returns every non-folder file below the folder named by
// location, sub-folders flattened. location may be a folder ID or URL.
func (l *Lister) ListFiles(ctx context.Context, location string) ([]domain.ListedFile, error) {
	rootID := ParseFolderID(location)
	if rootID == "" {
		return nil, fmt.Errorf("%w: %q is not a Drive folder ID or URL", domain.ErrInvalidInput, location)
	}

	var (
		files   []domain.ListedFile
		queue   = []string{rootID}
		visited = map[string]bool{rootID: true}
	)
	for len(queue) > 0 {
		folderID := queue[0]
		queue = queue[1:]

		children, err := l.listFolder(ctx, folderID)
		if err != nil {
			return nil, listError(folderID, err)
		}
		for _, f := range children {
			if f.MimeType == MimeTypeFolder {
				if !visited[f.Id] {
					visited[f.Id] = true
					queue = append(queue, f.Id)
				}
				continue
			}
			files = append(files, toListedFile(f))
		}
	}

	logger.Debug("Drive folder %s: %d files in %d folders", rootID, len(files), len(visited))
	return files, nil
}

// listError explains access failures. A rejected token is reported as
// domain.ErrAuthRequired so the run tells the user to sign in again.
func listError(folderID string, err error) error {
	switch {
	case google.IsUnauthorized(err):
		return fmt.Errorf("%w: list folder %s: %w", domain.ErrAuthRequired, folderID, err)
	case google.IsForbidden(err):
		return fmt.Errorf("list folder %s: the signed-in account cannot read it: %w", folderID, err)
	case google.IsNotFound(err):
		return fmt.Errorf("list folder %s: no such folder, check source.location: %w", folderID, err)
	default:
		return fmt.Errorf("list folder %s: %w", folderID, err)
	}
}

// listFolder returns the direct, non-trashed children of a folder.
func (l *Lister) listFolder(ctx context.Context, folderID string) ([]*drive.File, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", folderID)

	var (
		out       []*drive.File
		pageToken string
	)
	for {
		call := l.svc.Files.List().
			Q(query).
			Fields(listFields).
			PageSize(l.cfg.PageSize).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		var page *drive.FileList
		err := l.do(ctx, func() error {
			var err error
			page, err = call.Context(ctx).Do()
			return err
		})
		if err != nil {
			return nil, err
		}

		out = append(out, page.Files...)
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

// FetchContent exports Workspace files as text and downloads everything
// else for extraction. Unexportable Workspace types and oversized files
// yield a placeholder.
func (l *Lister) FetchContent(ctx context.Context, file domain.ListedFile) (string, error) {
	if format, ok := exportFormats[file.MIMEType]; ok {
		data, err := l.read(ctx, func() (*http.Response, error) {
			return l.svc.Files.Export(file.ExternalID, format).Context(ctx).Download()
		})
		if err != nil {
			return "", fmt.Errorf("%w: export %s: %w", domain.ErrExtractionFailed, file.Name, err)
		}
		return l.extract(ctx, file, format, data)
	}

	if strings.HasPrefix(file.MIMEType, mimeTypeGoogleApps) {
		return domain.PlaceholderContent("cannot export " + file.MIMEType), nil
	}
	if file.Size > l.cfg.MaxDownloadSize {
		return domain.PlaceholderContent(fmt.Sprintf("file larger than %d bytes", l.cfg.MaxDownloadSize)), nil
	}

	data, err := l.read(ctx, func() (*http.Response, error) {
		return l.svc.Files.Get(file.ExternalID).SupportsAllDrives(true).Context(ctx).Download()
	})
	if err != nil {
		return "", fmt.Errorf("%w: download %s: %w", domain.ErrExtractionFailed, file.Name, err)
	}
	return l.extract(ctx, file, file.MIMEType, data)
}

func (l *Lister) extract(ctx context.Context, file domain.ListedFile, mimeType string, data []byte) (string, error) {
	return normalisers.TextOrPlaceholder(ctx, l.registry, &domain.RawContent{
		ExternalID: file.ExternalID,
		Name:       file.Name,
		MIMEType:   mimeType,
		Content:    data,
	})
}

// read performs a media request and reads at most MaxDownloadSize bytes.
func (l *Lister) read(ctx context.Context, download func() (*http.Response, error)) ([]byte, error) {
	var data []byte
	err := l.do(ctx, func() error {
		resp, err := download()
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err = io.ReadAll(io.LimitReader(resp.Body, l.cfg.MaxDownloadSize))
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	})
	return data, err
}

// do runs call under the rate limiter, retrying throttled calls.
func (l *Lister) do(ctx context.Context, call func() error) error {
	for attempt := 0; ; attempt++ {
		if err := l.limiter.Wait(ctx); err != nil {
			return err
		}

		err := call()
		if err == nil {
			return nil
		}
		if !google.IsRateLimited(err) || attempt >= l.cfg.MaxRetries {
			return google.WrapError(err)
		}

		wait := retryAfter(err)
		logger.Warn("Drive API throttled, retrying in %s", wait)
		l.limiter.Backoff(wait)
	}
}

// retryAfter reads the Retry-After header of a throttled response.
func retryAfter(err error) time.Duration {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Header != nil {
		if secs, convErr := strconv.Atoi(gerr.Header.Get("Retry-After")); convErr == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return google.DefaultBackoff
}

func toListedFile(f *drive.File) domain.ListedFile {
	modified, err := time.Parse(time.RFC3339, f.ModifiedTime)
	if err != nil {
		modified = time.Time{}
	}
	return domain.ListedFile{
		ExternalID:     f.Id,
		Name:           f.Name,
		MIMEType:       f.MimeType,
		ModifiedTime:   modified.UTC(),
		NativeChecksum: f.Md5Checksum,
		Size:           f.Size,
	}
}
