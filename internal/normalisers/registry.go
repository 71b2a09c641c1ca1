package normalisers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
	"github.com/custodia-labs/changelens/internal/logger"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry selects the highest priority extractor for a MIME type.
// Extractors of equal priority are tried in registration order.
type Registry struct {
	mu         sync.RWMutex
	extractors []driven.Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an extractor to the registry.
func (r *Registry) Register(extractor driven.Extractor) {
	if extractor == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.extractors = append(r.extractors, extractor)
	sort.SliceStable(r.extractors, func(i, j int) bool {
		return r.extractors[i].Priority() > r.extractors[j].Priority()
	})
}

// Extract converts raw using the highest priority extractor for its MIME type.
func (r *Registry) Extract(ctx context.Context, raw *domain.RawContent) (string, error) {
	if raw == nil {
		return "", domain.ErrInvalidInput
	}

	extractor := r.lookup(raw.MIMEType)
	if extractor == nil {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedType, raw.MIMEType)
	}
	return extractor.Extract(ctx, raw)
}

// SupportedMIMETypes returns every MIME type some extractor handles, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var types []string
	for _, e := range r.extractors {
		for _, mt := range e.SupportedMIMETypes() {
			if _, ok := seen[mt]; ok {
				continue
			}
			seen[mt] = struct{}{}
			types = append(types, mt)
		}
	}
	sort.Strings(types)
	return types
}

func (r *Registry) lookup(mimeType string) driven.Extractor {
	mimeType = baseMIMEType(mimeType)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.extractors {
		for _, mt := range e.SupportedMIMETypes() {
			if mt == mimeType {
				return e
			}
		}
	}
	return nil
}

// baseMIMEType drops parameters such as "; charset=utf-8".
func baseMIMEType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// TextOrPlaceholder extracts raw through registry. When the payload is
// readable but yields no text, a placeholder naming the reason is returned
// instead of an error.
func TextOrPlaceholder(ctx context.Context, registry driven.ExtractorRegistry, raw *domain.RawContent) (string, error) {
	text, err := registry.Extract(ctx, raw)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "", fmt.Errorf("%w: %w", domain.ErrExtractionFailed, err)
	case errors.Is(err, domain.ErrUnsupportedType):
		return domain.PlaceholderContent("unsupported type " + raw.MIMEType), nil
	case err != nil:
		logger.Debug("Extraction of %s failed: %v", raw.Name, err)
		return domain.PlaceholderContent("could not read " + raw.MIMEType + " content"), nil
	case strings.TrimSpace(text) == "":
		return domain.PlaceholderContent("no text content"), nil
	}
	return text, nil
}
