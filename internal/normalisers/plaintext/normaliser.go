package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Extractor = (*Normaliser)(nil)

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/csv",
		"text/tab-separated-values",
		"text/yaml",
		"text/toml",
		"text/rtf",
		"application/json",
		"application/xml",
		"text/xml",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Extract returns the content as text with line endings normalised to "\n".
// Payloads containing NUL bytes are treated as binary and rejected.
func (n *Normaliser) Extract(_ context.Context, raw *domain.RawContent) (string, error) {
	if raw == nil {
		return "", domain.ErrInvalidInput
	}
	if bytes.IndexByte(raw.Content, 0) >= 0 {
		return "", fmt.Errorf("%w: %s looks binary", domain.ErrExtractionFailed, raw.Name)
	}
	return Clean(string(raw.Content)), nil
}

// Clean strips a UTF-8 byte order mark, replaces invalid UTF-8, and
// normalises CRLF and CR line endings.
func Clean(text string) string {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ToValidUTF8(text, "\ufffd")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text)
}
