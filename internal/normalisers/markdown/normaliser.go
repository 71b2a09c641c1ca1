package markdown

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Extractor = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Extract returns the document with inline formatting removed.
// Heading markers and numbered list prefixes are kept so section titles
// and procedure steps stay recognisable.
func (n *Normaliser) Extract(_ context.Context, raw *domain.RawContent) (string, error) {
	if raw == nil {
		return "", domain.ErrInvalidInput
	}
	return stripMarkdown(string(raw.Content)), nil
}

var (
	codeFence     = regexp.MustCompile("(?m)^[ \\t]*(```|~~~).*$")
	inlineCode    = regexp.MustCompile("`([^`]+)`")
	images        = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	links         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	boldItalic    = regexp.MustCompile(`(\*{1,3}|_{2,3})([^*_\n]+)(\*{1,3}|_{2,3})`)
	blockquote    = regexp.MustCompile(`(?m)^>[ \t]?`)
	hr            = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$`)
	bulletMarkers = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`)
	trailingSpace = regexp.MustCompile(`(?m)[ \t]+$`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// stripMarkdown removes common markdown formatting.
func stripMarkdown(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	content = codeFence.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "$1")
	content = images.ReplaceAllString(content, "")
	content = links.ReplaceAllString(content, "$1")
	content = boldItalic.ReplaceAllString(content, "$2")
	content = blockquote.ReplaceAllString(content, "")
	content = hr.ReplaceAllString(content, "")
	content = bulletMarkers.ReplaceAllString(content, "")
	content = trailingSpace.ReplaceAllString(content, "")
	content = multiNewlines.ReplaceAllString(content, "\n\n")

	return strings.TrimSpace(content)
}
