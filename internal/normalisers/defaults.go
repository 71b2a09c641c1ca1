package normalisers

import (
	"github.com/custodia-labs/changelens/internal/normalisers/docx"
	"github.com/custodia-labs/changelens/internal/normalisers/html"
	"github.com/custodia-labs/changelens/internal/normalisers/markdown"
	"github.com/custodia-labs/changelens/internal/normalisers/pdf"
	"github.com/custodia-labs/changelens/internal/normalisers/plaintext"
)

// NewDefaultRegistry returns a registry holding every built-in extractor.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	r.Register(pdf.New())
	return r
}
