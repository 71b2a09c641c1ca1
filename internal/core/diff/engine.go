package diff

import (
	"sort"
	"strings"

	"github.com/custodia-labs/changelens/internal/core/domain"
)

// Engine computes paragraph diffs against a fixed high-risk vocabulary.
type Engine struct {
	phrases   []string
	maxChunks int
}

// NewEngine creates a diff engine. A non-positive maxChunks uses
// domain.DefaultMaxChunks.
func NewEngine(highRiskPhrases []string, maxChunks int) *Engine {
	if maxChunks <= 0 {
		maxChunks = domain.DefaultMaxChunks
	}
	phrases := make([]string, 0, len(highRiskPhrases))
	for _, p := range highRiskPhrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			phrases = append(phrases, p)
		}
	}
	return &Engine{phrases: phrases, maxChunks: maxChunks}
}

// MaxChunks returns the chunk cap applied by Diff.
func (e *Engine) MaxChunks() int {
	return e.maxChunks
}

// Diff returns the prioritised, capped chunks between previous and next.
// Requirements and IsProcedural are left for the caller to fill.
func (e *Engine) Diff(previous, next string) domain.DiffResult {
	ops := EditScript(SplitParagraphs(previous), SplitParagraphs(next))
	chunks := coalesce(ops)

	result := domain.DiffResult{}
	seen := make(map[string]bool)
	for i := range chunks {
		c := &chunks[i]
		switch c.Type {
		case domain.ChunkAdded:
			result.Summary.Added++
			c.Location = locate(next, c.After)
		case domain.ChunkRemoved:
			result.Summary.Removed++
			c.Location = locate(previous, c.Before)
		case domain.ChunkModified:
			result.Summary.Modified++
			c.Location = locate(next, c.After)
		}
		c.BeforeExcerpt = Excerpt(c.Before)
		c.AfterExcerpt = Excerpt(c.After)
		c.HighRiskPhrases = e.Detect(riskText(*c))

		for _, p := range c.HighRiskPhrases {
			if !seen[p] {
				seen[p] = true
				result.HighRiskPhrases = append(result.HighRiskPhrases, p)
			}
		}
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].IsHighRisk() && !chunks[j].IsHighRisk()
	})
	if len(chunks) > e.maxChunks {
		chunks = chunks[:e.maxChunks]
	}

	result.Chunks = chunks
	result.HasHighRiskChanges = len(result.HighRiskPhrases) > 0
	return result
}

// Detect returns the phrases found in text, in vocabulary order.
func (e *Engine) Detect(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var found []string
	for _, p := range e.phrases {
		if strings.Contains(lower, p) {
			found = append(found, p)
		}
	}
	return found
}

// riskText returns the text a chunk introduced.
func riskText(c domain.DiffChunk) string {
	switch c.Type {
	case domain.ChunkAdded:
		return c.After
	case domain.ChunkModified:
		if delta, ok := insertedText(c.Before, c.After); ok {
			return delta
		}
		return c.After
	default:
		return ""
	}
}

// coalesce merges each removed operation immediately followed by an added
// one into a modified chunk and drops unchanged paragraphs.
func coalesce(ops []Op) []domain.DiffChunk {
	var chunks []domain.DiffChunk
	for i := 0; i < len(ops); i++ {
		op := ops[i]
		switch op.Kind {
		case OpRemoved:
			if i+1 < len(ops) && ops[i+1].Kind == OpAdded {
				chunks = append(chunks, domain.DiffChunk{
					Type:   domain.ChunkModified,
					Before: op.Text,
					After:  ops[i+1].Text,
				})
				i++
				continue
			}
			chunks = append(chunks, domain.DiffChunk{Type: domain.ChunkRemoved, Before: op.Text})
		case OpAdded:
			chunks = append(chunks, domain.DiffChunk{Type: domain.ChunkAdded, After: op.Text})
		}
	}
	return chunks
}
