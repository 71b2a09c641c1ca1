package services

import (
	"github.com/custodia-labs/changelens/internal/core/diff"
	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/requirements"
)

// ChangeAnalyzer runs the diff engine and the requirement extractor
// over two revisions of a document.
type ChangeAnalyzer struct {
	engine    *diff.Engine
	extractor *requirements.Extractor
}

// NewChangeAnalyzer creates an analyzer over a vocabulary. A maxChunks
// of zero or less uses the engine default.
func NewChangeAnalyzer(vocab domain.Vocabulary, maxChunks int) *ChangeAnalyzer {
	return &ChangeAnalyzer{
		engine:    diff.NewEngine(vocab.HighRiskPhrases, maxChunks),
		extractor: requirements.NewExtractor(vocab),
	}
}

// Analyze diffs previous against next and extracts requirements from the
// prioritised chunks. Requirements are only computed after the chunk set
// has been capped.
func (a *ChangeAnalyzer) Analyze(fileName, previous, next string) domain.DiffResult {
	result := a.engine.Diff(previous, next)
	result.IsProcedural = requirements.IsProcedural(fileName, next)
	result.Requirements = a.extractor.Extract(result.Chunks)
	return result
}

// Detect returns the high-risk phrases found in text.
func (a *ChangeAnalyzer) Detect(text string) []string {
	return a.engine.Detect(text)
}

// MaxChunks returns the chunk cap in effect.
func (a *ChangeAnalyzer) MaxChunks() int {
	return a.engine.MaxChunks()
}
