package domain

// ChunkType is the kind of a coalesced paragraph difference.
type ChunkType string

// Chunk types.
const (
	ChunkAdded    ChunkType = "added"
	ChunkRemoved  ChunkType = "removed"
	ChunkModified ChunkType = "modified"
)

// DiffChunk is one coalesced paragraph-level difference.
type DiffChunk struct {
	// Type is the kind of difference.
	Type ChunkType

	// Before is the full removed paragraph (removed, modified).
	Before string

	// After is the full added paragraph (added, modified).
	After string

	// BeforeExcerpt and AfterExcerpt are word-truncated for display.
	BeforeExcerpt string
	AfterExcerpt  string

	// Location is the nearest heading above the paragraph, or empty.
	Location string

	// HighRiskPhrases are the phrases found in this chunk's new text.
	HighRiskPhrases []string
}

// IsHighRisk reports whether the chunk introduced a high-risk phrase.
func (c DiffChunk) IsHighRisk() bool {
	return len(c.HighRiskPhrases) > 0
}

// DiffSummary counts chunks per type before any truncation.
type DiffSummary struct {
	Added    int
	Removed  int
	Modified int
}

// Total returns the number of chunks counted.
func (s DiffSummary) Total() int {
	return s.Added + s.Removed + s.Modified
}

// DiffResult is the prioritised, capped difference between two contents.
type DiffResult struct {
	Chunks             []DiffChunk
	Summary            DiffSummary
	HighRiskPhrases    []string
	HasHighRiskChanges bool
	IsProcedural       bool
	Requirements       []RequirementStatement
}

// IsEmpty reports whether no textual difference was found.
func (r *DiffResult) IsEmpty() bool {
	return len(r.Chunks) == 0
}

// RequirementCategory classifies an extracted requirement.
type RequirementCategory string

// Requirement categories.
const (
	RequirementStep           RequirementCategory = "step"
	RequirementObligation     RequirementCategory = "obligation"
	RequirementSystem         RequirementCategory = "system"
	RequirementTraining       RequirementCategory = "training"
	RequirementStorage        RequirementCategory = "storage"
	RequirementResponsibility RequirementCategory = "responsibility"
)

// RequirementStatement is a sentence that introduces a new obligation.
type RequirementStatement struct {
	Text      string
	Before    string
	After     string
	Category  RequirementCategory
	AppliesTo string
	Location  string
	IsNew     bool
}
