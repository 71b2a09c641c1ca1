package requirements

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/changelens/internal/core/domain"
)

var (
	stepPattern = regexp.MustCompile(`(?i)^\s*(?:step\s+\d+|\d+[.)]\s)|\bstep\s+\d+\b`)

	facingPattern = regexp.MustCompile(
		`(?i)\b[a-z]+(?:\s+[a-z]+)?-facing\s+(?:representatives|staff|employees|agents|teams?|personnel)\b`)
	assignedPattern = regexp.MustCompile(
		`(?i)\b(?:responsible for|assigned to)\s+((?:the\s+)?[a-z][a-z-]*(?:\s+[a-z][a-z-]*){0,3})`)

	sopWord        = regexp.MustCompile(`(?i)(?:^|[^a-z])sop(?:[^a-z]|$)`)
	stepWord       = regexp.MustCompile(`(?i)\bstep\s+\d+\b`)
	numberedLine   = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+[A-Z]`)
	procedureWords = []string{"standard operating procedure", "procedure"}
)

// Extractor turns diff chunks into requirement statements.
type Extractor struct {
	obligation     *regexp.Regexp
	system         *regexp.Regexp
	training       *regexp.Regexp
	storage        *regexp.Regexp
	responsibility *regexp.Regexp
	roles          *regexp.Regexp
	allRole        *regexp.Regexp
}

// NewExtractor compiles the vocabulary into matchers.
func NewExtractor(vocab domain.Vocabulary) *Extractor {
	roleAlt := alternation(vocab.RoleNouns)
	if roleAlt == "" {
		roleAlt = `[a-z-]+s`
	} else {
		roleAlt += `|[a-z-]+s`
	}
	return &Extractor{
		obligation:     termMatcher(vocab.ObligationTerms),
		system:         termMatcher(vocab.SystemTerms),
		training:       termMatcher(vocab.TrainingTerms),
		storage:        termMatcher(vocab.StorageTerms),
		responsibility: termMatcher(vocab.ResponsibilityTerms),
		roles:          termMatcher(vocab.RoleNouns),
		allRole:        regexp.MustCompile(`(?i)\ball\s+((?:[a-z-]+\s+){0,2}?(?:` + roleAlt + `))\b`),
	}
}

func alternation(terms []string) string {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(t)))
		}
	}
	return strings.Join(quoted, "|")
}

// termMatcher builds a case-insensitive whole-word matcher, or nil for an
// empty list.
func termMatcher(terms []string) *regexp.Regexp {
	alt := alternation(terms)
	if alt == "" {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(?:` + alt + `)\b`)
}

func matches(re *regexp.Regexp, s string) bool {
	return re != nil && re.MatchString(s)
}

// Extract returns the requirement statements introduced by chunks.
// Removed chunks contribute nothing. For modified chunks a sentence that
// already appeared verbatim in the previous text is not new.
func (e *Extractor) Extract(chunks []domain.DiffChunk) []domain.RequirementStatement {
	var out []domain.RequirementStatement
	seen := make(map[string]bool)

	for _, c := range chunks {
		if c.Type == domain.ChunkRemoved {
			continue
		}

		existing := make(map[string]bool)
		if c.Type == domain.ChunkModified {
			for _, s := range SplitSentences(c.Before) {
				existing[normalize(s)] = true
			}
		}

		for _, sentence := range SplitSentences(c.After) {
			key := normalize(sentence)
			if existing[key] || seen[key] || !e.IsRequirement(sentence) {
				continue
			}
			seen[key] = true

			stmt := domain.RequirementStatement{
				Text:      sentence,
				After:     c.AfterExcerpt,
				Category:  e.Categorize(sentence),
				AppliesTo: e.AppliesTo(sentence),
				Location:  c.Location,
				IsNew:     c.Type == domain.ChunkAdded,
			}
			if c.Type == domain.ChunkModified {
				stmt.Before = c.BeforeExcerpt
			}
			out = append(out, stmt)
		}
	}
	return out
}

// IsRequirement reports whether a sentence carries an obligation, a
// system reference, or a training or storage reference.
func (e *Extractor) IsRequirement(sentence string) bool {
	return matches(e.obligation, sentence) ||
		matches(e.system, sentence) ||
		matches(e.training, sentence) ||
		matches(e.storage, sentence)
}

// Categorize assigns the first matching category.
func (e *Extractor) Categorize(sentence string) domain.RequirementCategory {
	switch {
	case stepPattern.MatchString(sentence):
		return domain.RequirementStep
	case matches(e.training, sentence):
		return domain.RequirementTraining
	case matches(e.storage, sentence):
		return domain.RequirementStorage
	case matches(e.system, sentence):
		return domain.RequirementSystem
	case matches(e.responsibility, sentence):
		return domain.RequirementResponsibility
	default:
		return domain.RequirementObligation
	}
}

// AppliesTo returns the audience a sentence names, or "".
func (e *Extractor) AppliesTo(sentence string) string {
	if m := e.allRole.FindStringSubmatch(sentence); m != nil {
		return strings.ToLower(strings.TrimSpace(m[1]))
	}
	if m := facingPattern.FindString(sentence); m != "" {
		return strings.ToLower(m)
	}
	if m := assignedPattern.FindStringSubmatch(sentence); m != nil {
		return strings.ToLower(strings.TrimSpace(m[1]))
	}
	if e.roles != nil {
		if m := e.roles.FindString(sentence); m != "" {
			return strings.ToLower(m)
		}
	}
	return ""
}

// IsProcedural reports whether a document reads as a procedure, from its
// file name or its content.
func IsProcedural(fileName, content string) bool {
	name := strings.ToLower(fileName)
	if sopWord.MatchString(name) || strings.Contains(name, "procedure") {
		return true
	}
	lower := strings.ToLower(content)
	if sopWord.MatchString(lower) {
		return true
	}
	for _, w := range procedureWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return stepWord.MatchString(content) || numberedLine.MatchString(content)
}
