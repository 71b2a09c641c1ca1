package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/changelens/internal/core/domain"
)

// ExplanationInput is a change record together with the text of the
// versions it references. Content fields are empty when unavailable.
type ExplanationInput struct {
	Record          *domain.ChangeRecord
	FileName        string
	PreviousContent string
	NewContent      string
}

// name returns the best display name for the document.
func (in ExplanationInput) name() string {
	switch {
	case in.FileName != "":
		return in.FileName
	case in.Record == nil:
		return untitledDocument
	case in.Record.Reason.NewName != "":
		return in.Record.Reason.NewName
	case in.Record.Reason.LastSeenName != "":
		return in.Record.Reason.LastSeenName
	default:
		return untitledDocument
	}
}

const untitledDocument = "Untitled document"

// Strategy names recorded on deterministic explanations.
const (
	strategyRequirements = "requirements"
	strategyEvidence     = "evidence"
	strategyCreated      = "created"
	strategyNotice       = "notice"
	strategyUnavailable  = "unavailable"
)

// DeterministicExplainer produces rule-based explanations. It never fails:
// every change type and every content shape yields an explanation with at
// least one what-changed bullet.
type DeterministicExplainer struct {
	analyzer *ChangeAnalyzer
}

// NewDeterministicExplainer creates a deterministic explainer.
func NewDeterministicExplainer(analyzer *ChangeAnalyzer) *DeterministicExplainer {
	return &DeterministicExplainer{analyzer: analyzer}
}

// Generate explains in.Record.
func (d *DeterministicExplainer) Generate(in ExplanationInput) domain.Explanation {
	if in.Record == nil {
		return d.generic("A change was detected", in.name())
	}

	switch in.Record.ChangeType {
	case domain.ChangeBaseline:
		return d.baseline(in)
	case domain.ChangeRenamed:
		return d.renamed(in)
	case domain.ChangeDeleted:
		return d.deleted(in)
	case domain.ChangeCreated:
		return d.created(in)
	case domain.ChangeModified:
		return d.modified(in)
	default:
		return d.generic(in.Record.Summary, in.name())
	}
}

func (d *DeterministicExplainer) baseline(in ExplanationInput) domain.Explanation {
	count := in.Record.Reason.BaselineDocCount
	bullets := domain.ExplanationBullets{
		WhatChanged: []string{
			fmt.Sprintf("Monitoring started with a baseline of %s.", plural(count, "document")),
		},
		WhyItMatters: []string{
			"Future additions, edits, renames and removals are compared against this baseline.",
		},
		RecommendedActions: []string{"No action required."},
	}
	return d.build(
		fmt.Sprintf("Baseline established: %s now monitored.", plural(count, "document")),
		bullets,
		domain.DeterministicMeta{Confidence: domain.ConfidenceHigh, Strategy: strategyNotice},
	)
}

func (d *DeterministicExplainer) renamed(in ExplanationInput) domain.Explanation {
	oldName := orDefault(in.Record.Reason.OldName, untitledDocument)
	newName := orDefault(in.Record.Reason.NewName, in.name())
	bullets := domain.ExplanationBullets{
		WhatChanged: []string{fmt.Sprintf("%q was renamed to %q.", oldName, newName)},
		WhyItMatters: []string{
			"Links, bookmarks or instructions that mention the old name may now be misleading.",
			"A rename on its own does not change what the document says.",
		},
		RecommendedActions: []string{
			"Confirm the new name is intended and update references to the old name.",
		},
	}
	return d.build(
		fmt.Sprintf("Document renamed from %q to %q.", oldName, newName),
		bullets,
		domain.DeterministicMeta{Confidence: domain.ConfidenceHigh, Strategy: strategyNotice},
	)
}

func (d *DeterministicExplainer) deleted(in ExplanationInput) domain.Explanation {
	name := orDefault(in.Record.Reason.LastSeenName, in.name())
	what := []string{fmt.Sprintf("%q is no longer present in the monitored location.", name)}
	if t := in.Record.Reason.LastSeenModified; t != nil {
		what = append(what, fmt.Sprintf("It was last modified on %s.", formatTime(*t)))
	}
	bullets := domain.ExplanationBullets{
		WhatChanged: what,
		WhyItMatters: []string{
			"People who rely on this document can no longer find it where they expect it.",
		},
		RecommendedActions: []string{
			"Verify the removal was intentional and point readers to any replacement.",
		},
	}
	return d.build(
		fmt.Sprintf("Document %q was removed.", name),
		bullets,
		domain.DeterministicMeta{Confidence: domain.ConfidenceMedium, Strategy: strategyNotice},
	)
}

func (d *DeterministicExplainer) created(in ExplanationInput) domain.Explanation {
	name := in.name()
	headline := fmt.Sprintf("New document %q was added.", name)
	var what []string
	if in.Record.Reason.Reappeared {
		headline = fmt.Sprintf("Document %q reappeared after being removed.", name)
		what = append(what, "A document that had been removed is present again.")
	} else {
		what = append(what, headline)
	}

	if !domain.IsSubstantive(in.NewContent) {
		what = append(what, "Its content could not be read, so no summary is available.")
		bullets := domain.ExplanationBullets{
			WhatChanged:        what,
			WhyItMatters:       []string{"New guidance may apply to people who have not seen it yet."},
			RecommendedActions: []string{"Open the document to review what it contains."},
		}
		return d.build(headline, bullets, domain.DeterministicMeta{
			Confidence: domain.ConfidenceLow,
			Strategy:   strategyUnavailable,
		})
	}

	analysis := d.analyzer.Analyze(name, "", in.NewContent)
	what = append(what, fmt.Sprintf("It contains %s of text.", plural(analysis.Summary.Added, "paragraph")))
	if sections := locations(analysis.Chunks); len(sections) > 0 {
		what = append(what, "Sections include: "+strings.Join(sections, ", ")+".")
	}

	why := []string{"New guidance may apply to people who have not seen it yet."}
	actions := []string{"Review the document and share it with the people it applies to."}

	var reqs []domain.RequirementEntry
	if analysis.IsProcedural && len(analysis.Requirements) > 0 {
		reqs = requirementEntries(analysis.Requirements)
		what = append(what, fmt.Sprintf("It sets out %s.", plural(len(reqs), "requirement")))
		why = append(why, "It reads as a procedure, so it defines what people are expected to do.")
		actions = append(actions, "Brief the affected teams on the requirements it introduces.")
	}
	if analysis.HasHighRiskChanges {
		why = append(why, highRiskWhy(analysis.HighRiskPhrases))
		actions = append(actions, highRiskAction)
	}

	bullets := domain.ExplanationBullets{
		WhatChanged:        what,
		WhyItMatters:       why,
		RecommendedActions: actions,
		Requirements:       reqs,
	}
	return d.build(headline, bullets, domain.DeterministicMeta{
		Confidence:       domain.ConfidenceMedium,
		HighRiskDetected: analysis.HasHighRiskChanges,
		HighRiskPhrases:  analysis.HighRiskPhrases,
		Strategy:         strategyCreated,
	})
}

func (d *DeterministicExplainer) modified(in ExplanationInput) domain.Explanation {
	name := in.name()
	headline := fmt.Sprintf("Content of %q was modified.", name)

	if !domain.IsSubstantive(in.PreviousContent) || !domain.IsSubstantive(in.NewContent) {
		bullets := domain.ExplanationBullets{
			WhatChanged: []string{
				headline,
				"The previous and new text could not both be read, so details are unavailable.",
			},
			WhyItMatters:       []string{"Edited guidance may change what readers are expected to do."},
			RecommendedActions: []string{"Open the document and review its recent edits."},
		}
		return d.build(headline, bullets, domain.DeterministicMeta{
			Confidence: domain.ConfidenceLow,
			Strategy:   strategyUnavailable,
		})
	}

	analysis := d.analyzer.Analyze(name, in.PreviousContent, in.NewContent)
	if analysis.IsEmpty() {
		bullets := domain.ExplanationBullets{
			WhatChanged: []string{
				headline,
				"No paragraph-level text differences were found; the edit is likely formatting or spacing.",
			},
			WhyItMatters:       []string{"The wording readers rely on is unchanged."},
			RecommendedActions: []string{"No action required."},
		}
		return d.build(headline, bullets, domain.DeterministicMeta{
			Confidence: domain.ConfidenceMedium,
			Strategy:   strategyEvidence,
		})
	}

	if analysis.IsProcedural && len(analysis.Requirements) > 0 {
		return d.requirementShaped(headline, name, analysis)
	}
	return d.evidenceBased(headline, analysis)
}

// requirementShaped explains a procedural revision through the
// requirements it introduces.
func (d *DeterministicExplainer) requirementShaped(headline, name string, analysis domain.DiffResult) domain.Explanation {
	reqs := requirementEntries(analysis.Requirements)

	what := []string{fmt.Sprintf("%s in %q.", capitalize(plural(len(reqs), "new or changed requirement")), name)}
	for _, r := range reqs {
		what = append(what, r.Text)
	}

	counts := make(map[domain.RequirementCategory]int)
	for _, r := range analysis.Requirements {
		counts[r.Category]++
	}

	why := []string{"Procedural changes alter what people are expected to do day to day."}
	actions := []string{"Brief the affected teams on the new requirements."}
	if n := counts[domain.RequirementTraining]; n > 0 {
		why = append(why, fmt.Sprintf("%s training; staff may need to be scheduled.", involve(n)))
		actions = append(actions, "Schedule the required training.")
	}
	if n := counts[domain.RequirementSystem]; n > 0 {
		why = append(why, fmt.Sprintf("%s systems or tools; access may need to be set up.", involve(n)))
		actions = append(actions, "Confirm affected staff have access to the systems named.")
	}
	if n := counts[domain.RequirementStorage]; n > 0 {
		why = append(why, fmt.Sprintf("%s record storage; filing practices may need to change.", involve(n)))
		actions = append(actions, "Update storage and filing guidance to match.")
	}
	if analysis.HasHighRiskChanges {
		why = append(why, highRiskWhy(analysis.HighRiskPhrases))
		actions = append(actions, highRiskAction)
	}

	bullets := domain.ExplanationBullets{
		WhatChanged:        what,
		WhyItMatters:       why,
		RecommendedActions: actions,
		Requirements:       reqs,
	}
	return d.build(headline, bullets, domain.DeterministicMeta{
		Confidence:       domain.ConfidenceHigh,
		HighRiskDetected: analysis.HasHighRiskChanges,
		HighRiskPhrases:  analysis.HighRiskPhrases,
		Strategy:         strategyRequirements,
	})
}

// evidenceBased explains a revision chunk by chunk.
func (d *DeterministicExplainer) evidenceBased(headline string, analysis domain.DiffResult) domain.Explanation {
	items := make([]domain.ChangeItem, 0, len(analysis.Chunks))
	for _, c := range analysis.Chunks {
		items = append(items, changeItem(c))
	}

	what := []string{countsLine(analysis.Summary)}
	for _, item := range items {
		what = append(what, item.Description)
	}
	if total := analysis.Summary.Total(); total > len(items) {
		what = append(what, fmt.Sprintf("Showing the %d most relevant of %d changes.", len(items), total))
	}

	why := []string{"Updated wording can change what readers are expected to do."}
	actions := []string{"Review the highlighted changes with the document owner."}
	if analysis.HasHighRiskChanges {
		why = append([]string{highRiskWhy(analysis.HighRiskPhrases)}, why...)
		actions = append(actions, highRiskAction)
	}

	bullets := domain.ExplanationBullets{
		WhatChanged:        what,
		WhyItMatters:       why,
		RecommendedActions: actions,
		ChangeItems:        items,
	}
	return d.build(headline, bullets, domain.DeterministicMeta{
		Confidence:       domain.ConfidenceMedium,
		HighRiskDetected: analysis.HasHighRiskChanges,
		HighRiskPhrases:  analysis.HighRiskPhrases,
		Strategy:         strategyEvidence,
	})
}

func (d *DeterministicExplainer) generic(summary, name string) domain.Explanation {
	headline := orDefault(summary, fmt.Sprintf("%q changed.", name))
	bullets := domain.ExplanationBullets{
		WhatChanged:        []string{headline},
		WhyItMatters:       []string{"Changes to shared documents can affect the people who rely on them."},
		RecommendedActions: []string{"Review the document."},
	}
	return d.build(headline, bullets, domain.DeterministicMeta{
		Confidence: domain.ConfidenceLow,
		Strategy:   strategyUnavailable,
	})
}

func (d *DeterministicExplainer) build(
	headline string,
	bullets domain.ExplanationBullets,
	meta domain.DeterministicMeta,
) domain.Explanation {
	if len(bullets.WhatChanged) == 0 {
		bullets.WhatChanged = []string{headline}
	}
	return domain.Explanation{
		Text:    renderText(headline, bullets),
		Bullets: bullets,
		Meta:    meta,
	}
}

const highRiskAction = "Escalate to a compliance or legal owner for review."

func highRiskWhy(phrases []string) string {
	return fmt.Sprintf("The change mentions sensitive terms (%s) that can carry privacy or compliance obligations.",
		strings.Join(phrases, ", "))
}

var chunkDescriptions = map[domain.ChunkType]struct {
	verb, why, action string
}{
	domain.ChunkAdded: {
		verb:   "New text was added",
		why:    "Readers will see guidance that was not there before.",
		action: "Check whether the new text applies to you.",
	},
	domain.ChunkRemoved: {
		verb:   "Text was removed",
		why:    "Guidance readers may rely on is no longer present.",
		action: "Confirm the removal was intended.",
	},
	domain.ChunkModified: {
		verb:   "Text was reworded",
		why:    "The meaning of existing guidance may have shifted.",
		action: "Compare the old and new wording.",
	},
}

func changeItem(c domain.DiffChunk) domain.ChangeItem {
	desc := chunkDescriptions[c.Type]
	text := desc.verb
	if c.Location != "" {
		text += fmt.Sprintf(" in %q", c.Location)
	}
	item := domain.ChangeItem{
		Type:              string(c.Type),
		Location:          c.Location,
		Before:            c.BeforeExcerpt,
		After:             c.AfterExcerpt,
		Description:       text + ".",
		WhyItMatters:      desc.why,
		RecommendedAction: desc.action,
		Confidence:        domain.ConfidenceMedium,
	}
	if c.IsHighRisk() {
		item.HighRisk = true
		item.WhyItMatters = highRiskWhy(c.HighRiskPhrases)
		item.RecommendedAction = highRiskAction
	}
	return item
}

var requirementDescriptions = map[domain.RequirementCategory]struct {
	whatIsNew, impact string
}{
	domain.RequirementStep: {
		whatIsNew: "A new or changed procedural step.",
		impact:    "People following this procedure must perform the step as now written.",
	},
	domain.RequirementObligation: {
		whatIsNew: "A new obligation that must be followed.",
		impact:    "Affected staff must comply once this revision takes effect.",
	},
	domain.RequirementSystem: {
		whatIsNew: "A new system or tool requirement.",
		impact:    "Affected staff need access to the named system and to know how to use it.",
	},
	domain.RequirementTraining: {
		whatIsNew: "A new training requirement.",
		impact:    "Affected staff need to complete the training before it is required.",
	},
	domain.RequirementStorage: {
		whatIsNew: "A new record-keeping or storage requirement.",
		impact:    "Records must be stored as now described, which may change existing filing practice.",
	},
	domain.RequirementResponsibility: {
		whatIsNew: "A new or reassigned responsibility.",
		impact:    "Ownership of this task changes and the people assigned need to be told.",
	},
}

func requirementEntries(stmts []domain.RequirementStatement) []domain.RequirementEntry {
	entries := make([]domain.RequirementEntry, 0, len(stmts))
	for _, s := range stmts {
		desc := requirementDescriptions[s.Category]
		entries = append(entries, domain.RequirementEntry{
			Text:      s.Text,
			AppliesTo: orDefault(s.AppliesTo, "everyone following this document"),
			WhatIsNew: desc.whatIsNew,
			Before:    s.Before,
			After:     s.After,
			Impact:    desc.impact,
			Category:  string(s.Category),
			Location:  s.Location,
		})
	}
	return entries
}

func countsLine(s domain.DiffSummary) string {
	var parts []string
	if s.Added > 0 {
		parts = append(parts, plural(s.Added, "paragraph")+" added")
	}
	if s.Removed > 0 {
		parts = append(parts, plural(s.Removed, "paragraph")+" removed")
	}
	if s.Modified > 0 {
		parts = append(parts, plural(s.Modified, "paragraph")+" reworded")
	}
	if len(parts) == 0 {
		return "No paragraph changes were found."
	}
	return capitalize(strings.Join(parts, ", ")) + "."
}

// locations returns the distinct chunk locations in order.
func locations(chunks []domain.DiffChunk) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range chunks {
		if c.Location == "" || seen[c.Location] {
			continue
		}
		seen[c.Location] = true
		out = append(out, c.Location)
	}
	return out
}

func renderText(headline string, b domain.ExplanationBullets) string {
	var sb strings.Builder
	sb.WriteString(headline)
	section := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		sb.WriteString("\n\n")
		sb.WriteString(title)
		sb.WriteString(":")
		for _, l := range lines {
			sb.WriteString("\n- ")
			sb.WriteString(l)
		}
	}
	section("What changed", b.WhatChanged)
	section("Why it matters", b.WhyItMatters)
	section("Recommended actions", b.RecommendedActions)
	return sb.String()
}

func involve(n int) string {
	if n == 1 {
		return "1 requirement involves"
	}
	return fmt.Sprintf("%d requirements involve", n)
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04 UTC")
}
