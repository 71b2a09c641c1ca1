package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
)

const (
	aiMaxTokens   = 1500
	aiTemperature = 0.2
)

const aiSystemPrompt = `You explain changes to shared business documents to non-technical readers.
Use only the evidence provided. Do not invent details that are not in the evidence.
Reply with a single JSON object and nothing else, using this shape:
{
  "title": string,
  "change_items": [
    {
      "type": "added" | "removed" | "modified",
      "location": string,
      "before_excerpt": string,
      "after_excerpt": string,
      "plain_english": string,
      "why_it_matters": string,
      "recommended_action": string,
      "confidence": "low" | "medium" | "high"
    }
  ],
  "what_changed": [string],
  "why_it_matters": [string],
  "recommended_actions": [string],
  "confidence": "low" | "medium" | "high",
  "high_risk": boolean
}`

// AIExplainer asks a language model to explain created and modified
// documents. It returns an error whenever the model cannot produce a usable
// explanation so the caller can fall back to the deterministic explainer.
type AIExplainer struct {
	llm         driven.LLMService
	analyzer    *ChangeAnalyzer
	enabled     bool
	charLimit   int
	promptStore driven.PromptStore
}

// NewAIExplainer creates an AI explainer. It is disabled when enabled is
// false or llm is nil. A charLimit of zero or less uses the default.
func NewAIExplainer(llm driven.LLMService, analyzer *ChangeAnalyzer, enabled bool, charLimit int) *AIExplainer {
	if charLimit <= 0 {
		charLimit = domain.DefaultPromptCharLimit
	}
	return &AIExplainer{
		llm:       llm,
		analyzer:  analyzer,
		enabled:   enabled && llm != nil,
		charLimit: charLimit,
	}
}

// SetPromptStore sets the store for a user-customised system prompt.
// If not set, the built-in prompt is used.
func (a *AIExplainer) SetPromptStore(store driven.PromptStore) {
	a.promptStore = store
}

// DefaultPrompts returns the built-in prompts keyed by prompt name.
func DefaultPrompts() map[string]string {
	return map[string]string{
		driven.PromptExplainSystem: aiSystemPrompt,
	}
}

// systemPrompt loads the system prompt, falling back to the built-in one.
func (a *AIExplainer) systemPrompt() string {
	if a.promptStore == nil {
		return aiSystemPrompt
	}
	prompt, err := a.promptStore.Load(driven.PromptExplainSystem)
	if err != nil || strings.TrimSpace(prompt) == "" {
		return aiSystemPrompt
	}
	return prompt
}

// Enabled reports whether AI generation will be attempted.
func (a *AIExplainer) Enabled() bool {
	return a != nil && a.enabled
}

// Handles reports whether the AI path applies to a change type. Other
// types never need a model call.
func (a *AIExplainer) Handles(t domain.ChangeType) bool {
	return a.Enabled() && t.HasContent()
}

// Generate explains in.Record with the language model.
func (a *AIExplainer) Generate(ctx context.Context, in ExplanationInput) (domain.Explanation, error) {
	if !a.Enabled() {
		return domain.Explanation{}, domain.ErrExplanationDisabled
	}
	if in.Record == nil || !in.Record.ChangeType.HasContent() {
		return domain.Explanation{}, fmt.Errorf("%w: no model explanation for this change type", domain.ErrInvalidInput)
	}

	prompt, analysis, chunksSent := a.buildPrompt(in)
	raw, err := a.llm.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   aiMaxTokens,
		Temperature: aiTemperature,
		System:      a.systemPrompt(),
		JSON:        true,
	})
	if err != nil {
		return domain.Explanation{}, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}

	resp, err := parseAIResponse(raw)
	if err != nil {
		return domain.Explanation{}, err
	}

	bullets := resp.bullets()
	if len(bullets.WhatChanged) == 0 {
		return domain.Explanation{}, fmt.Errorf("%w: response has no usable content", domain.ErrInvalidLLMResponse)
	}
	if analysis.IsProcedural && len(analysis.Requirements) > 0 {
		bullets.Requirements = requirementEntries(analysis.Requirements)
	}

	headline := strings.TrimSpace(resp.Title)
	if headline == "" {
		headline = in.Record.Summary
	}
	if headline == "" {
		headline = bullets.WhatChanged[0]
	}

	phrases := analysis.HighRiskPhrases
	return domain.Explanation{
		Text:    renderText(headline, bullets),
		Bullets: bullets,
		Meta: domain.AIMeta{
			Confidence:       parseConfidence(resp.Confidence),
			Model:            a.llm.ModelName(),
			HighRiskDetected: resp.HighRisk || len(phrases) > 0,
			HighRiskPhrases:  phrases,
			ChunksSent:       chunksSent,
		},
	}, nil
}

// buildPrompt renders the bounded evidence for one record.
func (a *AIExplainer) buildPrompt(in ExplanationInput) (string, domain.DiffResult, int) {
	name := in.name()
	var sb strings.Builder

	if in.Record.ChangeType == domain.ChangeCreated {
		analysis := a.analyzer.Analyze(name, "", in.NewContent)
		fmt.Fprintf(&sb, "A new document named %q was added.\n", name)
		if in.Record.Reason.Reappeared {
			sb.WriteString("It had previously been removed and has now reappeared.\n")
		}
		sb.WriteString("\nDocument content:\n")
		sb.WriteString(truncate(contentOrPlaceholder(in.NewContent), a.charLimit))
		sb.WriteString("\n")
		return sb.String(), analysis, 0
	}

	analysis := a.analyzer.Analyze(name, in.PreviousContent, in.NewContent)
	fmt.Fprintf(&sb, "The document named %q was modified.\n", name)
	if len(analysis.HighRiskPhrases) > 0 {
		fmt.Fprintf(&sb, "Sensitive terms introduced: %s.\n", strings.Join(analysis.HighRiskPhrases, ", "))
	}

	if analysis.IsEmpty() {
		half := a.charLimit / 2
		sb.WriteString("\nPrevious version:\n")
		sb.WriteString(truncate(contentOrPlaceholder(in.PreviousContent), half))
		sb.WriteString("\n\nNew version:\n")
		sb.WriteString(truncate(contentOrPlaceholder(in.NewContent), half))
		sb.WriteString("\n")
		return sb.String(), analysis, 0
	}

	fmt.Fprintf(&sb, "\nThe most relevant %d of %d paragraph changes follow.\n",
		len(analysis.Chunks), analysis.Summary.Total())
	sent := 0
	for i, c := range analysis.Chunks {
		var chunk strings.Builder
		fmt.Fprintf(&chunk, "\nChange %d (%s)", i+1, c.Type)
		if c.Location != "" {
			fmt.Fprintf(&chunk, " under %q", c.Location)
		}
		chunk.WriteString(":\n")
		if c.Before != "" {
			fmt.Fprintf(&chunk, "Before: %s\n", c.Before)
		}
		if c.After != "" {
			fmt.Fprintf(&chunk, "After: %s\n", c.After)
		}
		if sb.Len()+chunk.Len() > a.charLimit && sent > 0 {
			break
		}
		sb.WriteString(truncate(chunk.String(), a.charLimit))
		sent++
	}
	return sb.String(), analysis, sent
}

// aiResponse is the lenient decoding target for model output.
type aiResponse struct {
	Title              string          `json:"title"`
	ChangeItems        []aiChangeItem  `json:"change_items"`
	WhatChanged        flexibleStrings `json:"what_changed"`
	WhyItMatters       flexibleStrings `json:"why_it_matters"`
	RecommendedActions flexibleStrings `json:"recommended_actions"`
	Confidence         string          `json:"confidence"`
	HighRisk           bool            `json:"high_risk"`
}

type aiChangeItem struct {
	Type              string `json:"type"`
	Location          string `json:"location"`
	BeforeExcerpt     string `json:"before_excerpt"`
	AfterExcerpt      string `json:"after_excerpt"`
	PlainEnglish      string `json:"plain_english"`
	WhyItMatters      string `json:"why_it_matters"`
	RecommendedAction string `json:"recommended_action"`
	Confidence        string `json:"confidence"`
}

// flexibleStrings accepts either a JSON string or an array of strings.
type flexibleStrings []string

// UnmarshalJSON implements json.Unmarshaler.
func (f *flexibleStrings) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if strings.TrimSpace(single) != "" {
			*f = []string{single}
		}
		return nil
	}
	// Anything else is treated as absent.
	*f = nil
	return nil
}

func (r aiResponse) bullets() domain.ExplanationBullets {
	items := make([]domain.ChangeItem, 0, len(r.ChangeItems))
	for _, it := range r.ChangeItems {
		if strings.TrimSpace(it.PlainEnglish) == "" && it.BeforeExcerpt == "" && it.AfterExcerpt == "" {
			continue
		}
		items = append(items, domain.ChangeItem{
			Type:              it.Type,
			Location:          it.Location,
			Before:            it.BeforeExcerpt,
			After:             it.AfterExcerpt,
			Description:       it.PlainEnglish,
			WhyItMatters:      it.WhyItMatters,
			RecommendedAction: it.RecommendedAction,
			Confidence:        parseConfidence(it.Confidence),
		})
	}

	what := nonEmpty(r.WhatChanged)
	if len(what) == 0 {
		for _, it := range items {
			if it.Description != "" {
				what = append(what, it.Description)
			}
		}
	}
	if len(what) == 0 && strings.TrimSpace(r.Title) != "" {
		what = []string{strings.TrimSpace(r.Title)}
	}

	return domain.ExplanationBullets{
		WhatChanged:        emptyIfNil(what),
		WhyItMatters:       emptyIfNil(nonEmpty(r.WhyItMatters)),
		RecommendedActions: emptyIfNil(nonEmpty(r.RecommendedActions)),
		ChangeItems:        items,
	}
}

// parseAIResponse decodes model output, tolerating code fences and text
// around the JSON object.
func parseAIResponse(raw string) (aiResponse, error) {
	var resp aiResponse
	text := strings.TrimSpace(raw)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return resp, fmt.Errorf("%w: no JSON object in response", domain.ErrInvalidLLMResponse)
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &resp); err != nil {
		return resp, fmt.Errorf("%w: %w", domain.ErrInvalidLLMResponse, err)
	}
	return resp, nil
}

func parseConfidence(s string) domain.Confidence {
	switch c := domain.Confidence(strings.ToLower(strings.TrimSpace(s))); c {
	case domain.ConfidenceLow, domain.ConfidenceMedium, domain.ConfidenceHigh:
		return c
	default:
		return domain.ConfidenceMedium
	}
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func emptyIfNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func contentOrPlaceholder(content string) string {
	if strings.TrimSpace(content) == "" {
		return domain.PlaceholderContent("")
	}
	return content
}

// truncate cuts s to at most limit bytes on a rune boundary.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n[truncated]"
}
