package domain

import (
	"encoding/json"
	"fmt"
)

// ExplanationStatus is the lifecycle state of a record's explanation.
// The zero value means the record has not been processed.
type ExplanationStatus string

// Explanation statuses.
const (
	ExplanationPending   ExplanationStatus = "pending"
	ExplanationGenerated ExplanationStatus = "generated"
	ExplanationSkipped   ExplanationStatus = "skipped"
	ExplanationFailed    ExplanationStatus = "failed"
)

// Confidence grades how much evidence backs an explanation.
type Confidence string

// Confidence levels.
const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ChangeItem is one evidence-backed entry of an explanation.
type ChangeItem struct {
	Type              string     `json:"type"`
	Location          string     `json:"location,omitempty"`
	Before            string     `json:"before_excerpt,omitempty"`
	After             string     `json:"after_excerpt,omitempty"`
	Description       string     `json:"plain_english"`
	WhyItMatters      string     `json:"why_it_matters,omitempty"`
	RecommendedAction string     `json:"recommended_action,omitempty"`
	Confidence        Confidence `json:"confidence,omitempty"`
	HighRisk          bool       `json:"high_risk,omitempty"`
}

// RequirementEntry is a requirement surfaced in an explanation.
type RequirementEntry struct {
	Text      string `json:"requirement"`
	AppliesTo string `json:"applies_to,omitempty"`
	WhatIsNew string `json:"what_is_new,omitempty"`
	Before    string `json:"before,omitempty"`
	After     string `json:"after,omitempty"`
	Impact    string `json:"operational_impact,omitempty"`
	Category  string `json:"category,omitempty"`
	Location  string `json:"location,omitempty"`
}

// ExplanationBullets is the structured body of an explanation.
type ExplanationBullets struct {
	WhatChanged        []string           `json:"what_changed"`
	WhyItMatters       []string           `json:"why_it_matters"`
	RecommendedActions []string           `json:"recommended_actions"`
	ChangeItems        []ChangeItem       `json:"change_items,omitempty"`
	Requirements       []RequirementEntry `json:"new_or_changed_requirements,omitempty"`
}

// Explanation is the output of an explanation generator.
type Explanation struct {
	Text    string
	Bullets ExplanationBullets
	Meta    ExplanationMeta
}

// ExplanationMeta describes how an explanation was produced.
// It is either DeterministicMeta or AIMeta.
type ExplanationMeta interface {
	// IsDeterministic reports which generator produced the explanation.
	IsDeterministic() bool

	// ConfidenceLevel returns the generator's confidence.
	ConfidenceLevel() Confidence
}

// DeterministicMeta describes a rule-based explanation.
type DeterministicMeta struct {
	Confidence       Confidence `json:"confidence"`
	HighRiskDetected bool       `json:"highRiskDetected,omitempty"`
	HighRiskPhrases  []string   `json:"highRiskPhrases,omitempty"`

	// Strategy names the rule path that produced the text:
	// "requirements", "evidence", "created", "notice" or "unavailable".
	Strategy string `json:"strategy,omitempty"`

	// AISkipped is set when AI generation was disabled for the record.
	AISkipped bool `json:"aiSkipped,omitempty"`

	// FallbackFrom names the model whose failure triggered this fallback.
	FallbackFrom string `json:"fallbackFrom,omitempty"`
}

// IsDeterministic implements ExplanationMeta.
func (DeterministicMeta) IsDeterministic() bool { return true }

// ConfidenceLevel implements ExplanationMeta.
func (m DeterministicMeta) ConfidenceLevel() Confidence { return m.Confidence }

// MarshalJSON adds the discriminant field.
func (m DeterministicMeta) MarshalJSON() ([]byte, error) {
	type alias DeterministicMeta
	return json.Marshal(struct {
		Deterministic bool `json:"deterministic"`
		alias
	}{true, alias(m)})
}

// AIMeta describes a model-generated explanation.
type AIMeta struct {
	Confidence       Confidence `json:"confidence"`
	Model            string     `json:"model"`
	HighRiskDetected bool       `json:"highRiskDetected,omitempty"`
	HighRiskPhrases  []string   `json:"highRiskPhrases,omitempty"`
	ChunksSent       int        `json:"chunksSent,omitempty"`
}

// IsDeterministic implements ExplanationMeta.
func (AIMeta) IsDeterministic() bool { return false }

// ConfidenceLevel implements ExplanationMeta.
func (m AIMeta) ConfidenceLevel() Confidence { return m.Confidence }

// MarshalJSON adds the discriminant field.
func (m AIMeta) MarshalJSON() ([]byte, error) {
	type alias AIMeta
	return json.Marshal(struct {
		Deterministic bool `json:"deterministic"`
		alias
	}{false, alias(m)})
}

// UnmarshalExplanationMeta decodes either meta variant using the
// "deterministic" discriminant. Empty input yields nil.
func UnmarshalExplanationMeta(data []byte) (ExplanationMeta, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var shape struct {
		Deterministic *bool `json:"deterministic"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, fmt.Errorf("decoding explanation meta: %w", err)
	}
	if shape.Deterministic == nil {
		return nil, fmt.Errorf("%w: explanation meta missing discriminant", ErrInvalidInput)
	}
	if *shape.Deterministic {
		var m DeterministicMeta
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding deterministic meta: %w", err)
		}
		return m, nil
	}
	var m AIMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding ai meta: %w", err)
	}
	return m, nil
}
