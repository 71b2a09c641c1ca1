package domain

import (
	"fmt"
	"time"
)

// ChangeType is the kind of detected change.
type ChangeType string

// Change types.
const (
	ChangeCreated  ChangeType = "created"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
	ChangeRenamed  ChangeType = "renamed"
	ChangeBaseline ChangeType = "baseline"
)

// IsValid returns true if the change type is recognised.
func (t ChangeType) IsValid() bool {
	switch t {
	case ChangeCreated, ChangeModified, ChangeDeleted, ChangeRenamed, ChangeBaseline:
		return true
	default:
		return false
	}
}

// HasContent reports whether the change carries text worth diffing.
func (t ChangeType) HasContent() bool {
	return t == ChangeCreated || t == ChangeModified
}

// String returns the string representation.
func (t ChangeType) String() string {
	return string(t)
}

// Severity grades how much attention a change needs.
type Severity string

// Severities.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityFor returns the fixed severity of a change type.
func SeverityFor(t ChangeType) Severity {
	switch t {
	case ChangeModified:
		return SeverityHigh
	case ChangeCreated, ChangeDeleted:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// ChangeReason is the structured "why" of a change record.
// Only the fields relevant to the change type are set.
type ChangeReason struct {
	// Renamed.
	OldName string `json:"oldName,omitempty"`
	NewName string `json:"newName,omitempty"`

	// Modified, and created on reappearance.
	ContentChanged bool   `json:"contentChanged,omitempty"`
	PreviousHash   string `json:"previousHash,omitempty"`
	NewHash        string `json:"newHash,omitempty"`
	Reappeared     bool   `json:"reappeared,omitempty"`

	// Deleted.
	LastSeenName     string     `json:"lastSeenName,omitempty"`
	LastSeenModified *time.Time `json:"lastSeenModified,omitempty"`

	// Baseline.
	BaselineDocCount int `json:"baselineDocCount,omitempty"`
}

// ChangeRecord is one detected change and its explanation lifecycle.
type ChangeRecord struct {
	// ID is the unique identifier for the record.
	ID string

	// DocumentID links to the changed document. Nil only for baseline records.
	DocumentID *string

	// PreviousVersionID is the version before the change, if any.
	PreviousVersionID *string

	// NewVersionID is the version after the change, if any.
	NewVersionID *string

	// ChangeType is the kind of change.
	ChangeType ChangeType

	// DetectedAt is when the change was recorded.
	DetectedAt time.Time

	// Summary is a one-line human description.
	Summary string

	// Reason is the structured cause.
	Reason ChangeReason

	// Severity grades the change.
	Severity Severity

	// ExplanationStatus is empty until the explanation pipeline touches the record.
	ExplanationStatus ExplanationStatus

	// ExplanationText is the rendered explanation.
	ExplanationText string

	// ExplanationBullets is the structured explanation.
	ExplanationBullets *ExplanationBullets

	// ExplanationMeta describes how the explanation was produced.
	ExplanationMeta ExplanationMeta

	// ExplanationError preserves the error of a failed AI attempt even when
	// a fallback explanation succeeded.
	ExplanationError string

	// ExplainedAt is when the explanation status was last written.
	ExplainedAt *time.Time
}

// Validate checks the structural rules of a change record.
func (r *ChangeRecord) Validate() error {
	if !r.ChangeType.IsValid() {
		return fmt.Errorf("%w: change type %q", ErrInvalidInput, r.ChangeType)
	}
	if r.ChangeType == ChangeBaseline && r.DocumentID != nil {
		return fmt.Errorf("%w: baseline record must not reference a document", ErrInvalidInput)
	}
	if r.ChangeType != ChangeBaseline && r.DocumentID == nil {
		return fmt.Errorf("%w: %s record must reference a document", ErrInvalidInput, r.ChangeType)
	}
	if r.ChangeType == ChangeModified && r.NewVersionID == nil {
		return fmt.Errorf("%w: modified record must reference a new version", ErrInvalidInput)
	}
	return nil
}

// IsExplained reports whether the explanation pipeline has touched the record.
func (r *ChangeRecord) IsExplained() bool {
	return r.ExplanationStatus != ""
}

// ExplanationUpdate is written once the explanation pipeline settles a record.
type ExplanationUpdate struct {
	Status      ExplanationStatus
	Text        string
	Bullets     *ExplanationBullets
	Meta        ExplanationMeta
	Error       string
	ExplainedAt time.Time
}

// Apply copies the update onto r.
func (u ExplanationUpdate) Apply(r *ChangeRecord) {
	r.ExplanationStatus = u.Status
	r.ExplanationText = u.Text
	r.ExplanationBullets = u.Bullets
	r.ExplanationMeta = u.Meta
	r.ExplanationError = u.Error
	t := u.ExplainedAt
	r.ExplainedAt = &t
}
