package domain

// Vocabulary holds the fixed phrase lists used by the diff and
// requirement heuristics. Lists are matched case-insensitively.
type Vocabulary struct {
	// HighRiskPhrases flag privacy and compliance sensitive text.
	HighRiskPhrases []string

	// ObligationTerms mark a sentence as imposing a duty.
	ObligationTerms []string

	// SystemTerms mark a sentence as concerning a tool or system.
	SystemTerms []string

	// TrainingTerms mark a sentence as concerning training or certification.
	TrainingTerms []string

	// StorageTerms mark a sentence as concerning record keeping.
	StorageTerms []string

	// ResponsibilityTerms mark a sentence as assigning a role.
	ResponsibilityTerms []string

	// RoleNouns are bare role words recognised as an audience.
	RoleNouns []string
}

// DefaultVocabulary returns the built-in phrase lists.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		HighRiskPhrases: []string{
			"sell", "share", "disclose", "third party", "third-party", "transfer",
			"retain", "collect", "consent", "opt out", "opt-out", "marketing",
			"undisclosed", "pii", "personal data", "personal information",
			"data breach", "security incident", "confidential", "terminate",
			"penalty", "fine", "lawsuit", "liability", "waive", "forfeit",
		},
		ObligationTerms: []string{
			"must", "shall", "required", "require", "requires", "need to", "needs to",
			"have to", "has to", "mandatory", "obligated", "responsible for",
			"expected to", "ensure", "ensures", "are to", "is to", "will be required",
		},
		SystemTerms: []string{
			"system", "tool", "software", "platform", "portal", "application",
			"database", "crm", "erp", "ticket", "dashboard", "spreadsheet", "log in",
			"login", "enter into", "record in",
		},
		TrainingTerms: []string{
			"training", "trained", "course", "certification", "certified",
			"onboarding", "workshop", "module", "refresher",
		},
		StorageTerms: []string{
			"store", "stored", "storage", "retain", "retention", "archive", "archived",
			"file", "filed", "folder", "drive", "backup", "keep records", "record keeping",
		},
		ResponsibilityTerms: []string{
			"responsible", "assigned", "duty", "duties", "role", "accountable", "owner",
		},
		RoleNouns: []string{
			"managers", "supervisors", "administrators", "leads", "directors",
			"employees", "staff", "agents", "representatives", "technicians",
			"coordinators", "officers", "contractors", "team members",
		},
	}
}

// Merge returns v with every non-empty list in override replacing its
// counterpart.
func (v Vocabulary) Merge(override Vocabulary) Vocabulary {
	pick := func(base, o []string) []string {
		if len(o) > 0 {
			return o
		}
		return base
	}
	return Vocabulary{
		HighRiskPhrases:     pick(v.HighRiskPhrases, override.HighRiskPhrases),
		ObligationTerms:     pick(v.ObligationTerms, override.ObligationTerms),
		SystemTerms:         pick(v.SystemTerms, override.SystemTerms),
		TrainingTerms:       pick(v.TrainingTerms, override.TrainingTerms),
		StorageTerms:        pick(v.StorageTerms, override.StorageTerms),
		ResponsibilityTerms: pick(v.ResponsibilityTerms, override.ResponsibilityTerms),
		RoleNouns:           pick(v.RoleNouns, override.RoleNouns),
	}
}
