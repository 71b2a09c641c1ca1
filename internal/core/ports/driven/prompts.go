package driven

// Prompt names for customisable LLM prompts.
const (
	// PromptExplainSystem is the system instruction for AI explanations.
	PromptExplainSystem = "explain_system"
)

// PromptStore loads LLM prompts that users may customise.
type PromptStore interface {
	// Load returns the prompt with the given name.
	Load(name string) (string, error)
}
