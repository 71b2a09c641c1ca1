package driving

import "github.com/custodia-labs/changelens/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.Settings, error)

	// Save persists application settings.
	Save(settings *domain.Settings) error

	// SetLLMProvider configures the LLM provider.
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// SetAIEnabled toggles AI-assisted explanations.
	SetAIEnabled(enabled bool) error

	// SetSource configures the watched storage location.
	SetSource(sourceType domain.SourceType, location string) error

	// Validate checks if current settings can run.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.Settings

	// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
	ValidateLLMConfig() error
}
