package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/changelens/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/changelens/internal/core/domain"
)

// newTestSettingsService returns a settings service with an empty environment.
func newTestSettingsService(store *memory.ConfigStore, env map[string]string) *SettingsService {
	service := NewSettingsService(store, nil)
	service.getenv = func(key string) string { return env[key] }
	return service
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := newTestSettingsService(memory.NewConfigStore(), nil)

	settings, err := service.Get()

	require.NoError(t, err)
	defaults := domain.DefaultSettings()
	assert.Equal(t, defaults.Source.Type, settings.Source.Type)
	assert.Equal(t, defaults.Explain, settings.Explain)
	assert.Equal(t, defaults.Dispatch, settings.Dispatch)
	assert.Equal(t, defaults.Scheduler, settings.Scheduler)
	assert.Equal(t, defaults.LLM.Provider, settings.LLM.Provider)
	assert.Equal(t, "claude-3-5-sonnet-latest", settings.LLM.Model)
	assert.Equal(t, defaults.Vocabulary, settings.Vocabulary)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("source.type", "gdrive")
	_ = store.Set("source.location", "folder-123")
	_ = store.Set("explain.ai_enabled", true)
	_ = store.Set("explain.max_in_flight", 4)
	_ = store.Set("scheduler.ingest_interval", "15m")
	_ = store.Set("vocabulary.high_risk_phrases", []any{"embargo", "sanction"})

	settings, err := newTestSettingsService(store, nil).Get()

	require.NoError(t, err)
	assert.Equal(t, domain.SourceTypeGoogleDrive, settings.Source.Type)
	assert.Equal(t, "folder-123", settings.Source.Location)
	assert.True(t, settings.Explain.AIEnabled)
	assert.Equal(t, 4, settings.Explain.MaxInFlight)
	assert.Equal(t, 15*time.Minute, settings.Scheduler.IngestInterval)
	assert.Equal(t, []string{"embargo", "sanction"}, settings.Vocabulary.HighRiskPhrases)
	assert.Equal(t, domain.DefaultVocabulary().ObligationTerms, settings.Vocabulary.ObligationTerms)
}

func TestSettingsService_Get_InvalidValuesReturnDefaults(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("llm.provider", "invalid_provider")
	_ = store.Set("scheduler.backfill_interval", "soon")

	settings, err := newTestSettingsService(store, nil).Get()

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderAnthropic, settings.LLM.Provider)
	assert.Equal(t, domain.DefaultBackfillInterval, settings.Scheduler.BackfillInterval)
}

func TestSettingsService_Get_APIKeyFromEnvironment(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		env      map[string]string
		want     string
	}{
		{"generic variable wins", "openai", map[string]string{EnvLLMAPIKey: "generic", EnvOpenAIAPIKey: "oa"}, "generic"},
		{"openai variable", "openai", map[string]string{EnvOpenAIAPIKey: "oa"}, "oa"},
		{"anthropic variable", "anthropic", map[string]string{EnvAnthropicAPIKey: "ant"}, "ant"},
		{"ollama needs none", "ollama", map[string]string{EnvOpenAIAPIKey: "oa"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewConfigStore()
			_ = store.Set("llm.provider", tt.provider)

			settings, err := newTestSettingsService(store, tt.env).Get()

			require.NoError(t, err)
			assert.Equal(t, tt.want, settings.LLM.APIKey)
		})
	}
}

func TestSettingsService_Get_ConfiguredKeyBeatsEnvironment(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("llm.api_key", "from-file")

	settings, err := newTestSettingsService(store, map[string]string{EnvLLMAPIKey: "from-env"}).Get()

	require.NoError(t, err)
	assert.Equal(t, "from-file", settings.LLM.APIKey)
}

func TestSettingsService_Save(t *testing.T) {
	store := memory.NewConfigStore()
	service := newTestSettingsService(store, nil)

	settings := domain.DefaultSettings()
	settings.Source = domain.SourceSettings{Type: domain.SourceTypeGoogleDrive, Location: "abc", MIMETypes: []string{"text/plain"}}
	settings.LLM = domain.LLMSettings{Provider: domain.AIProviderOpenAI, Model: "gpt-4o", APIKey: "sk-test"}
	settings.Explain.AIEnabled = true
	settings.Scheduler.IngestInterval = 30 * time.Minute

	require.NoError(t, service.Save(&settings))

	retrieved, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, settings.Source, retrieved.Source)
	assert.Equal(t, settings.LLM, retrieved.LLM)
	assert.True(t, retrieved.Explain.AIEnabled)
	assert.Equal(t, 30*time.Minute, retrieved.Scheduler.IngestInterval)
}

func TestSettingsService_Save_DoesNotPersistEnvironmentKey(t *testing.T) {
	store := memory.NewConfigStore()
	service := newTestSettingsService(store, map[string]string{EnvAnthropicAPIKey: "env-key"})

	settings, err := service.Get()
	require.NoError(t, err)
	require.NoError(t, service.Save(settings))

	_, exists := store.Get("llm.api_key")
	assert.False(t, exists)
}

func TestSettingsService_SetLLMProvider(t *testing.T) {
	tests := []struct {
		name      string
		provider  domain.AIProvider
		model     string
		apiKey    string
		wantModel string
		wantURL   string
		wantErr   bool
	}{
		{"anthropic with key", domain.AIProviderAnthropic, "", "sk-ant", "claude-3-5-sonnet-latest", "", false},
		{"openai custom model", domain.AIProviderOpenAI, "gpt-4o", "sk", "gpt-4o", "", false},
		{"ollama local", domain.AIProviderOllama, "", "", "llama3.2", "http://localhost:11434", false},
		{"openai without key", domain.AIProviderOpenAI, "", "", "", "", true},
		{"invalid provider", domain.AIProvider("cohere"), "", "k", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := newTestSettingsService(memory.NewConfigStore(), nil)

			err := service.SetLLMProvider(tt.provider, tt.model, tt.apiKey)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			settings, err := service.Get()
			require.NoError(t, err)
			assert.Equal(t, tt.provider, settings.LLM.Provider)
			assert.Equal(t, tt.wantModel, settings.LLM.Model)
			assert.Equal(t, tt.wantURL, settings.LLM.BaseURL)
		})
	}
}

func TestSettingsService_SetSource(t *testing.T) {
	service := newTestSettingsService(memory.NewConfigStore(), nil)

	require.NoError(t, service.SetSource(domain.SourceTypeFilesystem, "/srv/policies"))
	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, "/srv/policies", settings.Source.Location)

	assert.ErrorIs(t, service.SetSource("ftp", "x"), domain.ErrInvalidInput)
	assert.ErrorIs(t, service.SetSource(domain.SourceTypeFilesystem, ""), domain.ErrInvalidInput)
}

func TestSettingsService_Validate(t *testing.T) {
	store := memory.NewConfigStore()
	service := newTestSettingsService(store, nil)
	require.NoError(t, service.Validate())

	require.NoError(t, service.SetAIEnabled(true))
	assert.Error(t, service.Validate(), "AI enabled without an API key")

	_ = store.Set("llm.api_key", "sk-ant")
	assert.NoError(t, service.Validate())
}

// Mock AIConfigValidator for testing
type mockAIConfigValidator struct {
	llmErr error
}

func (m *mockAIConfigValidator) ValidateLLM(_ *domain.LLMSettings) error {
	return m.llmErr
}

func TestSettingsService_ValidateLLMConfig_NilValidator(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	// With nil validator, should skip validation (no error)
	assert.NoError(t, service.ValidateLLMConfig())
}

func TestSettingsService_ValidateLLMConfig_Success(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), &mockAIConfigValidator{})

	assert.NoError(t, service.ValidateLLMConfig())
}

func TestSettingsService_ValidateLLMConfig_Error(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), &mockAIConfigValidator{llmErr: assert.AnError})

	assert.Error(t, service.ValidateLLMConfig())
}
