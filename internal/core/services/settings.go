package services

import (
	"fmt"
	"os"
	"time"

	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
	"github.com/custodia-labs/changelens/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keySourceType        = "source.type"
	keySourceLocation    = "source.location"
	keySourceMIMETypes   = "source.mime_types"
	keyLLMProvider       = "llm.provider"
	keyLLMModel          = "llm.model"
	keyLLMBaseURL        = "llm.base_url"
	keyLLMAPIKey         = "llm.api_key"
	keyExplainEnabled    = "explain.enabled"
	keyExplainAI         = "explain.ai_enabled"
	keyExplainInFlight   = "explain.max_in_flight"
	keyExplainMaxChunks  = "explain.max_chunks"
	keyExplainCharLimit  = "explain.prompt_char_limit"
	keyDispatchMode      = "dispatch.mode"
	keyDispatchRedis     = "dispatch.redis_addr"
	keyDispatchWorkers   = "dispatch.worker_concurrency"
	keySchedulerEnabled  = "scheduler.enabled"
	keySchedulerIngest   = "scheduler.ingest_interval"
	keySchedulerBackfill = "scheduler.backfill_interval"
	keyAuthTokenFile     = "auth.token_file"
	keyAuthClientID      = "auth.client_id"
	keyAuthClientSecret  = "auth.client_secret"
	keyDataDir           = "data.dir"
	keyVocabHighRisk     = "vocabulary.high_risk_phrases"
	keyVocabObligation   = "vocabulary.obligation_terms"
	keyVocabSystem       = "vocabulary.system_terms"
	keyVocabTraining     = "vocabulary.training_terms"
	keyVocabStorage      = "vocabulary.storage_terms"
	keyVocabResponsible  = "vocabulary.responsibility_terms"
	keyVocabRoles        = "vocabulary.role_nouns"
)

// Environment variables consulted when no API key is configured.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvLLMAPIKey       = "CHANGELENS_LLM_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.Settings, error) {
	defaults := domain.DefaultSettings()

	settings := &domain.Settings{
		Source: domain.SourceSettings{
			Type:      domain.SourceType(s.getString(keySourceType, string(defaults.Source.Type))),
			Location:  s.configStore.GetString(keySourceLocation),
			MIMETypes: s.configStore.GetStringSlice(keySourceMIMETypes),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:    s.configStore.GetString(keyLLMModel),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		Explain: domain.ExplainSettings{
			Enabled:         s.getBool(keyExplainEnabled, defaults.Explain.Enabled),
			AIEnabled:       s.getBool(keyExplainAI, defaults.Explain.AIEnabled),
			MaxInFlight:     s.configStore.GetInt(keyExplainInFlight),
			MaxChunks:       s.getInt(keyExplainMaxChunks, defaults.Explain.MaxChunks),
			PromptCharLimit: s.getInt(keyExplainCharLimit, defaults.Explain.PromptCharLimit),
		},
		Dispatch: domain.DispatchSettings{
			Mode:              domain.DispatchMode(s.getString(keyDispatchMode, string(defaults.Dispatch.Mode))),
			RedisAddr:         s.getString(keyDispatchRedis, defaults.Dispatch.RedisAddr),
			WorkerConcurrency: s.getInt(keyDispatchWorkers, defaults.Dispatch.WorkerConcurrency),
		},
		Scheduler: domain.SchedulerSettings{
			Enabled:          s.getBool(keySchedulerEnabled, defaults.Scheduler.Enabled),
			IngestInterval:   s.getDuration(keySchedulerIngest, defaults.Scheduler.IngestInterval),
			BackfillInterval: s.getDuration(keySchedulerBackfill, defaults.Scheduler.BackfillInterval),
		},
		Auth: domain.AuthSettings{
			TokenFile:    s.configStore.GetString(keyAuthTokenFile),
			ClientID:     s.configStore.GetString(keyAuthClientID),
			ClientSecret: s.configStore.GetString(keyAuthClientSecret),
		},
		DataDir: s.configStore.GetString(keyDataDir),
		Vocabulary: defaults.Vocabulary.Merge(domain.Vocabulary{
			HighRiskPhrases:     s.configStore.GetStringSlice(keyVocabHighRisk),
			ObligationTerms:     s.configStore.GetStringSlice(keyVocabObligation),
			SystemTerms:         s.configStore.GetStringSlice(keyVocabSystem),
			TrainingTerms:       s.configStore.GetStringSlice(keyVocabTraining),
			StorageTerms:        s.configStore.GetStringSlice(keyVocabStorage),
			ResponsibilityTerms: s.configStore.GetStringSlice(keyVocabResponsible),
			RoleNouns:           s.configStore.GetStringSlice(keyVocabRoles),
		}),
	}

	if settings.LLM.Model == "" {
		settings.LLM.Model = domain.DefaultLLMModels()[settings.LLM.Provider]
	}
	if settings.LLM.APIKey == "" {
		settings.LLM.APIKey = s.apiKeyFromEnv(settings.LLM.Provider)
	}

	return settings, nil
}

// apiKeyFromEnv returns the first API key found in the environment.
func (s *SettingsService) apiKeyFromEnv(provider domain.AIProvider) string {
	if key := s.getenv(EnvLLMAPIKey); key != "" {
		return key
	}
	switch provider {
	case domain.AIProviderAnthropic:
		return s.getenv(EnvAnthropicAPIKey)
	case domain.AIProviderOpenAI:
		return s.getenv(EnvOpenAIAPIKey)
	default:
		return ""
	}
}

// Save persists application settings.
// API keys and client secrets taken from the environment are not written.
func (s *SettingsService) Save(settings *domain.Settings) error {
	values := []struct {
		key   string
		value any
	}{
		{keySourceType, string(settings.Source.Type)},
		{keySourceLocation, settings.Source.Location},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyExplainEnabled, settings.Explain.Enabled},
		{keyExplainAI, settings.Explain.AIEnabled},
		{keyExplainInFlight, settings.Explain.MaxInFlight},
		{keyExplainMaxChunks, settings.Explain.MaxChunks},
		{keyExplainCharLimit, settings.Explain.PromptCharLimit},
		{keyDispatchMode, string(settings.Dispatch.Mode)},
		{keyDispatchRedis, settings.Dispatch.RedisAddr},
		{keyDispatchWorkers, settings.Dispatch.WorkerConcurrency},
		{keySchedulerEnabled, settings.Scheduler.Enabled},
		{keySchedulerIngest, settings.Scheduler.IngestInterval.String()},
		{keySchedulerBackfill, settings.Scheduler.BackfillInterval.String()},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	if settings.LLM.APIKey != "" && settings.LLM.APIKey != s.apiKeyFromEnv(settings.LLM.Provider) {
		if err := s.configStore.Set(keyLLMAPIKey, settings.LLM.APIKey); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}
	if len(settings.Source.MIMETypes) > 0 {
		if err := s.configStore.Set(keySourceMIMETypes, settings.Source.MIMETypes); err != nil {
			return fmt.Errorf("save source mime_types: %w", err)
		}
	}

	return nil
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	// Validate API key if required
	if apiKey == "" {
		apiKey = s.apiKeyFromEnv(provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings.LLM.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.LLM.Model = model
	} else {
		settings.LLM.Model = domain.DefaultLLMModels()[provider]
	}

	// Set base URL based on provider type
	if provider.IsLocal() {
		// Local providers need a base URL
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = "http://localhost:11434"
		}
	} else {
		// Cloud providers don't need a custom base URL
		settings.LLM.BaseURL = ""
	}

	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// SetAIEnabled toggles AI-assisted explanations.
func (s *SettingsService) SetAIEnabled(enabled bool) error {
	return s.configStore.Set(keyExplainAI, enabled)
}

// SetSource configures the watched storage location.
func (s *SettingsService) SetSource(sourceType domain.SourceType, location string) error {
	if !sourceType.IsValid() {
		return fmt.Errorf("%w: source type %q", domain.ErrInvalidInput, sourceType)
	}
	if location == "" {
		return fmt.Errorf("%w: source location is required", domain.ErrInvalidInput)
	}
	if err := s.configStore.Set(keySourceType, string(sourceType)); err != nil {
		return fmt.Errorf("save source type: %w", err)
	}
	if err := s.configStore.Set(keySourceLocation, location); err != nil {
		return fmt.Errorf("save source location: %w", err)
	}
	return nil
}

// Validate checks if current settings can run.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	if settings.Explain.AIEnabled && !settings.LLM.IsConfigured() {
		return fmt.Errorf("AI explanations require LLM provider %q to be configured", settings.LLM.Provider)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}
