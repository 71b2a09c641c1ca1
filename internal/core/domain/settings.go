package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies a generative AI service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// AllLLMProviders returns the providers that can generate explanations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{AIProviderAnthropic, AIProviderOpenAI, AIProviderOllama}
}

// DefaultLLMModels returns the default model for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// SourceType identifies the storage system being watched.
type SourceType string

// Supported source types.
const (
	// SourceTypeGoogleDrive watches a Google Drive folder.
	SourceTypeGoogleDrive SourceType = "gdrive"

	// SourceTypeFilesystem watches a local directory.
	SourceTypeFilesystem SourceType = "filesystem"
)

// IsValid returns true if the source type is recognised.
func (t SourceType) IsValid() bool {
	return t == SourceTypeGoogleDrive || t == SourceTypeFilesystem
}

// RequiresAuth returns true if the source needs OAuth credentials.
func (t SourceType) RequiresAuth() bool {
	return t == SourceTypeGoogleDrive
}

// SourceSettings describes the watched storage location.
type SourceSettings struct {
	// Type is the storage system.
	Type SourceType

	// Location is a Drive folder ID or a local directory path.
	Location string

	// MIMETypes restricts processing to these content types.
	// Empty means every type an extractor supports.
	MIMETypes []string
}

// ExplainSettings controls explanation generation.
type ExplainSettings struct {
	// Enabled is the master switch. When false, records are marked skipped.
	Enabled bool

	// AIEnabled gates the generative path for created and modified records.
	AIEnabled bool

	// MaxInFlight caps concurrent background explanations. Zero means unbounded.
	MaxInFlight int

	// MaxChunks caps the diff chunks kept as evidence.
	MaxChunks int

	// PromptCharLimit bounds raw content included in a prompt.
	PromptCharLimit int
}

// DispatchMode selects how explanation tasks are launched.
type DispatchMode string

// Dispatch modes.
const (
	// DispatchGoroutine runs explanations in-process.
	DispatchGoroutine DispatchMode = "goroutine"

	// DispatchAsynq enqueues explanations on Redis for a worker process.
	DispatchAsynq DispatchMode = "asynq"
)

// IsValid returns true if the dispatch mode is recognised.
func (m DispatchMode) IsValid() bool {
	return m == DispatchGoroutine || m == DispatchAsynq
}

// DispatchSettings controls explanation dispatch.
type DispatchSettings struct {
	Mode      DispatchMode
	RedisAddr string

	// WorkerConcurrency is the asynq worker pool size.
	WorkerConcurrency int
}

// AuthSettings locates OAuth credentials for the storage source.
type AuthSettings struct {
	TokenFile    string
	ClientID     string
	ClientSecret string
}

// SchedulerSettings controls periodic triggering.
type SchedulerSettings struct {
	Enabled          bool
	IngestInterval   time.Duration
	BackfillInterval time.Duration
}

// Settings is the typed application configuration.
type Settings struct {
	Source     SourceSettings
	LLM        LLMSettings
	Explain    ExplainSettings
	Dispatch   DispatchSettings
	Scheduler  SchedulerSettings
	Auth       AuthSettings
	DataDir    string
	Vocabulary Vocabulary
}

// Default values for settings.
const (
	DefaultMaxChunks         = 8
	DefaultPromptCharLimit   = 12000
	DefaultRedisAddr         = "127.0.0.1:6379"
	DefaultWorkerConcurrency = 4
	DefaultIngestInterval    = 1 * time.Hour
	DefaultBackfillInterval  = 6 * time.Hour
)

// DefaultSettings returns sensible defaults.
func DefaultSettings() Settings {
	return Settings{
		Source: SourceSettings{
			Type: SourceTypeFilesystem,
		},
		LLM: LLMSettings{
			Provider: AIProviderAnthropic,
		},
		Explain: ExplainSettings{
			Enabled:         true,
			AIEnabled:       false,
			MaxChunks:       DefaultMaxChunks,
			PromptCharLimit: DefaultPromptCharLimit,
		},
		Dispatch: DispatchSettings{
			Mode:              DispatchGoroutine,
			RedisAddr:         DefaultRedisAddr,
			WorkerConcurrency: DefaultWorkerConcurrency,
		},
		Scheduler: SchedulerSettings{
			Enabled:          true,
			IngestInterval:   DefaultIngestInterval,
			BackfillInterval: DefaultBackfillInterval,
		},
		Vocabulary: DefaultVocabulary(),
	}
}

// Validate checks settings for combinations that cannot run.
func (s Settings) Validate() error {
	if !s.Source.Type.IsValid() {
		return fmt.Errorf("%w: source.type %q", ErrInvalidInput, s.Source.Type)
	}
	if !s.Dispatch.Mode.IsValid() {
		return fmt.Errorf("%w: dispatch.mode %q", ErrInvalidInput, s.Dispatch.Mode)
	}
	if s.Explain.MaxInFlight < 0 {
		return fmt.Errorf("%w: explain.max_in_flight must not be negative", ErrInvalidInput)
	}
	if s.Explain.MaxChunks <= 0 {
		return fmt.Errorf("%w: explain.max_chunks must be positive", ErrInvalidInput)
	}
	return nil
}
