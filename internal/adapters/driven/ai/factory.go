// Package ai provides factory functions for creating LLM service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	anthropicllm "github.com/custodia-labs/changelens/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/changelens/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/changelens/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
	"github.com/custodia-labs/changelens/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the result of LLM service initialisation.
type InitResult struct {
	LLMService driven.LLMService
	Warnings   []string // Non-fatal issues that caused fallback.
	FellBack   bool     // True if fell back to deterministic-only explanations.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Init builds the LLM service for explanation generation.
// When AI explanations are disabled no service is created. When they are
// enabled but the provider cannot be reached, the result falls back to
// deterministic-only explanations and records a warning instead of failing.
func Init(ctx context.Context, settings domain.ExplainSettings, llm *domain.LLMSettings) *InitResult {
	result := &InitResult{}
	if !settings.Enabled || !settings.AIEnabled {
		return result
	}

	svc, err := CreateAndValidateLLMService(ctx, llm)
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, err.Error())
		result.FellBack = true
	case svc == nil:
		result.Warnings = append(result.Warnings, "AI explanations enabled but no LLM provider is configured")
		result.FellBack = true
	default:
		result.LLMService = svc
	}

	for _, w := range result.Warnings {
		logger.Warn("%s; using deterministic explanations", w)
	}
	return result
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Check the [llm] section of the config file",
			domain.ErrLLMUnavailable, err)
	}

	if svc == nil {
		return nil, nil
	}

	// Validate connectivity.
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: %s unreachable (%w)",
			domain.ErrLLMUnavailable, settings.Provider.Description(), err)
	}

	return svc, nil
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured. An empty model selects the
// provider's default.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	resolved := *settings
	if resolved.Model == "" {
		resolved.Model = domain.DefaultLLMModels()[resolved.Provider]
	}

	switch resolved.Provider {
	case domain.AIProviderOllama:
		return createOllamaLLM(&resolved), nil

	case domain.AIProviderOpenAI:
		return createOpenAILLM(&resolved)

	case domain.AIProviderAnthropic:
		return createAnthropicLLM(&resolved)

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", resolved.Provider)
	}
}

// createOllamaLLM creates an Ollama LLM service.
func createOllamaLLM(settings *domain.LLMSettings) driven.LLMService {
	return ollamallm.NewLLMService(ollamallm.LLMConfig{
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createOpenAILLM creates an OpenAI LLM service.
func createOpenAILLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return openaillm.NewLLMService(openaillm.LLMConfig{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createAnthropicLLM creates an Anthropic LLM service.
func createAnthropicLLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return anthropicllm.NewLLMService(anthropicllm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}
