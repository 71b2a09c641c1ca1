package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/changelens/internal/core/domain"
)

// Test helper functions in settings.go

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSettingsCmds_AreConfigOnly(t *testing.T) {
	for _, c := range append(settingsCmd.Commands(), settingsCmd) {
		assert.Equal(t, "true", c.Annotations[configOnly], c.Name())
	}
}

func TestSettingsShow(t *testing.T) {
	svc := newMockSettings()
	svc.settings.Source = domain.SourceSettings{Type: domain.SourceTypeGoogleDrive, Location: "folder-1"}
	svc.settings.LLM = domain.LLMSettings{Provider: domain.AIProviderOpenAI, Model: "gpt-4o-mini", APIKey: "sk-1234567890abcdef"}
	svc.settings.Dispatch.Mode = domain.DispatchAsynq

	out, err := runCLI(t, &App{SettingsService: svc}, "", "settings")

	require.NoError(t, err)
	assert.Contains(t, out, "Type: gdrive")
	assert.Contains(t, out, "Location: folder-1")
	assert.Contains(t, out, "API Key: sk-1...cdef")
	assert.NotContains(t, out, "sk-1234567890abcdef")
	assert.Contains(t, out, "Redis: "+domain.DefaultRedisAddr)
	assert.Contains(t, out, "Configuration is valid.")

	svc.validateErr = errors.New("AI explanations require LLM provider")
	out, err = runCLI(t, &App{SettingsService: svc}, "", "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Warning: AI explanations require LLM provider")
}

func TestSettingsSource(t *testing.T) {
	svc := newMockSettings()

	out, err := runCLI(t, &App{SettingsService: svc}, "", "settings", "source", "gdrive", "folder-2")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceTypeGoogleDrive, svc.settings.Source.Type)
	assert.Equal(t, "folder-2", svc.settings.Source.Location)
	assert.Contains(t, out, "changelens auth login")

	_, err = runCLI(t, &App{SettingsService: svc}, "", "settings", "source", "dropbox", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsAI(t *testing.T) {
	svc := newMockSettings()

	out, err := runCLI(t, &App{SettingsService: svc}, "", "settings", "ai", "on")
	require.NoError(t, err)
	assert.True(t, svc.settings.Explain.AIEnabled)
	assert.Contains(t, out, "no LLM provider is configured")

	_, err = runCLI(t, &App{SettingsService: svc}, "", "settings", "ai", "off")
	require.NoError(t, err)
	assert.False(t, svc.settings.Explain.AIEnabled)

	_, err = runCLI(t, &App{SettingsService: svc}, "", "settings", "ai", "maybe")
	assert.Error(t, err)
}

func TestSettingsLLM(t *testing.T) {
	svc := newMockSettings()

	// Provider 2 is OpenAI; an empty model keeps the default.
	out, err := runCLI(t, &App{SettingsService: svc}, "2\n\nsk-test-1234567890\n", "settings", "llm")

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, svc.settings.LLM.Provider)
	assert.Equal(t, domain.DefaultLLMModels()[domain.AIProviderOpenAI], svc.settings.LLM.Model)
	assert.Equal(t, "sk-test-1234567890", svc.settings.LLM.APIKey)
	assert.Contains(t, out, "Validating configuration... OK")
	assert.Contains(t, out, "changelens settings ai on")

	svc.pingErr = errors.New("connection refused")
	out, err = runCLI(t, &App{SettingsService: svc}, "3\nllama3.1\n", "settings", "llm")
	require.Error(t, err)
	assert.Equal(t, domain.AIProviderOllama, svc.settings.LLM.Provider)
	assert.Equal(t, "llama3.1", svc.settings.LLM.Model)
	assert.Contains(t, out, "FAILED: connection refused")
}

func TestSettings_NotConfigured(t *testing.T) {
	_, err := runCLI(t, &App{}, "", "settings", "show")
	assert.EqualError(t, err, "settings service not configured")
}
