package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/changelens/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the document source, the LLM provider and AI
explanations. Everything here can also be edited in the config file.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSourceCmd = &cobra.Command{
	Use:   "source <gdrive|filesystem> <location>",
	Short: "Set the watched document source",
	Long: `Set the storage system and location to ingest.

  gdrive      location is a Drive folder ID or folder URL
  filesystem  location is a local directory path`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSource,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Configure the LLM provider used for AI-assisted explanations.`,
	RunE:  runSettingsLLM,
}

var settingsAICmd = &cobra.Command{
	Use:       "ai <on|off>",
	Short:     "Enable or disable AI-assisted explanations",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runSettingsAI,
}

func init() {
	for _, c := range []*cobra.Command{settingsCmd, settingsShowCmd, settingsSourceCmd, settingsLLMCmd, settingsAICmd} {
		c.Annotations = map[string]string{configOnly: "true"}
	}

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSourceCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	settingsCmd.AddCommand(settingsAICmd)
	rootCmd.AddCommand(settingsCmd)
}

func requireSettings() (*App, error) {
	return requireApp("settings service", func(a *App) bool { return a.SettingsService != nil })
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	a, err := requireSettings()
	if err != nil {
		return err
	}

	settings, err := a.SettingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Source]")
	cmd.Printf("  Type: %s\n", settings.Source.Type)
	cmd.Printf("  Location: %s\n", valueOrUnset(settings.Source.Location))
	if len(settings.Source.MIMETypes) > 0 {
		cmd.Printf("  MIME types: %s\n", strings.Join(settings.Source.MIMETypes, ", "))
	}
	cmd.Println()

	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
	cmd.Printf("  Model: %s\n", valueOrUnset(settings.LLM.Model))
	if settings.LLM.Provider.IsLocal() {
		cmd.Printf("  Base URL: %s\n", settings.LLM.BaseURL)
	}
	if settings.LLM.Provider.RequiresAPIKey() {
		if settings.LLM.APIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(settings.LLM.APIKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	status := "configured"
	if !settings.LLM.IsConfigured() {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
	cmd.Println()

	cmd.Println("[Explanations]")
	cmd.Printf("  Enabled: %s\n", yesNo(settings.Explain.Enabled))
	cmd.Printf("  AI assisted: %s\n", yesNo(settings.Explain.AIEnabled))
	if settings.Explain.MaxInFlight > 0 {
		cmd.Printf("  Max in flight: %d\n", settings.Explain.MaxInFlight)
	} else {
		cmd.Printf("  Max in flight: unbounded\n")
	}
	cmd.Println()

	cmd.Println("[Dispatch]")
	cmd.Printf("  Mode: %s\n", settings.Dispatch.Mode)
	if settings.Dispatch.Mode == domain.DispatchAsynq {
		cmd.Printf("  Redis: %s\n", settings.Dispatch.RedisAddr)
	}
	cmd.Println()

	cmd.Println("[Scheduler]")
	cmd.Printf("  Enabled: %s\n", yesNo(settings.Scheduler.Enabled))
	cmd.Printf("  Ingest every: %s\n", settings.Scheduler.IngestInterval)
	cmd.Printf("  Backfill every: %s\n", settings.Scheduler.BackfillInterval)
	cmd.Println()

	if err := a.SettingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'changelens settings llm' or edit the config file to fix it.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsSource(cmd *cobra.Command, args []string) error {
	a, err := requireSettings()
	if err != nil {
		return err
	}

	sourceType := domain.SourceType(args[0])
	if err := a.SettingsService.SetSource(sourceType, args[1]); err != nil {
		return fmt.Errorf("failed to set source: %w", err)
	}
	cmd.Printf("Source set to %s: %s\n", sourceType, args[1])
	if sourceType.RequiresAuth() {
		cmd.Println("Run 'changelens auth login' if you have not authorised access yet.")
	}
	return nil
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if _, err := requireSettings(); err != nil {
		return err
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	return configureLLMProvider(cmd, reader)
}

func runSettingsAI(cmd *cobra.Command, args []string) error {
	a, err := requireSettings()
	if err != nil {
		return err
	}

	var enabled bool
	switch strings.ToLower(args[0]) {
	case "on", "true", "yes":
		enabled = true
	case "off", "false", "no":
		enabled = false
	default:
		return fmt.Errorf("expected on or off, got %q", args[0])
	}

	if err := a.SettingsService.SetAIEnabled(enabled); err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	cmd.Printf("AI-assisted explanations: %s\n", yesNo(enabled))

	if enabled {
		settings, _ := a.SettingsService.Get() //nolint:errcheck // Best-effort check
		if settings != nil && !settings.LLM.IsConfigured() {
			cmd.Println("\nNote: no LLM provider is configured; explanations stay deterministic.")
			cmd.Println("Run 'changelens settings llm' to configure one.")
		}
	}
	return nil
}

func configureLLMProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select LLM Provider")
	providers := domain.AllLLMProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	// Get model
	defaults := domain.DefaultLLMModels()
	defaultModel := defaults[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	// Get API key if needed
	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key (leave empty to use the environment): ")
		apiKey = readPassword(reader)
		cmd.Println()
	}

	if err := app.SettingsService.SetLLMProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := app.SettingsService.ValidateLLMConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("LLM provider configured: %s (%s)\n", selectedProvider.Description(), model)
	if settings, err := app.SettingsService.Get(); err == nil && !settings.Explain.AIEnabled {
		cmd.Println("Run 'changelens settings ai on' to use it for explanations.")
	}
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads a secret without echo when stdin is a terminal and
// falls back to a plain line read otherwise.
func readPassword(reader *bufio.Reader) string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func valueOrUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
