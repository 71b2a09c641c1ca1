// Package cli implements the changelens command line on cobra.
//
// Commands read their collaborators from the package-level app, which the
// root command builds once per invocation through the Builder supplied to
// Execute. Tests assign app directly with stub services.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driving"
	"github.com/custodia-labs/changelens/internal/logger"
)

// version is set at build time with -ldflags.
var version = "dev"

// Command annotations controlling what setupApp builds.
const (
	skipBuild  = "changelens.skip-build"
	configOnly = "changelens.config-only"
)

// Options carries the global flags to the Builder.
type Options struct {
	ConfigDir string
	Memory    bool
	Verbose   bool

	// ConfigOnly asks for Settings and SettingsService alone, so a broken
	// configuration can still be inspected and repaired.
	ConfigOnly bool
}

// LoginFlow is the OAuth consent flow for sources that need authentication.
type LoginFlow interface {
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) error
	IsAuthenticated() bool
}

// App holds the services commands run against. Optional fields are nil
// when the configuration does not provide them.
type App struct {
	Settings        *domain.Settings
	SettingsService driving.SettingsService
	Ingestion       driving.IngestionService
	Changes         driving.ChangeService
	Explanation     driving.ExplanationService
	Scheduler       driving.Scheduler

	// Login is set for sources that authenticate with OAuth.
	Login LoginFlow

	// ResolveURL links a tracked document back to its storage location.
	ResolveURL func(doc *domain.Document) string

	// Close drains background work and releases resources.
	Close func(ctx context.Context) error
}

// Builder constructs the App for one invocation.
type Builder func(ctx context.Context, opts Options) (*App, error)

var (
	app     *App
	builder Builder
	opts    Options
)

var rootCmd = &cobra.Command{
	Use:   "changelens",
	Short: "Track and explain changes to policy documents",
	Long: `ChangeLens watches a document folder, detects what changed between
scans and explains each change in plain language.

Documents are read from a Google Drive folder or a local directory. Every
ingestion run compares the current files against the last stored version,
records created, modified, renamed and deleted documents, and generates an
explanation for each change.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupApp,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&opts.Memory, "memory", false, "Keep all state in memory for this run")
	rootCmd.PersistentFlags().StringVar(&opts.ConfigDir, "config-dir", "", "Configuration directory (default ~/.changelens)")
}

// Execute runs the root command. build is called once before any command
// that needs services, and the App it returns is closed on exit.
func Execute(ctx context.Context, build Builder) error {
	builder = build
	err := rootCmd.ExecuteContext(ctx)

	if app != nil && app.Close != nil {
		if closeErr := app.Close(context.WithoutCancel(ctx)); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown: %w", closeErr))
		}
	}
	return err
}

func setupApp(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(opts.Verbose)
	logger.SetOutput(cmd.ErrOrStderr())

	if app != nil || cmd.Annotations[skipBuild] == "true" {
		return nil
	}
	if builder == nil {
		return errors.New("services not configured")
	}

	buildOpts := opts
	buildOpts.ConfigOnly = cmd.Annotations[configOnly] == "true"
	built, err := builder(cmd.Context(), buildOpts)
	if err != nil {
		return err
	}
	app = built
	return nil
}

// requireApp returns the App or an error naming the missing service.
func requireApp(service string, present func(*App) bool) (*App, error) {
	if app == nil || !present(app) {
		return nil, fmt.Errorf("%s not configured", service)
	}
	return app, nil
}
