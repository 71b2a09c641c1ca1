package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/custodia-labs/changelens/internal/adapters/driven/ai"
	"github.com/custodia-labs/changelens/internal/adapters/driven/auth"
	"github.com/custodia-labs/changelens/internal/adapters/driven/config/file"
	"github.com/custodia-labs/changelens/internal/adapters/driven/dispatch"
	"github.com/custodia-labs/changelens/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/changelens/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/changelens/internal/adapters/driving/cli"
	"github.com/custodia-labs/changelens/internal/connectors/filesystem"
	"github.com/custodia-labs/changelens/internal/connectors/google"
	"github.com/custodia-labs/changelens/internal/connectors/google/drive"
	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
	"github.com/custodia-labs/changelens/internal/core/services"
	"github.com/custodia-labs/changelens/internal/logger"
	"github.com/custodia-labs/changelens/internal/normalisers"
)

// drainTimeout bounds how long exit waits for in-flight explanations.
// Unfinished ones keep an unset status and are picked up by backfill.
const drainTimeout = 30 * time.Second

// store is satisfied by both persistence backends.
type store interface {
	DocumentStore() driven.DocumentStore
	VersionStore() driven.VersionStore
	ChangeStore() driven.ChangeStore
	RunStore() driven.RunStore
	SchedulerStore() driven.SchedulerStore
	Close() error
}

// closer collects shutdown steps, run in reverse order.
type closer struct {
	steps []func(ctx context.Context) error
}

func (c *closer) add(step func(ctx context.Context) error) {
	c.steps = append(c.steps, step)
}

func (c *closer) close(ctx context.Context) error {
	var errs []error
	for i := len(c.steps) - 1; i >= 0; i-- {
		if err := c.steps[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// build wires adapters and services from the configuration.
func build(ctx context.Context, opts cli.Options) (*cli.App, error) {
	configStore, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	app := &cli.App{Settings: settings, SettingsService: settingsService}
	if opts.ConfigOnly {
		return app, nil
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configStore.Path(), err)
	}

	var cleanup closer
	app.Close = cleanup.close
	fail := func(err error) (*cli.App, error) {
		_ = cleanup.close(context.Background())
		return nil, err
	}

	st, err := openStore(opts, settings)
	if err != nil {
		return fail(err)
	}
	cleanup.add(func(context.Context) error { return st.Close() })

	// Explanations.
	aiResult := ai.Init(ctx, settings.Explain, &settings.LLM)
	cleanup.add(func(context.Context) error { aiResult.Close(); return nil })

	analyzer := services.NewChangeAnalyzer(settings.Vocabulary, settings.Explain.MaxChunks)
	aiExplainer := services.NewAIExplainer(aiResult.LLMService, analyzer,
		settings.Explain.AIEnabled, settings.Explain.PromptCharLimit)
	prompts, err := file.NewPromptStore(filepath.Join(filepath.Dir(configStore.Path()), "prompts"), services.DefaultPrompts())
	if err != nil {
		return fail(fmt.Errorf("prompt store: %w", err))
	}
	aiExplainer.SetPromptStore(prompts)

	explanation := services.NewExplanationService(st.ChangeStore(), st.VersionStore(),
		services.NewDeterministicExplainer(analyzer), aiExplainer, settings.Explain.Enabled)

	dispatcher := newDispatcher(settings, explanation, &cleanup)

	// Source.
	tokens, err := auth.NewTokenProvider(settings.Source, settings.Auth)
	if err != nil {
		return fail(fmt.Errorf("token provider: %w", err))
	}
	if login, ok := tokens.(*auth.TokenFileProvider); ok {
		app.Login = login
	}

	lister, err := newLister(ctx, settings.Source.Type, tokens)
	if err != nil {
		return fail(err)
	}

	classifier := services.NewClassifier(st.DocumentStore(), st.VersionStore(), st.ChangeStore(),
		lister, dispatcher, settings.Source.MIMETypes)
	ingestion := services.NewIngestionService(st.RunStore(), classifier, tokens)

	app.Ingestion = ingestion
	app.Explanation = explanation
	app.Changes = services.NewChangeService(st.ChangeStore(), st.DocumentStore(), st.RunStore())
	app.Scheduler = services.NewScheduler(domain.SchedulerConfigFrom(settings.Scheduler),
		st.SchedulerStore(), ingestion, explanation, settings.Source.Location)
	app.ResolveURL = urlResolver(settings.Source.Type)

	return app, nil
}

func openStore(opts cli.Options, settings *domain.Settings) (store, error) {
	if opts.Memory {
		logger.Info("Using in-memory storage; nothing is kept after exit")
		return memory.NewStore(), nil
	}
	st, err := sqlite.NewStore(settings.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Debug("Database: %s", st.Path())
	return st, nil
}

// newDispatcher picks the explanation dispatcher and registers its shutdown.
func newDispatcher(settings *domain.Settings, explanation *services.ExplanationService, cleanup *closer) driven.ExplanationDispatcher {
	if settings.Dispatch.Mode == domain.DispatchAsynq {
		d := dispatch.NewAsynq(settings.Dispatch.RedisAddr)
		cleanup.add(func(context.Context) error { return d.Close() })
		return d
	}

	d := dispatch.NewGoroutine(explanation, settings.Explain.MaxInFlight)
	cleanup.add(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, drainTimeout)
		defer cancel()
		if err := d.Drain(ctx); err != nil {
			return fmt.Errorf("explanations still running after %s; backfill will finish them: %w", drainTimeout, err)
		}
		return nil
	})
	return d
}

func newLister(ctx context.Context, sourceType domain.SourceType, tokens driven.TokenProvider) (driven.FileLister, error) {
	registry := normalisers.NewDefaultRegistry()

	switch sourceType {
	case domain.SourceTypeGoogleDrive:
		svc, err := google.NewDriveService(ctx, google.NewTokenSource(ctx, tokens))
		if err != nil {
			return nil, fmt.Errorf("drive client: %w", err)
		}
		return drive.NewLister(svc, registry, drive.DefaultConfig()), nil
	case domain.SourceTypeFilesystem:
		return filesystem.New(registry), nil
	default:
		return nil, fmt.Errorf("%w: source type %q", domain.ErrInvalidInput, sourceType)
	}
}

func urlResolver(sourceType domain.SourceType) func(doc *domain.Document) string {
	if sourceType == domain.SourceTypeGoogleDrive {
		return func(doc *domain.Document) string {
			return drive.ResolveURL(doc.ExternalID, doc.MIMEType)
		}
	}
	return func(doc *domain.Document) string {
		return filesystem.ResolveURL(doc.ExternalID)
	}
}
