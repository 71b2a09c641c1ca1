package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/changelens/internal/connectors/filesystem"
	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driving"
	"github.com/custodia-labs/changelens/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest a local folder whenever it changes",
	Long: `Watches a local directory and runs an ingestion after each burst of file
changes. An initial ingestion runs on start. Changes that arrive while an
ingestion is running are dropped; the next burst picks them up.

Requires source.type = "filesystem". Stop with Ctrl+C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

var watchDebounce time.Duration

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", filesystem.DefaultDebounce,
		"Quiet period after the last change before ingesting")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := requireApp("ingestion service", func(a *App) bool { return a.Ingestion != nil })
	if err != nil {
		return err
	}
	if a.Settings != nil && a.Settings.Source.Type != domain.SourceTypeFilesystem {
		return fmt.Errorf("watch needs a filesystem source, source.type is %q", a.Settings.Source.Type)
	}

	dir, err := resolveLocation(a, args)
	if err != nil {
		return err
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}

	ctx := cmd.Context()
	watcher := filesystem.NewWatcher(dir, watchDebounce)
	defer watcher.Close()

	batches, err := watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	cmd.Printf("Watching %s. Press Ctrl+C to stop.\n", dir)
	ingestOnce(ctx, cmd, a.Ingestion, dir)
	return watchLoop(ctx, cmd, a.Ingestion, dir, batches)
}

// watchLoop runs one ingestion per batch until batches is closed or ctx ends.
func watchLoop(
	ctx context.Context,
	cmd *cobra.Command,
	ingestion driving.IngestionService,
	dir string,
	batches <-chan []string,
) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case paths, ok := <-batches:
			if !ok {
				return nil
			}
			logger.Debug("%d path(s) changed under %s", len(paths), dir)
			ingestOnce(ctx, cmd, ingestion, dir)
		}
	}
}

// ingestOnce triggers a run and reports the outcome. A run already in
// progress drops the trigger.
func ingestOnce(ctx context.Context, cmd *cobra.Command, ingestion driving.IngestionService, dir string) {
	run, err := ingestion.RunNow(ctx, dir)
	switch {
	case errors.Is(err, domain.ErrIngestionInProgress):
		logger.Info("Ingestion already running; change batch dropped")
	case err != nil:
		logger.Warn("Ingestion of %s failed: %v", dir, err)
	case run != nil:
		cmd.Printf("%s  run %s: %d documents, %d changes\n",
			formatTime(time.Now()), run.ID, run.DocumentsProcessed, run.ChangesDetected)
	}
}
