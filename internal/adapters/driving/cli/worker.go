package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/changelens/internal/adapters/driven/dispatch"
	"github.com/custodia-labs/changelens/internal/core/domain"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume queued explanation tasks",
	Long: `Runs an explanation worker against the Redis server in dispatch.redis_addr.
Use it with dispatch.mode = "asynq", where ingestion enqueues explanations
instead of running them in-process. Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

// runWorkerFn is replaced in tests.
var runWorkerFn = dispatch.RunWorker

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	a, err := requireApp("explanation service", func(a *App) bool { return a.Explanation != nil })
	if err != nil {
		return err
	}

	settings := domain.DefaultSettings().Dispatch
	if a.Settings != nil {
		settings = a.Settings.Dispatch
	}
	if settings.Mode != domain.DispatchAsynq {
		cmd.Printf("Note: dispatch.mode is %q; ingestion will not enqueue tasks for this worker.\n", settings.Mode)
	}

	err = runWorkerFn(cmd.Context(), settings.RedisAddr, settings.WorkerConcurrency, a.Explanation)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
