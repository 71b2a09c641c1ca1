package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/changelens/internal/logger"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run periodic ingestion and explanation backfill",
	Long: `Runs in the foreground, ingesting the configured source location and
backfilling unexplained changes on the intervals set in the [scheduler]
section of the config file. Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	a, err := requireApp("scheduler", func(a *App) bool { return a.Scheduler != nil })
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	go func() {
		<-ctx.Done()
		if err := a.Scheduler.Stop(); err != nil {
			logger.Warn("Stopping scheduler: %v", err)
		}
	}()

	cmd.Println("Scheduler running. Press Ctrl+C to stop.")
	err = a.Scheduler.Start(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
