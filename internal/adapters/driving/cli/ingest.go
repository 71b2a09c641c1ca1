package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/changelens/internal/core/domain"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [location]",
	Short: "Scan the document folder and record changes",
	Long: `Runs one ingestion against the configured source location, or against
location when given. For Google Drive the location is a folder ID or URL;
for the filesystem source it is a directory path.

Only one ingestion runs at a time. If another run is in progress the
command exits without starting a new one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent ingestion runs",
	RunE:  runRuns,
}

var runsLimit int

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(runsCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := requireApp("ingestion service", func(a *App) bool { return a.Ingestion != nil })
	if err != nil {
		return err
	}

	location, err := resolveLocation(a, args)
	if err != nil {
		return err
	}

	cmd.Printf("Ingesting %s...\n", location)
	run, err := a.Ingestion.RunNow(cmd.Context(), location)
	if errors.Is(err, domain.ErrIngestionInProgress) {
		cmd.Println("Another ingestion is already running; nothing to do.")
		return nil
	}
	if run != nil {
		printRun(cmd, run)
	}
	if errors.Is(err, domain.ErrAuthRequired) {
		cmd.Println("Sign in with 'changelens auth login' and run ingest again.")
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

func runRuns(cmd *cobra.Command, _ []string) error {
	a, err := requireApp("change service", func(a *App) bool { return a.Changes != nil })
	if err != nil {
		return err
	}

	runs, err := a.Changes.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		cmd.Println("No ingestion runs yet.")
		return nil
	}

	for i := range runs {
		r := &runs[i]
		cmd.Printf("%s  %-11s  %s  docs=%d changes=%d  %s\n",
			r.ID, r.Status, formatTime(r.CreatedAt), r.DocumentsProcessed, r.ChangesDetected, r.Location)
		if r.Error != "" {
			cmd.Printf("    error: %s\n", r.Error)
		}
	}
	return nil
}

// resolveLocation picks the location argument or the configured one.
func resolveLocation(a *App, args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if a.Settings != nil && a.Settings.Source.Location != "" {
		return a.Settings.Source.Location, nil
	}
	return "", errors.New("no location given and source.location is not configured")
}

func printRun(cmd *cobra.Command, run *domain.IngestionRun) {
	cmd.Printf("Run %s: %s\n", run.ID, run.Status)
	cmd.Printf("  Documents processed: %d\n", run.DocumentsProcessed)
	cmd.Printf("  Changes detected:    %d\n", run.ChangesDetected)
	if run.FinishedAt != nil {
		cmd.Printf("  Duration:            %s\n", run.FinishedAt.Sub(run.CreatedAt).Round(time.Millisecond))
	}
	if run.Error != "" {
		cmd.Printf("  Error:               %s\n", run.Error)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
