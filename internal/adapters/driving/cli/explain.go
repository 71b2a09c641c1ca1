package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Manage change explanations",
}

var explainBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Explain changes that have no explanation yet",
	Long: `Writes a deterministic explanation for every change record that was never
explained, for example because the process exited before a background
explanation finished.`,
	Args: cobra.NoArgs,
	RunE: runExplainBackfill,
}

var explainChangeCmd = &cobra.Command{
	Use:   "change <change-id>",
	Short: "Explain one change now",
	Long: `Generates the explanation of one change record in the foreground.
Records that already have an explanation status are left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runExplainChange,
}

func init() {
	explainCmd.AddCommand(explainBackfillCmd)
	explainCmd.AddCommand(explainChangeCmd)
	rootCmd.AddCommand(explainCmd)
}

func runExplainBackfill(cmd *cobra.Command, _ []string) error {
	a, err := requireApp("explanation service", func(a *App) bool { return a.Explanation != nil })
	if err != nil {
		return err
	}

	n, err := a.Explanation.Backfill(cmd.Context())
	if err != nil {
		return fmt.Errorf("backfill failed after %d explanations: %w", n, err)
	}
	cmd.Printf("Explained %d change(s).\n", n)
	return nil
}

func runExplainChange(cmd *cobra.Command, args []string) error {
	a, err := requireApp("explanation service", func(a *App) bool { return a.Explanation != nil })
	if err != nil {
		return err
	}

	if err := a.Explanation.ExplainByID(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to explain %s: %w", args[0], err)
	}
	cmd.Printf("Change %s explained. Run 'changelens changes show %s' to read it.\n", args[0], args[0])
	return nil
}
