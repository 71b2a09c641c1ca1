package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/changelens/internal/core/domain"
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "List detected changes",
	Long: `Lists change records, most recent first, with their explanation status.
Use 'changelens changes show <id>' for the full explanation of one record.`,
	Args: cobra.NoArgs,
	RunE: runChangesList,
}

var changesShowCmd = &cobra.Command{
	Use:   "show <change-id>",
	Short: "Show one change and its explanation",
	Args:  cobra.ExactArgs(1),
	RunE:  runChangesShow,
}

var changesLimit int

func init() {
	changesCmd.Flags().IntVarP(&changesLimit, "limit", "n", 20, "Maximum number of changes to list (0 for all)")

	changesCmd.AddCommand(changesShowCmd)
	rootCmd.AddCommand(changesCmd)
}

func runChangesList(cmd *cobra.Command, _ []string) error {
	a, err := requireApp("change service", func(a *App) bool { return a.Changes != nil })
	if err != nil {
		return err
	}

	records, err := a.Changes.ListChanges(cmd.Context(), changesLimit)
	if err != nil {
		return fmt.Errorf("failed to list changes: %w", err)
	}
	if len(records) == 0 {
		cmd.Println("No changes detected yet.")
		return nil
	}

	for i := range records {
		r := &records[i]
		cmd.Printf("%s  %s  %-8s  %-6s  %-9s  %s\n",
			r.ID, formatTime(r.DetectedAt), r.ChangeType, r.Severity, explanationStatus(r), r.Summary)
	}
	return nil
}

func runChangesShow(cmd *cobra.Command, args []string) error {
	a, err := requireApp("change service", func(a *App) bool { return a.Changes != nil })
	if err != nil {
		return err
	}

	record, err := a.Changes.GetChange(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("change %s not found", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to get change: %w", err)
	}

	cmd.Printf("Change:    %s\n", record.ID)
	cmd.Printf("Type:      %s\n", record.ChangeType)
	cmd.Printf("Severity:  %s\n", record.Severity)
	cmd.Printf("Detected:  %s\n", formatTime(record.DetectedAt))
	cmd.Printf("Summary:   %s\n", record.Summary)

	if record.DocumentID != nil {
		doc, err := a.Changes.GetDocument(cmd.Context(), *record.DocumentID)
		if err == nil {
			cmd.Printf("Document:  %s\n", doc.FileName)
			if a.ResolveURL != nil {
				if link := a.ResolveURL(doc); link != "" {
					cmd.Printf("Link:      %s\n", link)
				}
			}
		}
	}

	printReason(cmd, record)
	cmd.Println()
	printExplanation(cmd, record)
	return nil
}

func printReason(cmd *cobra.Command, r *domain.ChangeRecord) {
	reason := r.Reason
	switch {
	case reason.OldName != "" || reason.NewName != "":
		cmd.Printf("Renamed:   %s -> %s\n", reason.OldName, reason.NewName)
	case reason.Reappeared:
		cmd.Println("Reason:    document reappeared after deletion")
	case reason.LastSeenName != "":
		cmd.Printf("Last seen: %s\n", reason.LastSeenName)
	case reason.BaselineDocCount > 0:
		cmd.Printf("Baseline:  %d documents\n", reason.BaselineDocCount)
	}
}

func printExplanation(cmd *cobra.Command, r *domain.ChangeRecord) {
	cmd.Printf("Explanation: %s\n", explanationStatus(r))

	if r.ExplanationMeta != nil {
		source := "deterministic"
		if meta, ok := r.ExplanationMeta.(domain.AIMeta); ok {
			source = "AI (" + meta.Model + ")"
		}
		cmd.Printf("Generated by: %s, confidence %s\n", source, r.ExplanationMeta.ConfidenceLevel())
	}
	if r.ExplanationError != "" {
		cmd.Printf("Note: %s\n", r.ExplanationError)
	}
	if r.ExplanationText != "" {
		cmd.Println()
		cmd.Println(r.ExplanationText)
	}

	b := r.ExplanationBullets
	if b == nil {
		return
	}
	printSection(cmd, "What changed", b.WhatChanged)
	printSection(cmd, "Why it matters", b.WhyItMatters)
	printSection(cmd, "Recommended actions", b.RecommendedActions)

	if len(b.Requirements) > 0 {
		cmd.Println()
		cmd.Println("New or changed requirements:")
		for _, req := range b.Requirements {
			line := req.Text
			if req.AppliesTo != "" {
				line += " (" + req.AppliesTo + ")"
			}
			cmd.Printf("  - %s\n", line)
		}
	}
}

func printSection(cmd *cobra.Command, title string, items []string) {
	if len(items) == 0 {
		return
	}
	cmd.Println()
	cmd.Println(title + ":")
	for _, item := range items {
		cmd.Printf("  - %s\n", strings.TrimSpace(item))
	}
}

func explanationStatus(r *domain.ChangeRecord) string {
	if r.ExplanationStatus == "" {
		return "queued"
	}
	return string(r.ExplanationStatus)
}
