package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewCacheCmd creates the cache command and its subcommands.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the classifier verdict cache",
	}

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete cached verdicts older than --older-than",
		Args:  cobra.NoArgs,
		RunE:  withApp(runCachePrune),
	}
	prune.Flags().Duration("older-than", 30*24*time.Hour, "Maximum verdict age to keep")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Print cache statistics",
			Args:  cobra.NoArgs,
			RunE:  withApp(runCacheStats),
		},
		prune,
	)
	return cmd
}

func runCacheStats(cmd *cobra.Command, a *app, _ []string) error {
	stats, err := a.db.CacheStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Verdicts: %d\n", stats.Entries)
	if !stats.Oldest.IsZero() {
		fmt.Fprintf(out, "Oldest:   %s\n", stats.Oldest.Format(time.RFC3339))
	}
	return nil
}

func runCachePrune(cmd *cobra.Command, a *app, _ []string) error {
	maxAge, err := cmd.Flags().GetDuration("older-than")
	if err != nil {
		return err
	}
	n, err := a.db.PruneVerdicts(cmd.Context(), maxAge)
	if err != nil {
		return fmt.Errorf("failed to prune cache: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d cached verdict(s)\n", n)
	return nil
}
