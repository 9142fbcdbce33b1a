package main

import (
	"fmt"

	"github.com/nao1215/spoilerguard/internal/store"
	"github.com/spf13/cobra"
)

// NewIgnoredCmd creates the ignored command and its subcommands.
func NewIgnoredCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ignored",
		Short: "Inspect keywords revealed on the last page",
		Long: `Revealing a keyword-based spoiler stops that keyword from being hidden
on the same page. The list belongs to one page URL and is dropped when a
different page is loaded.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print the ignored keywords and their page",
			Args:  cobra.NoArgs,
			RunE:  withApp(runIgnoredList),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Forget the ignored keywords",
			Args:  cobra.NoArgs,
			RunE:  withApp(runIgnoredClear),
		},
	)
	return cmd
}

func runIgnoredList(cmd *cobra.Command, a *app, _ []string) error {
	resp, err := a.send(cmd.Context(), store.Request{Action: store.ActionGetIgnoredKeywords})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(resp.IgnoredKeywords) == 0 {
		fmt.Fprintln(out, "No ignored keywords")
		return nil
	}
	fmt.Fprintf(out, "Page: %s\n", resp.PageURL)
	for _, k := range resp.IgnoredKeywords {
		fmt.Fprintf(out, "  %s\n", k)
	}
	return nil
}

func runIgnoredClear(cmd *cobra.Command, a *app, _ []string) error {
	if _, err := a.send(cmd.Context(), store.Request{Action: store.ActionClearIgnoredKeywords}); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Ignored keywords cleared")
	return nil
}
