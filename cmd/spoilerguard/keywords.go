package main

import (
	"fmt"

	"github.com/nao1215/spoilerguard/internal/store"
	"github.com/spf13/cobra"
)

// NewKeywordsCmd creates the keywords command and its subcommands.
func NewKeywordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "Manage the spoiler keyword list",
		Long: `Keywords manages the persistent keyword list. Keywords are stored
lower-cased and trimmed; duplicates are ignored. Keywords shorter than
three characters are kept but never matched.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print every stored keyword",
			Args:  cobra.NoArgs,
			RunE:  withApp(runKeywordsList),
		},
		&cobra.Command{
			Use:   "add <keyword>...",
			Short: "Add keywords",
			Args:  cobra.MinimumNArgs(1),
			RunE:  withApp(runKeywordsAdd),
		},
		&cobra.Command{
			Use:   "remove <keyword>",
			Short: "Remove a keyword",
			Args:  cobra.ExactArgs(1),
			RunE:  withApp(runKeywordsRemove),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every keyword",
			Args:  cobra.NoArgs,
			RunE:  withApp(runKeywordsClear),
		},
	)
	return cmd
}

// withApp opens the application for a store-only command.
func withApp(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a, args)
	}
}

func runKeywordsList(cmd *cobra.Command, a *app, _ []string) error {
	resp, err := a.send(cmd.Context(), store.Request{Action: store.ActionGetKeywords})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(resp.Keywords) == 0 {
		fmt.Fprintln(out, "No keywords stored. Add some with: spoilerguard keywords add <keyword>")
		return nil
	}
	for _, k := range resp.Keywords {
		fmt.Fprintln(out, k)
	}
	return nil
}

func runKeywordsAdd(cmd *cobra.Command, a *app, args []string) error {
	resp, err := a.send(cmd.Context(), store.Request{Action: store.ActionAddKeywords, Keywords: args})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %d keyword(s)\n", resp.Changed)
	return nil
}

func runKeywordsRemove(cmd *cobra.Command, a *app, args []string) error {
	resp, err := a.send(cmd.Context(), store.Request{Action: store.ActionRemoveKeyword, Keyword: args[0]})
	if err != nil {
		return err
	}
	if resp.Changed == 0 {
		return fmt.Errorf("keyword not found: %q", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %q\n", args[0])
	return nil
}

func runKeywordsClear(cmd *cobra.Command, a *app, _ []string) error {
	if _, err := a.send(cmd.Context(), store.Request{Action: store.ActionSetKeywords, Keywords: []string{}}); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Keyword list cleared")
	return nil
}
