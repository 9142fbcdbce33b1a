package main

import (
	"fmt"

	"github.com/nao1215/spoilerguard/internal/store"
	"github.com/spf13/cobra"
)

// NewModeCmd creates the mode command and its subcommands.
func NewModeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Show or change the detection mode",
		Long: `Mode selects the detectors that run:

  both      keywords and the remote classifier (default)
  api       the remote classifier only
  keywords  the keyword list only`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the stored detection mode",
			Args:  cobra.NoArgs,
			RunE:  withApp(runModeGet),
		},
		&cobra.Command{
			Use:       "set <both|api|keywords>",
			Short:     "Store a new detection mode",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{"both", "api", "keywords"},
			RunE:      withApp(runModeSet),
		},
	)
	return cmd
}

func runModeGet(cmd *cobra.Command, a *app, _ []string) error {
	resp, err := a.send(cmd.Context(), store.Request{Action: store.ActionGetDetectionMode})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.DetectionMode)
	return nil
}

func runModeSet(cmd *cobra.Command, a *app, args []string) error {
	resp, err := a.send(cmd.Context(), store.Request{Action: store.ActionSetDetectionMode, DetectionMode: args[0]})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Detection mode set to %s\n", resp.DetectionMode)
	return nil
}
