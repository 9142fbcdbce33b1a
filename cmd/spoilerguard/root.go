package main

import (
	"fmt"
	"os"

	"github.com/nao1215/spoilerguard/internal/config"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for spoilerguard.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spoilerguard",
		Short: "Hide spoilers in web pages behind click-to-reveal placeholders",
		Long: `spoilerguard scans web pages for spoilers and replaces them with
placeholders that can be revealed one at a time.

Detection uses a persistent keyword list and, when configured, a remote
spoiler classifier. Revealing a keyword-based spoiler stops that keyword
from being hidden again on the same page.

Keywords, the detection mode and the classifier verdict cache live in a
SQLite database in the XDG data directory.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .spoilerguard in current or home directory)")
	cmd.PersistentFlags().String("db-dir", config.XDGDataDir(),
		"Directory holding the spoilerguard database")
	cmd.PersistentFlags().String("log-format", "text", "Log format: text or json")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewKeywordsCmd())
	cmd.AddCommand(NewIgnoredCmd())
	cmd.AddCommand(NewModeCmd())
	cmd.AddCommand(NewCacheCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
