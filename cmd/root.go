// Package cmd defines the CLI commands for the scoutbot executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scoutbot",
		Short: "A username reconnaissance bot core.",
		Long: `scoutbot runs username searches against hundreds of sites through a
pluggable scan engine, guards them behind a permission gate, and delivers
paginated results and report artifacts to configured channels.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./scoutbot.yaml)")

	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
