// Package cli holds the gildedrose command tree.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath string
	debug      bool
}

// NewRootCmd builds the command tree. Without a subcommand it serves.
func NewRootCmd() *cobra.Command {
	f := &rootFlags{}

	cmd := &cobra.Command{
		Use:          "gildedrose",
		Short:        "Inventory server that ages shop stock every night",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), f)
		},
	}
	cmd.PersistentFlags().StringVarP(&f.configPath, "config", "c", "config/config.yaml", "path to the YAML config file")
	cmd.PersistentFlags().BoolVar(&f.debug, "debug", false, "development logging and gin debug mode")

	cmd.AddCommand(
		serveCmd(f),
		simulateCmd(),
		seedCmd(f),
		advanceCmd(f),
	)
	return cmd
}
