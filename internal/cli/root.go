// Package cli wires the gateway's command line surface.
package cli

import (
	"github.com/spf13/cobra"
)

// Execute runs the root command with os.Args.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "edge-gateway",
		Short:         "Edge dispatch gateway for the storefront API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		newServeCmd(),
		newRoutesCmd(),
		newVersionCmd(),
	)
	return cmd
}
