package cli

import (
	"github.com/spf13/cobra"

	"github.com/vendhub/edge-gateway/internal/gateway"
)

const defaultConfigPath = "edge-gateway.yaml"

func newServeCmd() *cobra.Command {
	cfgPath := defaultConfigPath
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return gateway.Run(cfgPath)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "config yaml path")
	return cmd
}
