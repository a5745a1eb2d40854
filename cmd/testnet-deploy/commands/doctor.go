package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/testnet-deploy/cmd/testnet-deploy/handlers"
)

// Doctor returns the command that checks local tools and configuration.
func Doctor(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check required tools and configuration",
		Long: `Check that the external tools are installed and that the configuration
is complete. No deployment is touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Doctor(cmd.Context(), *opts)
		},
	}
}
