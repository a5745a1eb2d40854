package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/testnet-deploy/cmd/testnet-deploy/handlers"
)

// Inventory returns the command that lists the machines of a deployment.
func Inventory(opts *handlers.Options) *cobra.Command {
	var (
		name         string
		forceRefresh bool
	)

	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "List the machines of a deployment by role",
		Long: `List the machines of a deployment grouped by role, as the dynamic
inventory reports them.

Examples:
  testnet-deploy inventory --name beta
  testnet-deploy inventory --name beta --force-refresh`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Inventory(cmd.Context(), *opts, name, forceRefresh)
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Name of the deployment")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().BoolVar(&forceRefresh, "force-refresh", false, "Bypass the inventory cache")

	return cmd
}
