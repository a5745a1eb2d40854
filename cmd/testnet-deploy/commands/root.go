// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/testnet-deploy/cmd/testnet-deploy/handlers"
)

// Root returns the root command for the testnet-deploy CLI.
func Root() *cobra.Command {
	var opts handlers.Options

	cmd := &cobra.Command{
		Use:           "testnet-deploy",
		Short:         "Deploy and grow test networks on Hetzner Cloud",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: testnet-deploy.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", ".", "Directory holding the configuration and .env files")

	// Deployment commands
	cmd.AddCommand(Upscale(&opts))
	cmd.AddCommand(Bootstrap(&opts))
	cmd.AddCommand(Inventory(&opts))
	cmd.AddCommand(Logs(&opts))

	// Node maintenance commands
	cmd.AddCommand(Start(&opts))
	cmd.AddCommand(Upgrade(&opts))
	cmd.AddCommand(UpgradeAntctl(&opts))

	// Utility commands
	cmd.AddCommand(Doctor(&opts))
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}
