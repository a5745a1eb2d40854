package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imamik/testnet-deploy/cmd/testnet-deploy/handlers"
	"github.com/imamik/testnet-deploy/internal/ansible"
)

// Start returns the command that starts stopped node services.
func Start(opts *handlers.Options) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the node services of a deployment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.StartNodes(cmd.Context(), *opts, name)
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Name of the deployment")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// Upgrade returns the command that upgrades antnode on every node machine.
func Upgrade(opts *handlers.Options) *cobra.Command {
	var (
		name string
		up   ansible.UpgradeOptions
		env  []string
	)

	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade the node binary across a deployment",
		Long: `Upgrade antnode on every machine that runs nodes. Genesis is upgraded last,
then the faucet it hosts.

Examples:
  testnet-deploy upgrade --name beta
  testnet-deploy upgrade --name beta --version 0.3.2 --interval 500ms`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if up.Interval <= 0 {
				return fmt.Errorf("interval must be positive, got %s", up.Interval)
			}
			vars, err := parseEnvVars(env)
			if err != nil {
				return err
			}
			up.EnvVariables = vars
			up.Version = strings.TrimPrefix(strings.TrimSpace(up.Version), "v")
			return handlers.Upgrade(cmd.Context(), handlers.UpgradeArgs{Options: *opts, Name: name, Upgrade: up})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&name, "name", "n", "", "Name of the deployment")
	_ = cmd.MarkFlagRequired("name")
	f.StringVar(&up.Version, "version", "", "antnode version to install (default: latest)")
	f.BoolVar(&up.Force, "force", false, "Upgrade nodes already running the version")
	f.DurationVar(&up.Interval, "interval", ansible.DefaultUpgradeInterval, "Pause between node restarts on a machine")
	f.StringArrayVar(&env, "env", nil, "Environment variable for node processes as KEY=VALUE (repeatable)")
	return cmd
}

// UpgradeAntctl returns the command that upgrades the node manager.
func UpgradeAntctl(opts *handlers.Options) *cobra.Command {
	var name, version string

	cmd := &cobra.Command{
		Use:   "upgrade-antctl",
		Short: "Upgrade the node manager across a deployment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			version = strings.TrimPrefix(strings.TrimSpace(version), "v")
			if version == "" {
				return fmt.Errorf("version cannot be empty")
			}
			return handlers.UpgradeNodeManager(cmd.Context(), *opts, name, version)
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Name of the deployment")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&version, "version", "", "antctl version to install")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}
