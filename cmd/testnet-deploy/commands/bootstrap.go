package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/imamik/testnet-deploy/cmd/testnet-deploy/handlers"
	"github.com/imamik/testnet-deploy/internal/deployment"
	"github.com/imamik/testnet-deploy/internal/provisioning"
)

// Bootstrap returns the command that creates a deployment joining a running
// network.
//
// Binaries are either released versions (--node-version, --antctl-version)
// or a source build (--repo-owner, --branch).
func Bootstrap(opts *handlers.Options) *cobra.Command {
	var (
		b         provisioning.BootstrapOptions
		envType   string
		evm       string
		networkID uint8
		strict    bool
		node      nodeFlags
		logstash  string
		stashHost []string
	)

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create a deployment that joins an existing network",
		Long: `Create a deployment whose nodes join a network that is already running.

The deployment record is stored before any VM is created, so a failed run can
be inspected or upscaled later. Nodes are provisioned against the given
bootstrap peer; there is no genesis node.

Examples:
  # Join with released binaries
  testnet-deploy bootstrap --name gamma --bootstrap-peer /ip4/10.0.0.1/udp/12000/quic-v1/p2p/12D3Koo... \
    --node-version 0.3.2 --antctl-version 0.11.3

  # Join with binaries built from a branch
  testnet-deploy bootstrap --name gamma --bootstrap-peer /ip4/... --repo-owner maidsafe --branch main`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if b.EnvironmentType, err = deployment.ParseEnvironmentType(envType); err != nil {
				return err
			}
			if b.EvmNetwork, err = deployment.ParseEvmNetwork(evm); err != nil {
				return err
			}
			if err := validateLogFormat(node.logFormat); err != nil {
				return err
			}
			if b.EnvVariables, err = node.envVars(); err != nil {
				return err
			}
			if cmd.Flags().Changed("network-id") {
				id := networkID
				b.NetworkID = &id
			}
			if logstash != "" {
				b.Logstash = &deployment.LogstashDetails{StackName: logstash, Hosts: stashHost}
			}
			b.BootstrapPeer = strings.TrimSpace(b.BootstrapPeer)
			b.PublicRPC = node.publicRPC
			b.MaxArchivedLogFiles = node.maxArchivedLogFiles
			b.MaxLogFiles = node.maxLogFiles
			b.LogFormat = node.logFormat

			return handlers.Bootstrap(cmd.Context(), handlers.BootstrapArgs{
				Options:   *opts,
				Bootstrap: b,
				Strict:    strict,
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&b.Name, "name", "n", "", "Name of the new deployment")
	_ = cmd.MarkFlagRequired("name")
	f.StringVar(&b.BootstrapPeer, "bootstrap-peer", "", "Multiaddr of a peer in the running network")
	_ = cmd.MarkFlagRequired("bootstrap-peer")
	f.StringVar(&envType, "environment-type", string(deployment.EnvironmentDevelopment), "Environment type: development, staging or production")
	f.StringVar(&evm, "evm-network", string(deployment.EvmArbitrumOne), "EVM network: arbitrum-one, arbitrum-sepolia or custom")
	f.StringVar(&b.RewardsAddress, "rewards-address", "", "Address that receives node rewards")
	f.Uint8Var(&networkID, "network-id", 0, "Network ID the nodes join")
	f.BoolVar(&strict, "strict", false, "Exit non-zero when any stage failed")

	f.StringVar(&b.Binary.NodeVersion, "node-version", "", "Released antnode version")
	f.StringVar(&b.Binary.AntctlVersion, "antctl-version", "", "Released antctl version")
	f.StringVar(&b.Binary.RepoOwner, "repo-owner", "", "Owner of the repository to build binaries from")
	f.StringVar(&b.Binary.Branch, "branch", "", "Branch to build binaries from")
	cmd.MarkFlagsRequiredTogether("repo-owner", "branch")

	f.IntVar(&b.GenericVMs, "generic-node-vm-count", 0, "Generic node VMs")
	f.IntVar(&b.GenericInstances, "generic-node-count", 0, "Generic nodes per VM (0 uses the environment default)")
	f.IntVar(&b.FullConePrivateVMs, "full-cone-private-node-vm-count", 0, "Full cone private node VMs")
	f.IntVar(&b.FullConePrivateInstances, "full-cone-private-node-count", 0, "Full cone private nodes per VM")
	f.IntVar(&b.SymmetricPrivateVMs, "symmetric-private-node-vm-count", 0, "Symmetric private node VMs")
	f.IntVar(&b.SymmetricPrivateInstances, "symmetric-private-node-count", 0, "Symmetric private nodes per VM")

	f.StringVar(&logstash, "logstash-stack-name", "", "Logstash stack the nodes ship logs to")
	f.StringSliceVar(&stashHost, "logstash-host", nil, "Logstash host as HOST:PORT (repeatable)")
	node.bind(cmd)

	return cmd
}
