package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/testnet-deploy/cmd/testnet-deploy/handlers"
	"github.com/imamik/testnet-deploy/internal/provisioning"
)

// Upscale returns the command that grows an existing deployment.
//
// Counts that are not given keep their current value. Counts may only grow.
func Upscale(opts *handlers.Options) *cobra.Command {
	var (
		name     string
		plan     bool
		infra    bool
		strict   bool
		node     nodeFlags
		wallet   string
		counts   = map[string]*int{}
		countVal = func(flag string) *int {
			v := new(int)
			counts[flag] = v
			return v
		}
	)

	cmd := &cobra.Command{
		Use:   "upscale",
		Short: "Add VMs or node processes to a deployment",
		Long: `Grow an existing deployment.

Desired counts are compared with the stored deployment snapshot. Counts that
would shrink the deployment are rejected before anything changes. New VMs are
created, waited for and configured in dependency order; stage failures are
reported at the end without aborting the run.

Examples:
  # Add two generic node VMs
  testnet-deploy upscale --name beta --generic-node-vm-count 5

  # Show what would change
  testnet-deploy upscale --name beta --generic-node-vm-count 5 --plan`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateLogFormat(node.logFormat); err != nil {
				return err
			}
			env, err := node.envVars()
			if err != nil {
				return err
			}
			up := provisioning.UpscaleOptions{
				Plan:                   plan,
				InfraOnly:              infra,
				PublicRPC:              node.publicRPC,
				MaxArchivedLogFiles:    node.maxArchivedLogFiles,
				MaxLogFiles:            node.maxLogFiles,
				LogFormat:              node.logFormat,
				EnvVariables:           env,
				FundingWalletSecretKey: wallet,
			}
			d := &up.Desired
			d.PeerCacheVMs = optionalInt(cmd, "peer-cache-node-vm-count", *counts["peer-cache-node-vm-count"])
			d.PeerCacheInstances = optionalInt(cmd, "peer-cache-node-count", *counts["peer-cache-node-count"])
			d.GenericVMs = optionalInt(cmd, "generic-node-vm-count", *counts["generic-node-vm-count"])
			d.GenericInstances = optionalInt(cmd, "generic-node-count", *counts["generic-node-count"])
			d.FullConePrivateVMs = optionalInt(cmd, "full-cone-private-node-vm-count", *counts["full-cone-private-node-vm-count"])
			d.FullConePrivateInstances = optionalInt(cmd, "full-cone-private-node-count", *counts["full-cone-private-node-count"])
			d.SymmetricPrivateVMs = optionalInt(cmd, "symmetric-private-node-vm-count", *counts["symmetric-private-node-vm-count"])
			d.SymmetricPrivateInstances = optionalInt(cmd, "symmetric-private-node-count", *counts["symmetric-private-node-count"])
			d.UploaderVMs = optionalInt(cmd, "uploader-vm-count", *counts["uploader-vm-count"])
			d.UploadersPerVM = optionalInt(cmd, "uploaders-count", *counts["uploaders-count"])
			d.AuditorVMs = optionalInt(cmd, "auditor-vm-count", *counts["auditor-vm-count"])

			return handlers.Upscale(cmd.Context(), handlers.UpscaleArgs{
				Options: *opts,
				Name:    name,
				Upscale: up,
				Strict:  strict,
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&name, "name", "n", "", "Name of the deployment")
	_ = cmd.MarkFlagRequired("name")
	f.BoolVar(&plan, "plan", false, "Print the infrastructure plan without applying it")
	f.BoolVar(&infra, "infra-only", false, "Stop after creating the infrastructure")
	f.BoolVar(&strict, "strict", false, "Exit non-zero when any stage failed")
	f.StringVar(&wallet, "funding-wallet-secret-key", "", "Secret key of the wallet funding new uploaders")

	f.IntVar(countVal("peer-cache-node-vm-count"), "peer-cache-node-vm-count", 0, "Desired number of peer cache VMs")
	f.IntVar(countVal("peer-cache-node-count"), "peer-cache-node-count", 0, "Desired peer cache nodes per VM")
	f.IntVar(countVal("generic-node-vm-count"), "generic-node-vm-count", 0, "Desired number of generic node VMs")
	f.IntVar(countVal("generic-node-count"), "generic-node-count", 0, "Desired generic nodes per VM")
	f.IntVar(countVal("full-cone-private-node-vm-count"), "full-cone-private-node-vm-count", 0, "Desired number of full cone private node VMs")
	f.IntVar(countVal("full-cone-private-node-count"), "full-cone-private-node-count", 0, "Desired full cone private nodes per VM")
	f.IntVar(countVal("symmetric-private-node-vm-count"), "symmetric-private-node-vm-count", 0, "Desired number of symmetric private node VMs")
	f.IntVar(countVal("symmetric-private-node-count"), "symmetric-private-node-count", 0, "Desired symmetric private nodes per VM")
	f.IntVar(countVal("uploader-vm-count"), "uploader-vm-count", 0, "Desired number of uploader VMs")
	f.IntVar(countVal("uploaders-count"), "uploaders-count", 0, "Desired uploaders per VM")
	f.IntVar(countVal("auditor-vm-count"), "auditor-vm-count", 0, "Desired number of auditor VMs")
	node.bind(cmd)

	return cmd
}
