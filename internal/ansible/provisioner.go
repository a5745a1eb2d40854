package ansible

import (
	"context"
	"fmt"
	"strconv"

	"github.com/imamik/testnet-deploy/internal/deployment"
	"github.com/imamik/testnet-deploy/internal/provisioning"
)

// Playbooks.
const (
	PlaybookGenesis    = "genesis_node.yml"
	PlaybookNodes      = "nodes.yml"
	PlaybookNatGateway = "nat_gateway.yml"
	PlaybookUploaders  = "uploaders.yml"
	PlaybookAuditor    = "auditor.yml"
	PlaybookBuild      = "build.yml"
	PlaybookFaucet     = "faucet.yml"
	PlaybookLogs       = "logs.yml"
)

// Node types understood by the nodes playbook.
const (
	nodeTypeBootstrap = "bootstrap_node"
	nodeTypeGeneric   = "generic_node"
)

// Provisioner maps stages onto playbooks and renders their extra vars. It
// implements provisioning.Provisioner.
type Provisioner struct {
	Backend  provisioning.ConfigBackend
	Provider string
}

var _ provisioning.Provisioner = (*Provisioner)(nil)

// NewProvisioner creates a provisioner that runs playbooks through backend.
func NewProvisioner(backend provisioning.ConfigBackend, provider string) *Provisioner {
	return &Provisioner{Backend: backend, Provider: provider}
}

// Procedure returns the playbook that configures role.
func (p *Provisioner) Procedure(role deployment.RoleCategory) string {
	switch role {
	case deployment.RoleGenesis:
		return PlaybookGenesis
	case deployment.RoleFullConeNatGateway, deployment.RoleSymmetricNatGateway:
		return PlaybookNatGateway
	case deployment.RoleUploader:
		return PlaybookUploaders
	case deployment.RoleAuditor:
		return PlaybookAuditor
	case deployment.RoleBuild:
		return PlaybookBuild
	}
	return PlaybookNodes
}

// ProvisionRole runs the role's playbook with vars derived from opts. ep is
// the network entry point for roles that join the network.
func (p *Provisioner) ProvisionRole(ctx context.Context, role deployment.RoleCategory, opts *deployment.ProvisionOptions, ep provisioning.EntryPoint) error {
	vars, err := p.RoleExtraVars(role, opts, ep)
	if err != nil {
		return err
	}
	return p.Backend.RunProcedure(ctx, provisioning.ProcedureRun{
		Procedure: p.Procedure(role),
		Role:      role,
		User:      opts.SSHUser,
		ExtraVars: vars,
	})
}

// RoleExtraVars renders the extra vars document for role.
func (p *Provisioner) RoleExtraVars(role deployment.RoleCategory, opts *deployment.ProvisionOptions, ep provisioning.EntryPoint) (string, error) {
	spec, ok := deployment.Lookup(role)
	if !ok {
		return "", &provisioning.UnsupportedRoleError{Role: role}
	}

	b := p.base(opts)
	switch role {
	case deployment.RoleGenesis:
		p.addNodeVars(b, opts, nodeTypeBootstrap, "", opts.Counts.Get(role).InstancesPerVM)
	case deployment.RolePeerCache:
		if err := requireEntryPoint(role, ep); err != nil {
			return "", err
		}
		p.addNodeVars(b, opts, nodeTypeBootstrap, ep.Multiaddr, opts.Counts.Get(role).InstancesPerVM)
	case deployment.RoleGeneric, deployment.RoleFullConePrivate, deployment.RoleSymmetricPrivate:
		if err := requireEntryPoint(role, ep); err != nil {
			return "", err
		}
		p.addNodeVars(b, opts, nodeTypeGeneric, ep.Multiaddr, opts.Counts.Get(role).InstancesPerVM)
		if spec.Gateway != "" {
			b.Add("make_vm_private", "true")
			b.Add("nat_gateway_type", natType(spec.Gateway))
		}
	case deployment.RoleFullConeNatGateway, deployment.RoleSymmetricNatGateway:
		b.Add("nat_gateway_type", natType(role))
	case deployment.RoleUploader:
		if err := requireEntryPoint(role, ep); err != nil {
			return "", err
		}
		b.Add("genesis_multiaddr", ep.Multiaddr)
		b.addBinaries(opts.Name, opts.Binary)
		b.Add("uploaders_count", strconv.Itoa(opts.Counts.Get(role).InstancesPerVM))
		p.addEvmVars(b, opts)
	case deployment.RoleAuditor:
		if err := requireEntryPoint(role, ep); err != nil {
			return "", err
		}
		b.Add("genesis_multiaddr", ep.Multiaddr)
		b.addBinaries(opts.Name, opts.Binary)
	case deployment.RoleBuild:
		return p.BuildExtraVars(opts), nil
	}
	return b.Build(), nil
}

// StartFaucet starts the faucet on the genesis machine.
func (p *Provisioner) StartFaucet(ctx context.Context, opts *deployment.ProvisionOptions, ep provisioning.EntryPoint) error {
	return p.runFaucet(ctx, opts, ep, "start")
}

// StopFaucet stops the faucet started by StartFaucet.
func (p *Provisioner) StopFaucet(ctx context.Context, opts *deployment.ProvisionOptions, ep provisioning.EntryPoint) error {
	return p.runFaucet(ctx, opts, ep, "stop")
}

func (p *Provisioner) runFaucet(ctx context.Context, opts *deployment.ProvisionOptions, ep provisioning.EntryPoint, action string) error {
	if err := requireEntryPoint(deployment.RoleGenesis, ep); err != nil {
		return err
	}
	b := p.base(opts)
	b.Add("genesis_multiaddr", ep.Multiaddr)
	b.Add("action", action)
	b.addBinaries(opts.Name, opts.Binary)
	if opts.FundingWalletSecretKey != "" {
		b.Add("funding_wallet_secret_key", opts.FundingWalletSecretKey)
	}
	p.addEvmVars(b, opts)
	return p.Backend.RunProcedure(ctx, provisioning.ProcedureRun{
		Procedure: PlaybookFaucet,
		Role:      deployment.RoleGenesis,
		User:      opts.SSHUser,
		ExtraVars: b.Build(),
	})
}

// BuildBinaries compiles the node binaries on the build VM.
func (p *Provisioner) BuildBinaries(ctx context.Context, opts *deployment.ProvisionOptions) error {
	return p.Backend.RunProcedure(ctx, provisioning.ProcedureRun{
		Procedure: PlaybookBuild,
		Role:      deployment.RoleBuild,
		User:      opts.SSHUser,
		ExtraVars: p.BuildExtraVars(opts),
	})
}

// BuildExtraVars renders the vars for the build playbook.
func (p *Provisioner) BuildExtraVars(opts *deployment.ProvisionOptions) string {
	b := NewExtraVarsBuilder()
	b.addBuildVars(opts.Name, opts.Binary)
	return b.Build()
}

// CopyLogs runs the logs playbook against the genesis and generic groups,
// pulling node logs onto the control machine. With resourcesOnly only the
// resource usage logs are copied.
func (p *Provisioner) CopyLogs(ctx context.Context, name, user string, resourcesOnly bool) error {
	vars := NewExtraVarsBuilder().
		Add("env_name", name).
		Add("resources_only", strconv.FormatBool(resourcesOnly)).
		Build()
	for _, role := range []deployment.RoleCategory{deployment.RoleGenesis, deployment.RoleGeneric} {
		err := p.Backend.RunProcedure(ctx, provisioning.ProcedureRun{
			Procedure: PlaybookLogs,
			Role:      role,
			User:      user,
			ExtraVars: vars,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Provisioner) base(opts *deployment.ProvisionOptions) *ExtraVarsBuilder {
	return NewExtraVarsBuilder().
		Add("provider", p.Provider).
		Add("testnet_name", opts.Name)
}

func (p *Provisioner) addNodeVars(b *ExtraVarsBuilder, opts *deployment.ProvisionOptions, nodeType, multiaddr string, instances int) {
	b.Add("node_type", nodeType)
	if multiaddr != "" {
		b.Add("genesis_multiaddr", multiaddr)
	}
	b.Add("node_instance_count", strconv.Itoa(instances))
	if opts.NetworkID != nil {
		b.Add("network_id", strconv.Itoa(int(*opts.NetworkID)))
	}
	if opts.LogFormat != "" {
		b.Add("log_format", opts.LogFormat)
	}
	if opts.MaxLogFiles > 0 {
		b.Add("max_log_files", strconv.Itoa(int(opts.MaxLogFiles)))
	}
	if opts.MaxArchivedLogFiles > 0 {
		b.Add("max_archived_log_files", strconv.Itoa(int(opts.MaxArchivedLogFiles)))
	}
	if opts.PublicRPC {
		b.Add("public_rpc", "true")
	}
	if opts.RewardsAddress != "" {
		b.Add("rewards_address", opts.RewardsAddress)
	}
	b.addBinaries(opts.Name, opts.Binary)
	p.addEvmVars(b, opts)
	if len(opts.EnvVariables) > 0 {
		b.AddEnvList("env_variables", opts.EnvVariables)
	}
	if opts.Logstash != nil {
		b.Add("logstash_stack_name", opts.Logstash.StackName)
		b.AddList("logstash_hosts", opts.Logstash.Hosts)
	}
}

func (p *Provisioner) addEvmVars(b *ExtraVarsBuilder, opts *deployment.ProvisionOptions) {
	if opts.EvmNetwork == "" {
		return
	}
	b.Add("evm_network_type", string(opts.EvmNetwork))
	if opts.EvmNetwork != deployment.EvmCustom {
		return
	}
	if opts.EvmRPCURL != "" {
		b.Add("evm_rpc_url", opts.EvmRPCURL)
	}
	if opts.EvmDataPaymentsAddress != "" {
		b.Add("evm_data_payments_address", opts.EvmDataPaymentsAddress)
	}
	if opts.EvmPaymentTokenAddress != "" {
		b.Add("evm_payment_token_address", opts.EvmPaymentTokenAddress)
	}
}

func requireEntryPoint(role deployment.RoleCategory, ep provisioning.EntryPoint) error {
	if ep.IsZero() {
		return fmt.Errorf("%s needs the genesis multiaddr but none was resolved", role)
	}
	return nil
}

func natType(gateway deployment.RoleCategory) string {
	if gateway == deployment.RoleSymmetricNatGateway {
		return "symmetric"
	}
	return "full_cone"
}
