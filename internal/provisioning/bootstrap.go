package provisioning

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/testnet-deploy/internal/deployment"
)

// ErrDeploymentExists is returned when bootstrapping a name that already has
// a snapshot.
var ErrDeploymentExists = errors.New("deployment already exists")

// BootstrapOptions describe a new deployment that joins a running network.
type BootstrapOptions struct {
	Name            string
	EnvironmentType deployment.EnvironmentType
	EvmNetwork      deployment.EvmNetwork
	RewardsAddress  string
	NetworkID       *uint8
	BootstrapPeer   string
	Binary          deployment.BinaryOption

	GenericVMs                int
	GenericInstances          int
	FullConePrivateVMs        int
	FullConePrivateInstances  int
	SymmetricPrivateVMs       int
	SymmetricPrivateInstances int

	PublicRPC           bool
	MaxArchivedLogFiles uint16
	MaxLogFiles         uint16
	LogFormat           string
	EnvVariables        []deployment.EnvVar
	Logstash            *deployment.LogstashDetails
}

// BootstrapResult describes what a bootstrap run did.
type BootstrapResult struct {
	Counts   deployment.ResolvedCounts
	Report   *SequenceReport
	Snapshot *deployment.Snapshot
}

// Bootstrap creates a deployment that joins an existing network through
// BootstrapPeer. The environment details are persisted first so a failed run
// can be upscaled or inspected later.
func (e *Engine) Bootstrap(ctx context.Context, opts BootstrapOptions) (*BootstrapResult, error) {
	if err := opts.Binary.Validate(); err != nil {
		return nil, err
	}
	if opts.BootstrapPeer == "" {
		return nil, fmt.Errorf("a bootstrap peer is required to join an existing network")
	}

	_, err := e.Store.Load(ctx, opts.Name)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrDeploymentExists, opts.Name)
	case !errors.Is(err, deployment.ErrSnapshotNotFound):
		return nil, err
	}

	initial := &deployment.Snapshot{
		Name: opts.Name,
		Environment: deployment.EnvironmentDetails{
			Kind:            deployment.KindBootstrap,
			EnvironmentType: opts.EnvironmentType,
			EvmNetwork:      opts.EvmNetwork,
			RewardsAddress:  opts.RewardsAddress,
			NetworkID:       opts.NetworkID,
			BootstrapPeer:   opts.BootstrapPeer,
		},
		Binary:    opts.Binary,
		CreatedAt: e.now().UTC(),
	}
	if err := e.Store.Save(ctx, initial); err != nil {
		return nil, fmt.Errorf("failed to write environment details: %w", err)
	}

	instances := func(n int, role deployment.RoleCategory) int {
		if n > 0 {
			return n
		}
		return opts.EnvironmentType.DefaultInstancesPerVM(role)
	}
	counts := deployment.ResolvedCounts{
		deployment.RoleGeneric:             {VMs: opts.GenericVMs, InstancesPerVM: instances(opts.GenericInstances, deployment.RoleGeneric)},
		deployment.RoleFullConePrivate:     {VMs: opts.FullConePrivateVMs, InstancesPerVM: instances(opts.FullConePrivateInstances, deployment.RoleFullConePrivate)},
		deployment.RoleSymmetricPrivate:    {VMs: opts.SymmetricPrivateVMs, InstancesPerVM: instances(opts.SymmetricPrivateInstances, deployment.RoleSymmetricPrivate)},
		deployment.RoleFullConeNatGateway:  {VMs: opts.FullConePrivateVMs},
		deployment.RoleSymmetricNatGateway: {VMs: opts.SymmetricPrivateVMs},
	}

	obs := e.observer().WithFields(map[string]string{"deployment": opts.Name})
	build := opts.Binary.BuildFromSource()
	if err := e.applyInfra(ctx, obs, BuildInfraSpec(initial, counts, build)); err != nil {
		return nil, err
	}

	popts := &deployment.ProvisionOptions{
		Name:                opts.Name,
		Binary:              opts.Binary,
		Counts:              counts,
		SSHUser:             e.SSHUser,
		NetworkID:           opts.NetworkID,
		EvmNetwork:          opts.EvmNetwork,
		RewardsAddress:      opts.RewardsAddress,
		EnvVariables:        opts.EnvVariables,
		MaxArchivedLogFiles: opts.MaxArchivedLogFiles,
		MaxLogFiles:         opts.MaxLogFiles,
		LogFormat:           opts.LogFormat,
		Logstash:            opts.Logstash,
		PublicRPC:           opts.PublicRPC,
		OutputInventoryDir:  e.InventoryDir,
	}

	stages := PlanStages(deployment.KindBootstrap, counts, e.Provisioner, popts, build)
	result := &BootstrapResult{Counts: counts}
	result.Report, err = e.runStages(ctx, initial, stages)
	if err != nil {
		LogPhaseFailed(obs, "bootstrap", err)
		return result, err
	}

	result.Snapshot, err = e.refreshSnapshot(ctx, initial, counts)
	return result, err
}
