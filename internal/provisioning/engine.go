package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/imamik/testnet-deploy/internal/config"
	"github.com/imamik/testnet-deploy/internal/deployment"
)

// Provisioner renders and runs the configuration procedure behind each
// kind of stage.
type Provisioner interface {
	// Procedure names the procedure that configures role.
	Procedure(role deployment.RoleCategory) string
	ProvisionRole(ctx context.Context, role deployment.RoleCategory, opts *deployment.ProvisionOptions, ep EntryPoint) error
	StartFaucet(ctx context.Context, opts *deployment.ProvisionOptions, ep EntryPoint) error
	StopFaucet(ctx context.Context, opts *deployment.ProvisionOptions, ep EntryPoint) error
	BuildBinaries(ctx context.Context, opts *deployment.ProvisionOptions) error
}

// Engine wires the collaborators a deployment run needs.
type Engine struct {
	Store       deployment.Store
	Infra       InfraBackend
	Provisioner Provisioner
	Gate        MachineGate
	EntryPoints EntryPointResolver
	Observer    Observer
	Timeouts    *config.Timeouts
	// Banner prints the stage banner. Optional.
	Banner func(n, total int, name string)
	// InventoryDir receives inventory files generated during a run.
	InventoryDir string
	SSHUser      string
	Now          func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) observer() Observer {
	if e.Observer == nil {
		return NewConsoleObserver()
	}
	return e.Observer
}

// BuildInfraSpec derives the infra spec for a deployment from resolved
// counts. Genesis exists only in fresh deployments and roles absent from
// bootstrap deployments are pinned to zero there.
func BuildInfraSpec(snapshot *deployment.Snapshot, counts deployment.ResolvedCounts, enableBuildVM bool) InfraSpec {
	kind := snapshot.Environment.Kind
	spec := InfraSpec{
		Name:            snapshot.Name,
		EnvironmentType: snapshot.Environment.EnvironmentType,
		VMCounts:        make(map[deployment.RoleCategory]int),
		EnableBuildVM:   enableBuildVM,
	}
	for _, row := range deployment.Roles {
		if row.Machines == nil {
			continue
		}
		n := counts.Get(row.Role).VMs
		if kind == deployment.KindBootstrap && !row.InBootstrap {
			n = 0
		}
		spec.VMCounts[row.Role] = n
	}
	if kind == deployment.KindFresh {
		spec.VMCounts[deployment.RoleGenesis] = 1
	}
	if snapshot.Environment.EvmNetwork == deployment.EvmCustom {
		spec.EvmNodeCount = 1
	}
	return spec
}

// PlanStages lays out the stages of a run in dependency order: the build VM
// when build is set, peer cache nodes for fresh deployments, generic nodes,
// each NAT gateway before the private nodes behind it, and for fresh
// deployments the faucet around the uploaders followed by auditors. Private
// stages are only included for roles with a non-zero VM count.
func PlanStages(kind deployment.DeploymentKind, counts deployment.ResolvedCounts, p Provisioner, opts *deployment.ProvisionOptions, build bool) []Stage {
	role := func(name string, r deployment.RoleCategory) Stage {
		return Stage{
			Name:             name,
			Role:             r,
			Procedure:        p.Procedure(r),
			NeedsEntryPoint:  true,
			AwaitNewMachines: true,
			Run: func(ctx context.Context, ep EntryPoint) error {
				return p.ProvisionRole(ctx, r, opts, ep)
			},
		}
	}

	var stages []Stage
	if build {
		stages = append(stages, Stage{
			Name:      "Build Custom Binaries",
			Role:      deployment.RoleBuild,
			Procedure: p.Procedure(deployment.RoleBuild),
			Run: func(ctx context.Context, _ EntryPoint) error {
				return p.BuildBinaries(ctx, opts)
			},
		})
	}

	fresh := kind == deployment.KindFresh
	if fresh {
		stages = append(stages, role("Provision Peer Cache Nodes", deployment.RolePeerCache))
	}
	generic := role("Provision Generic Nodes", deployment.RoleGeneric)
	if build {
		generic.DependsOn = deployment.RoleBuild
	}
	stages = append(stages, generic)

	for _, row := range deployment.Roles {
		if row.Gateway == "" || counts.Get(row.Role).VMs == 0 {
			continue
		}
		gw := role(fmt.Sprintf("Provision %s", title(row.Gateway)), row.Gateway)
		gw.NeedsEntryPoint = false
		private := role(fmt.Sprintf("Provision %s Nodes", title(row.Role)), row.Role)
		private.DependsOn = row.Gateway
		stages = append(stages, gw, private)
	}

	if fresh {
		faucet := func(name string, start bool) Stage {
			return Stage{
				Name:            name,
				Role:            deployment.RoleGenesis,
				Procedure:       p.Procedure(deployment.RoleGenesis),
				NeedsEntryPoint: true,
				Run: func(ctx context.Context, ep EntryPoint) error {
					if start {
						return p.StartFaucet(ctx, opts, ep)
					}
					return p.StopFaucet(ctx, opts, ep)
				},
			}
		}
		stages = append(stages,
			faucet("Start Faucet", true),
			role("Provision Uploaders", deployment.RoleUploader),
			faucet("Stop Faucet", false),
		)
		if counts.Get(deployment.RoleAuditor).VMs > 0 {
			stages = append(stages, role("Provision Auditors", deployment.RoleAuditor))
		}
	}
	return stages
}

func (e *Engine) runStages(ctx context.Context, previous *deployment.Snapshot, stages []Stage) (*SequenceReport, error) {
	seq := &Sequencer{
		Gate:        e.Gate,
		EntryPoints: e.EntryPoints,
		Environment: previous.Environment,
		Previous:    previous,
		Observer:    e.observer(),
		Banner:      e.Banner,
	}
	return seq.Run(ctx, stages)
}

// refreshSnapshot rebuilds the snapshot from the infra backend's view of the
// deployment, carrying over environment metadata and the resolved instance
// counts, and saves it whole.
func (e *Engine) refreshSnapshot(ctx context.Context, base *deployment.Snapshot, counts deployment.ResolvedCounts) (*deployment.Snapshot, error) {
	topology, err := e.Infra.CurrentTopology(ctx, base.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to read current topology: %w", err)
	}

	next := &deployment.Snapshot{
		Name:        base.Name,
		Environment: base.Environment,
		Binary:      base.Binary,
		CreatedAt:   e.now().UTC(),
	}
	for _, row := range deployment.Roles {
		if row.Machines == nil {
			continue
		}
		vms := append([]deployment.MachineRef(nil), row.Machines(topology).VMs...)
		deployment.SortByName(vms)
		*row.Machines(next) = deployment.RoleInventory{
			VMs:            vms,
			InstancesPerVM: counts.Get(row.Role).InstancesPerVM,
		}
	}

	if err := e.Store.Save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func title(r deployment.RoleCategory) string {
	switch r {
	case deployment.RoleFullConeNatGateway:
		return "Full Cone NAT Gateway"
	case deployment.RoleSymmetricNatGateway:
		return "Symmetric NAT Gateway"
	case deployment.RoleFullConePrivate:
		return "Full Cone Private"
	case deployment.RoleSymmetricPrivate:
		return "Symmetric Private"
	}
	return string(r)
}
