package ansible

import (
	"context"
	"strconv"
	"time"

	"github.com/imamik/testnet-deploy/internal/deployment"
	"github.com/imamik/testnet-deploy/internal/provisioning"
)

// Maintenance playbooks run against machines that already host nodes.
const (
	PlaybookStartNodes         = "start_nodes.yml"
	PlaybookUpgradeNodes       = "upgrade_nodes.yml"
	PlaybookUpgradeFaucet      = "upgrade_faucet.yml"
	PlaybookUpgradeNodeManager = "upgrade_node_manager.yml"
)

// DefaultUpgradeInterval is the pause between node restarts on one machine.
const DefaultUpgradeInterval = 200 * time.Millisecond

// UpgradeOptions select the node binary an upgrade moves to.
type UpgradeOptions struct {
	// Version pins antnode. Empty upgrades to the latest release.
	Version string
	// Force upgrades nodes already running Version.
	Force        bool
	Interval     time.Duration
	EnvVariables []deployment.EnvVar
}

// ExtraVars renders the vars shared by the upgrade playbooks.
func (o UpgradeOptions) ExtraVars() string {
	interval := o.Interval
	if interval <= 0 {
		interval = DefaultUpgradeInterval
	}
	b := NewExtraVarsBuilder().Add("interval", strconv.FormatInt(interval.Milliseconds(), 10))
	if o.Force {
		b.Add("force", "true")
	}
	if o.Version != "" {
		b.Add("antnode_version", o.Version)
	}
	if len(o.EnvVariables) > 0 {
		b.AddEnvList("env_variables", o.EnvVariables)
	}
	return b.Build()
}

// nodeRoles lists the roles hosting nodes, genesis first.
func nodeRoles() []deployment.RoleCategory {
	var roles []deployment.RoleCategory
	for _, spec := range deployment.Roles {
		if spec.RunsNodes {
			roles = append(roles, spec.Role)
		}
	}
	return roles
}

// StartNodes starts every stopped node service, genesis first.
func (p *Provisioner) StartNodes(ctx context.Context, user string) error {
	for _, role := range nodeRoles() {
		if err := p.run(ctx, PlaybookStartNodes, role, user, ""); err != nil {
			return err
		}
	}
	return nil
}

// UpgradeNodes upgrades antnode on every node machine. Genesis is upgraded
// last, followed by the faucet it hosts.
func (p *Provisioner) UpgradeNodes(ctx context.Context, user string, opts UpgradeOptions) error {
	vars := opts.ExtraVars()
	roles := nodeRoles()
	order := append(append([]deployment.RoleCategory(nil), roles[1:]...), roles[0])
	for _, role := range order {
		if err := p.run(ctx, PlaybookUpgradeNodes, role, user, vars); err != nil {
			return err
		}
	}
	return p.run(ctx, PlaybookUpgradeFaucet, deployment.RoleGenesis, user, vars)
}

// UpgradeNodeManager installs antctl version on every node machine.
func (p *Provisioner) UpgradeNodeManager(ctx context.Context, user, version string) error {
	vars := NewExtraVarsBuilder().Add("version", version).Build()
	for _, role := range nodeRoles() {
		if err := p.run(ctx, PlaybookUpgradeNodeManager, role, user, vars); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provisioner) run(ctx context.Context, playbook string, role deployment.RoleCategory, user, vars string) error {
	return p.Backend.RunProcedure(ctx, provisioning.ProcedureRun{
		Procedure: playbook,
		Role:      role,
		User:      user,
		ExtraVars: vars,
	})
}
