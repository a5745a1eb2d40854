package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/testnet-deploy/internal/ansible"
)

// UpgradeArgs are the inputs of the upgrade command.
type UpgradeArgs struct {
	Options
	Name    string
	Upgrade ansible.UpgradeOptions
}

// nodeProvisioner checks the client tools and returns the playbook
// provisioner for name.
func nodeProvisioner(opts Options, name string) (*env, *ansible.Provisioner, error) {
	if err := checkDefaultPrereqs().Error(); err != nil {
		return nil, nil, err
	}
	e, err := newEnv(opts)
	if err != nil {
		return nil, nil, err
	}
	runner, err := e.runner(name)
	if err != nil {
		e.Close()
		return nil, nil, err
	}
	return e, ansible.NewProvisioner(runner, e.cfg.Provider), nil
}

// StartNodes starts the node services of a deployment.
func StartNodes(ctx context.Context, opts Options, name string) error {
	e, p, err := nodeProvisioner(opts, name)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := p.StartNodes(ctx, e.cfg.SSHUser); err != nil {
		return err
	}
	e.printer.Println(fmt.Sprintf("Started nodes of %s", name))
	return nil
}

// Upgrade upgrades antnode across a deployment.
func Upgrade(ctx context.Context, args UpgradeArgs) error {
	e, p, err := nodeProvisioner(args.Options, args.Name)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := p.UpgradeNodes(ctx, e.cfg.SSHUser, args.Upgrade); err != nil {
		return err
	}
	version := args.Upgrade.Version
	if version == "" {
		version = "the latest release"
	}
	e.printer.Println(fmt.Sprintf("Upgraded nodes of %s to %s", args.Name, version))
	return nil
}

// UpgradeNodeManager installs an antctl version across a deployment.
func UpgradeNodeManager(ctx context.Context, opts Options, name, version string) error {
	e, p, err := nodeProvisioner(opts, name)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := p.UpgradeNodeManager(ctx, e.cfg.SSHUser, version); err != nil {
		return err
	}
	e.printer.Println(fmt.Sprintf("Upgraded antctl on %s to %s", name, version))
	return nil
}
