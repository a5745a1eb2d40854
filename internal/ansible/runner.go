package ansible

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strconv"

	"github.com/imamik/testnet-deploy/internal/deployment"
	"github.com/imamik/testnet-deploy/internal/provisioning"
	"github.com/imamik/testnet-deploy/internal/util/command"
)

// ErrInventoryNotFound is returned when a role has no inventory definition.
var ErrInventoryNotFound = errors.New("inventory not found")

const (
	playbookBinary  = "ansible-playbook"
	inventoryBinary = "ansible-inventory"
)

// Runner runs playbooks and inventory queries for one deployment. It
// implements provisioning.ConfigBackend.
type Runner struct {
	Cmd command.Runner

	// Name is the deployment name used in inventory file names.
	Name     string
	Provider string

	// PlaybookDir is the working directory for ansible-playbook.
	PlaybookDir  string
	InventoryDir string
	SSHKeyPath   string
	Forks        int
	Verbose      bool

	// Output receives ansible's output while a playbook runs. Optional.
	Output io.Writer
}

var _ provisioning.ConfigBackend = (*Runner)(nil)

func (r *Runner) inventoryFor(role deployment.RoleCategory) (string, error) {
	spec, ok := deployment.Lookup(role)
	if !ok {
		return "", &provisioning.UnsupportedRoleError{Role: role}
	}
	path := InventoryPath(r.InventoryDir, r.Name, spec.Inventory, r.Provider)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", spec.Inventory, ErrInventoryNotFound)
		}
		return "", fmt.Errorf("failed to stat inventory %s: %w", path, err)
	}
	return path, nil
}

// RunProcedure runs one playbook against the role's inventory.
func (r *Runner) RunProcedure(ctx context.Context, run provisioning.ProcedureRun) error {
	inventory, err := r.inventoryFor(run.Role)
	if err != nil {
		return err
	}

	args := []string{"--inventory", inventory}
	if r.SSHKeyPath != "" {
		args = append(args, "--private-key", r.SSHKeyPath)
	}
	if run.User != "" {
		args = append(args, "--user", run.User)
	}
	if run.ExtraVars != "" {
		args = append(args, "--extra-vars", run.ExtraVars)
	}
	if r.Forks > 0 {
		args = append(args, "--forks", strconv.Itoa(r.Forks))
	}
	if r.Verbose {
		args = append(args, "-v")
	}
	args = append(args, run.Procedure)

	_, err = r.Cmd.Run(ctx, command.Cmd{
		Binary: playbookBinary,
		Args:   args,
		Dir:    r.PlaybookDir,
		Env:    []string{"ANSIBLE_STDOUT_CALLBACK=default"},
		Stream: r.Output,
	})
	if err != nil {
		return fmt.Errorf("playbook %s against %s failed: %w", run.Procedure, run.Role, err)
	}
	return nil
}

// inventoryList is the part of `ansible-inventory --list` output we read.
type inventoryList struct {
	Meta struct {
		HostVars map[string]struct {
			AnsibleHost string `json:"ansible_host"`
		} `json:"hostvars"`
	} `json:"_meta"`
}

// ListInventory returns the hosts in the role's group, sorted by name.
func (r *Runner) ListInventory(ctx context.Context, role deployment.RoleCategory, forceRefresh bool) ([]deployment.MachineRef, error) {
	inventory, err := r.inventoryFor(role)
	if err != nil {
		return nil, err
	}

	args := []string{"--inventory", inventory, "--list"}
	if forceRefresh {
		args = append(args, "--flush-cache")
	}
	res, err := r.Cmd.Run(ctx, command.Cmd{
		Binary: inventoryBinary,
		Args:   args,
		Dir:    r.PlaybookDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s inventory: %w", role, err)
	}
	return ParseInventoryList([]byte(res.Stdout))
}

// ParseInventoryList reads host names and addresses from the JSON printed
// by `ansible-inventory --list`.
func ParseInventoryList(data []byte) ([]deployment.MachineRef, error) {
	var list inventoryList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse inventory output: %w", err)
	}
	machines := make([]deployment.MachineRef, 0, len(list.Meta.HostVars))
	for name, vars := range list.Meta.HostVars {
		addr, err := netip.ParseAddr(vars.AnsibleHost)
		if err != nil {
			return nil, fmt.Errorf("host %s has invalid ansible_host %q: %w", name, vars.AnsibleHost, err)
		}
		machines = append(machines, deployment.MachineRef{Name: name, PublicAddress: addr})
	}
	deployment.SortByName(machines)
	return machines, nil
}
