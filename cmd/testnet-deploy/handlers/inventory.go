package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/testnet-deploy/internal/ansible"
	"github.com/imamik/testnet-deploy/internal/deployment"
)

// Inventory prints the live inventory of every role of a deployment.
func Inventory(ctx context.Context, opts Options, name string, forceRefresh bool) error {
	if err := checkDefaultPrereqs().Error(); err != nil {
		return err
	}
	e, err := newEnv(opts)
	if err != nil {
		return err
	}
	defer e.Close()

	runner, err := e.runner(name)
	if err != nil {
		return err
	}

	total := 0
	for _, spec := range deployment.Roles {
		machines, err := runner.ListInventory(ctx, spec.Role, forceRefresh)
		if errors.Is(err, ansible.ErrInventoryNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if len(machines) == 0 {
			continue
		}
		e.printer.Println(fmt.Sprintf("%s (%d):", spec.Role, len(machines)))
		for _, m := range machines {
			e.printer.Println(fmt.Sprintf("  %-40s %s", m.Name, m.PublicAddress))
		}
		total += len(machines)
	}
	e.printer.Println(fmt.Sprintf("%d machines in %s", total, name))
	return nil
}
