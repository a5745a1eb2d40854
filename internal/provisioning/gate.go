package provisioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/testnet-deploy/internal/deployment"
)

// MachineGate blocks until machines that appeared since the previous
// snapshot accept SSH connections.
type MachineGate interface {
	AwaitNewMachines(ctx context.Context, role deployment.RoleCategory, previous *deployment.Snapshot) ([]deployment.MachineRef, error)
}

// Gate is the MachineGate backed by the configuration backend's live
// inventory and the remote shell.
type Gate struct {
	Config   ConfigBackend
	Shell    RemoteShell
	User     string
	Observer Observer
	// Timeout bounds the whole wait for one role. Zero means no deadline
	// beyond the remote shell's own retry budget.
	Timeout time.Duration
}

// AwaitNewMachines resolves the live inventory for role with a forced
// refresh, subtracts the machines recorded for that role in previous and
// waits, one machine at a time, until each remaining machine is reachable.
// It returns the machines it waited for.
func (g *Gate) AwaitNewMachines(ctx context.Context, role deployment.RoleCategory, previous *deployment.Snapshot) ([]deployment.MachineRef, error) {
	spec, ok := deployment.Lookup(role)
	if !ok || spec.Machines == nil {
		return nil, &UnsupportedRoleError{Role: role}
	}
	if previous == nil {
		previous = &deployment.Snapshot{}
	}

	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	live, err := g.Config.ListInventory(ctx, role, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s inventory: %w", role, err)
	}

	fresh := deployment.Difference(live, spec.Machines(previous).VMs)
	for _, m := range fresh {
		g.event(EventMachineWaiting, role, m, "waiting for SSH")
		start := time.Now()
		if err := g.Shell.WaitForReachable(ctx, m.PublicAddress, g.User); err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err = fmt.Errorf("%w after %v: %w", ErrReachabilityTimeout, g.Timeout, err)
			}
			g.event(EventMachineFailed, role, m, err.Error())
			return nil, &ReachabilityError{Role: role, Machine: m, Err: err}
		}
		g.event(EventMachineReachable, role, m, fmt.Sprintf("reachable after %v", time.Since(start).Round(time.Second)))
	}
	return fresh, nil
}

func (g *Gate) event(t EventType, role deployment.RoleCategory, m deployment.MachineRef, msg string) {
	if g.Observer == nil {
		return
	}
	g.Observer.Event(Event{
		Type:    t,
		Phase:   string(role),
		Machine: m.Name,
		Message: msg,
		Fields:  map[string]string{"address": m.PublicAddress.String()},
	})
}
