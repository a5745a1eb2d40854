package provisioning

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/imamik/testnet-deploy/internal/deployment"
)

// registryQuery prints every listen address recorded in the node registry
// of the machine it runs on, skipping loopback addresses.
const registryQuery = `jq -r '.nodes[] | .listen_addr[] | select(contains("127.0.0.1") | not)' /var/antctl/node_registry.json | head -n 1`

// EntryPoint is the address new nodes use to join the network.
type EntryPoint struct {
	Multiaddr string
	Address   netip.Addr
}

func (e EntryPoint) IsZero() bool { return e.Multiaddr == "" }

// EntryPointResolver obtains the network entry point of a deployment from
// its environment details.
type EntryPointResolver interface {
	Resolve(ctx context.Context, env deployment.EnvironmentDetails) (EntryPoint, error)
}

// SSHEntryPointResolver reads the entry point from a running node's registry
// over SSH. Fresh deployments use their genesis machine. Bootstrap
// deployments use the stored bootstrap peer, or a generic node of the
// deployment when none was recorded.
type SSHEntryPointResolver struct {
	Config ConfigBackend
	Shell  RemoteShell
	User   string
}

// Resolve implements EntryPointResolver. Every failure is an *EntryPointError.
func (r *SSHEntryPointResolver) Resolve(ctx context.Context, env deployment.EnvironmentDetails) (EntryPoint, error) {
	ep, err := r.resolve(ctx, env)
	if err != nil {
		return EntryPoint{}, &EntryPointError{Kind: env.Kind, Err: err}
	}
	return ep, nil
}

func (r *SSHEntryPointResolver) resolve(ctx context.Context, env deployment.EnvironmentDetails) (EntryPoint, error) {
	var role deployment.RoleCategory
	switch env.Kind {
	case deployment.KindFresh:
		role = deployment.RoleGenesis
	case deployment.KindBootstrap:
		if env.BootstrapPeer != "" {
			return entryPointFromMultiaddr(env.BootstrapPeer)
		}
		role = deployment.RoleGeneric
	default:
		return EntryPoint{}, fmt.Errorf("unknown deployment kind %q", env.Kind)
	}

	machines, err := r.Config.ListInventory(ctx, role, false)
	if err != nil {
		return EntryPoint{}, fmt.Errorf("failed to list %s inventory: %w", role, err)
	}
	if len(machines) == 0 {
		return EntryPoint{}, fmt.Errorf("no %s machines in inventory", role)
	}
	machine := machines[0]

	lines, err := r.Shell.RunCommand(ctx, machine.PublicAddress, r.User, registryQuery, true)
	if err != nil {
		return EntryPoint{}, fmt.Errorf("failed to query node registry on %s: %w", machine.Name, err)
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, "127.0.0.1") {
			continue
		}
		return EntryPoint{Multiaddr: line, Address: machine.PublicAddress}, nil
	}
	return EntryPoint{}, fmt.Errorf("node registry on %s has no public listen address", machine.Name)
}

// entryPointFromMultiaddr extracts the IP from a /ip4/ or /ip6/ multiaddr.
func entryPointFromMultiaddr(multiaddr string) (EntryPoint, error) {
	parts := strings.Split(strings.Trim(multiaddr, "/"), "/")
	if len(parts) < 2 || (parts[0] != "ip4" && parts[0] != "ip6") {
		return EntryPoint{}, errors.New("bootstrap peer must be an /ip4/ or /ip6/ multiaddr")
	}
	addr, err := netip.ParseAddr(parts[1])
	if err != nil {
		return EntryPoint{}, fmt.Errorf("invalid bootstrap peer address: %w", err)
	}
	return EntryPoint{Multiaddr: multiaddr, Address: addr}, nil
}
