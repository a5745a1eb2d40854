package hcloud

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/testnet-deploy/internal/deployment"
	"github.com/imamik/testnet-deploy/internal/provisioning"
	"github.com/imamik/testnet-deploy/internal/util/async"
	"github.com/imamik/testnet-deploy/internal/util/labels"
	"github.com/imamik/testnet-deploy/internal/util/naming"
)

// roleEvmNode labels the server running a custom EVM network.
const roleEvmNode = "evm-node"

// Backend implements provisioning.InfraBackend on Hetzner Cloud.
type Backend struct {
	API      ServerAPI
	Location string
	Image    string
	SSHKeys  []string
	// ServerTypes overrides the server type per role name.
	ServerTypes map[string]string
	// Concurrency bounds parallel server creation. Zero uses async.DefaultLimit.
	Concurrency int
	Observer    provisioning.Observer
}

// change is one server Apply would create.
type change struct {
	role string
	name string
	opts ServerCreateOpts
}

// Apply creates the servers the InfraSpec asks for and that do not exist yet.
// Existing servers are never removed.
func (b *Backend) Apply(ctx context.Context, spec provisioning.InfraSpec) error {
	changes, _, err := b.diff(ctx, spec)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		b.printf("[Infra] %s: no servers to create", spec.Name)
		return nil
	}

	b.printf("[Infra] %s: creating %d servers", spec.Name, len(changes))
	var mu sync.Mutex
	created := 0
	failures := async.ForEach(ctx, changes, b.Concurrency, func(ctx context.Context, c change) error {
		if _, err := b.API.CreateServer(ctx, c.opts); err != nil {
			return err
		}
		mu.Lock()
		created++
		b.progress("servers", created, len(changes))
		mu.Unlock()
		return nil
	})
	if len(failures) == 0 {
		return nil
	}

	errs := make([]error, 0, len(failures))
	for _, f := range failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.Item.name, f.Err))
	}
	return fmt.Errorf("failed to create %d of %d servers: %w", len(failures), len(changes), errors.Join(errs...))
}

// Plan describes the servers Apply would create, one role per line.
func (b *Backend) Plan(ctx context.Context, spec provisioning.InfraSpec) (string, error) {
	changes, existing, err := b.diff(ctx, spec)
	if err != nil {
		return "", err
	}

	byRole := make(map[string][]change)
	for _, c := range changes {
		byRole[c.role] = append(byRole[c.role], c)
	}

	var sb strings.Builder
	for _, role := range desiredRoles(spec) {
		current := len(existing[role.name])
		added := byRole[role.name]
		fmt.Fprintf(&sb, "%s: %d -> %d", role.name, current, current+len(added))
		if len(added) > 0 {
			names := make([]string, 0, len(added))
			for _, c := range added {
				names = append(names, c.name)
			}
			fmt.Fprintf(&sb, " (+%s)", strings.Join(names, ", "))
		}
		sb.WriteString("\n")
	}
	if len(changes) == 0 {
		sb.WriteString("No changes.\n")
	}
	return sb.String(), nil
}

// CurrentTopology lists every server of a deployment and groups the ones
// whose role is tracked in snapshots. Environment metadata is left empty.
func (b *Backend) CurrentTopology(ctx context.Context, name string) (*deployment.Snapshot, error) {
	servers, err := b.API.ListServers(ctx, labels.SelectorForDeployment(name))
	if err != nil {
		return nil, err
	}

	snap := &deployment.Snapshot{Name: name}
	for _, s := range servers {
		role, err := deployment.ParseRole(s.Labels[labels.KeyRole])
		if err != nil {
			continue
		}
		inv := snap.Inventory(role)
		if inv == nil {
			continue
		}
		inv.VMs = append(inv.VMs, deployment.MachineRef{Name: s.Name, PublicAddress: publicAddr(s)})
	}
	for _, vms := range snap.AllMachines() {
		deployment.SortByName(vms)
	}
	return snap, nil
}

type desiredRole struct {
	name  string
	count int
}

// desiredRoles lists the InfraSpec roles in table order, followed by the build
// VM and the EVM node when requested.
func desiredRoles(spec provisioning.InfraSpec) []desiredRole {
	var roles []desiredRole
	for _, row := range deployment.Roles {
		if n, ok := spec.VMCounts[row.Role]; ok {
			roles = append(roles, desiredRole{name: string(row.Role), count: n})
		}
	}
	if spec.EnableBuildVM {
		roles = append(roles, desiredRole{name: string(deployment.RoleBuild), count: 1})
	}
	if spec.EvmNodeCount > 0 {
		roles = append(roles, desiredRole{name: roleEvmNode, count: spec.EvmNodeCount})
	}
	return roles
}

// diff returns the servers to create and the existing servers by role.
func (b *Backend) diff(ctx context.Context, spec provisioning.InfraSpec) ([]change, map[string][]*hcloud.Server, error) {
	if spec.Name == "" {
		return nil, nil, fmt.Errorf("infra spec has no deployment name")
	}
	servers, err := b.API.ListServers(ctx, labels.SelectorForDeployment(spec.Name))
	if err != nil {
		return nil, nil, err
	}

	existing := make(map[string][]*hcloud.Server)
	taken := make(map[string]bool)
	for _, s := range servers {
		role := s.Labels[labels.KeyRole]
		existing[role] = append(existing[role], s)
		taken[s.Name] = true
	}

	var changes []change
	for _, role := range desiredRoles(spec) {
		missing := role.count - len(existing[role.name])
		for index := 1; missing > 0; index++ {
			name := naming.Server(spec.Name, role.name, index)
			if taken[name] {
				continue
			}
			changes = append(changes, change{
				role: role.name,
				name: name,
				opts: ServerCreateOpts{
					Name:       name,
					ImageType:  b.Image,
					ServerType: b.serverType(spec.EnvironmentType, role.name),
					Location:   b.Location,
					SSHKeys:    b.SSHKeys,
					Labels: labels.NewLabelBuilder(spec.Name).
						WithRole(role.name).
						WithIndex(strconv.Itoa(index)).
						WithEnvironment(string(spec.EnvironmentType)).
						Build(),
				},
			})
			missing--
		}
	}
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].role < changes[j].role })
	return changes, existing, nil
}

func (b *Backend) serverType(env deployment.EnvironmentType, role string) string {
	if t, ok := b.ServerTypes[role]; ok && t != "" {
		return t
	}
	return DefaultServerType(env, role)
}

// DefaultServerType returns the server type used for role when no override
// is configured.
func DefaultServerType(env deployment.EnvironmentType, role string) string {
	switch deployment.RoleCategory(role) {
	case deployment.RoleFullConeNatGateway, deployment.RoleSymmetricNatGateway, deployment.RoleUploader:
		return "cx22"
	case deployment.RoleBuild:
		return "cx42"
	}
	if role == roleEvmNode {
		return "cx22"
	}
	switch env {
	case deployment.EnvironmentProduction:
		return "cx42"
	case deployment.EnvironmentStaging:
		return "cx32"
	}
	return "cx22"
}

func publicAddr(s *hcloud.Server) netip.Addr {
	if ip := s.PublicNet.IPv4.IP; ip != nil {
		if addr, ok := netip.AddrFromSlice(ip); ok {
			return addr.Unmap()
		}
	}
	return netip.Addr{}
}

func (b *Backend) printf(format string, args ...any) {
	if b.Observer != nil {
		b.Observer.Printf(format, args...)
	}
}

func (b *Backend) progress(phase string, current, total int) {
	if b.Observer != nil {
		b.Observer.Progress(phase, current, total)
	}
}
