package provisioning

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"strings"

	"github.com/imamik/testnet-deploy/internal/deployment"
)

// InfraSpec is the declarative topology handed to the infra backend. It is
// keyed by role and carries the VM count for each.
type InfraSpec struct {
	Name            string
	EnvironmentType deployment.EnvironmentType
	VMCounts        map[deployment.RoleCategory]int
	// EnableBuildVM provisions a VM for compiling binaries from source.
	EnableBuildVM bool
	// EvmNodeCount is 1 for a custom EVM network, 0 otherwise.
	EvmNodeCount int
}

// Vars renders the InfraSpec as infra variables, sorted by name.
func (s InfraSpec) Vars() []Var {
	vars := make([]Var, 0, len(s.VMCounts)+2)
	for _, spec := range deployment.Roles {
		if spec.Role == deployment.RoleBuild {
			continue
		}
		if n, ok := s.VMCounts[spec.Role]; ok {
			vars = append(vars, Var{Name: spec.InfraVar, Value: fmt.Sprint(n)})
		}
	}
	vars = append(vars,
		Var{Name: "evm_node_vm_count", Value: fmt.Sprint(s.EvmNodeCount)},
		Var{Name: "use_custom_bin", Value: fmt.Sprint(s.EnableBuildVM)},
	)
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
	return vars
}

func (s InfraSpec) String() string {
	parts := make([]string, 0)
	for _, v := range s.Vars() {
		parts = append(parts, v.Name+"="+v.Value)
	}
	return strings.Join(parts, " ")
}

// Var is a single infra variable.
type Var struct {
	Name  string
	Value string
}

// InfraBackend creates and updates VMs from a declarative spec.
type InfraBackend interface {
	// Apply idempotently creates or updates the topology.
	Apply(ctx context.Context, spec InfraSpec) error

	// Plan describes what Apply would change without changing anything.
	Plan(ctx context.Context, spec InfraSpec) (string, error)

	// CurrentTopology returns the machines that exist for a deployment.
	CurrentTopology(ctx context.Context, name string) (*deployment.Snapshot, error)
}

// ProcedureRun is one configuration backend invocation.
type ProcedureRun struct {
	Procedure string
	Role      deployment.RoleCategory
	User      string
	// ExtraVars is a flat JSON document. Empty means none.
	ExtraVars string
}

// ConfigBackend executes named procedures against role groups and resolves
// the live inventory of a role.
type ConfigBackend interface {
	RunProcedure(ctx context.Context, run ProcedureRun) error

	// ListInventory returns the machines currently in the role's group. It
	// returns an empty slice when the group exists without machines and an
	// error when the group is not defined at all.
	ListInventory(ctx context.Context, role deployment.RoleCategory, forceRefresh bool) ([]deployment.MachineRef, error)
}

// RemoteShell runs commands on machines over SSH.
type RemoteShell interface {
	// WaitForReachable blocks until the machine accepts connections. Bounded
	// retry and backoff are the implementation's concern.
	WaitForReachable(ctx context.Context, addr netip.Addr, user string) error

	// RunCommand executes command and returns its output lines when capture
	// is set. A non-zero exit is reported as an error carrying the status.
	RunCommand(ctx context.Context, addr netip.Addr, user, command string, capture bool) ([]string, error)
}
