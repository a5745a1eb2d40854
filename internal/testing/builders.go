package testing

import (
	"fmt"
	"time"

	"github.com/imamik/testnet-deploy/internal/deployment"
)

// SnapshotBuilder provides a fluent interface for constructing snapshots.
// Each method returns a new builder for chaining.
type SnapshotBuilder struct {
	snap deployment.Snapshot
}

// NewSnapshotBuilder starts a fresh deployment snapshot with one genesis VM.
func NewSnapshotBuilder(name string) *SnapshotBuilder {
	return &SnapshotBuilder{snap: deployment.Snapshot{
		Name: name,
		Environment: deployment.EnvironmentDetails{
			Kind:            deployment.KindFresh,
			EnvironmentType: deployment.EnvironmentStaging,
			EvmNetwork:      deployment.EvmArbitrumOne,
		},
		Binary: deployment.BinaryOption{NodeVersion: "0.3.0", AntctlVersion: "0.11.0"},
		Genesis: deployment.RoleInventory{
			VMs:            []deployment.MachineRef{Machine(name+"-genesis-1", "10.0.0.1")},
			InstancesPerVM: 1,
		},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}
}

func (b *SnapshotBuilder) clone() *SnapshotBuilder {
	next := *b
	return &next
}

// WithKind sets the deployment kind. Bootstrap snapshots drop genesis.
func (b *SnapshotBuilder) WithKind(kind deployment.DeploymentKind) *SnapshotBuilder {
	next := b.clone()
	next.snap.Environment.Kind = kind
	if kind == deployment.KindBootstrap {
		next.snap.Genesis = deployment.RoleInventory{}
	}
	return next
}

// WithEvmNetwork sets the EVM network.
func (b *SnapshotBuilder) WithEvmNetwork(network deployment.EvmNetwork) *SnapshotBuilder {
	next := b.clone()
	next.snap.Environment.EvmNetwork = network
	return next
}

// WithRole sets the machines of role, named <name>-<role>-<n>.
func (b *SnapshotBuilder) WithRole(role deployment.RoleCategory, instances int, addrs ...string) *SnapshotBuilder {
	next := b.clone()
	inv := next.snap.Inventory(role)
	if inv == nil {
		panic(fmt.Sprintf("role %s is not tracked in snapshots", role))
	}
	vms := make([]deployment.MachineRef, 0, len(addrs))
	for i, addr := range addrs {
		vms = append(vms, Machine(fmt.Sprintf("%s-%s-%d", next.snap.Name, role, i+1), addr))
	}
	*inv = deployment.RoleInventory{VMs: vms, InstancesPerVM: instances}
	return next
}

// Build returns a copy of the snapshot.
func (b *SnapshotBuilder) Build() *deployment.Snapshot {
	snap := b.snap
	return &snap
}
