package deployment

import (
	"fmt"
	"time"
)

// DeploymentKind distinguishes a fresh network from one that joins an
// already running network.
type DeploymentKind string

const (
	KindFresh     DeploymentKind = "fresh"
	KindBootstrap DeploymentKind = "bootstrap"
)

// EnvironmentType selects default VM counts and server sizes.
type EnvironmentType string

const (
	EnvironmentDevelopment EnvironmentType = "development"
	EnvironmentStaging     EnvironmentType = "staging"
	EnvironmentProduction  EnvironmentType = "production"
)

// ParseEnvironmentType validates an environment type name.
func ParseEnvironmentType(s string) (EnvironmentType, error) {
	switch t := EnvironmentType(s); t {
	case EnvironmentDevelopment, EnvironmentStaging, EnvironmentProduction:
		return t, nil
	}
	return "", fmt.Errorf("unknown environment type %q", s)
}

// DefaultInstancesPerVM returns the default process count per VM for a
// role in this environment.
func (t EnvironmentType) DefaultInstancesPerVM(role RoleCategory) int {
	switch role {
	case RoleGenesis:
		return 1
	case RolePeerCache:
		return 5
	case RoleUploader:
		return 1
	case RoleFullConeNatGateway, RoleSymmetricNatGateway, RoleAuditor, RoleBuild:
		return 0
	}
	if t == EnvironmentDevelopment {
		return 25
	}
	return 20
}

// EvmNetwork is the payment network the nodes use.
type EvmNetwork string

const (
	EvmCustom          EvmNetwork = "custom"
	EvmArbitrumOne     EvmNetwork = "arbitrum-one"
	EvmArbitrumSepolia EvmNetwork = "arbitrum-sepolia"
)

// ParseEvmNetwork validates an EVM network name.
func ParseEvmNetwork(s string) (EvmNetwork, error) {
	switch n := EvmNetwork(s); n {
	case EvmCustom, EvmArbitrumOne, EvmArbitrumSepolia:
		return n, nil
	}
	return "", fmt.Errorf("unknown evm network %q", s)
}

// BinaryOption selects released binaries or a source build.
type BinaryOption struct {
	NodeVersion   string `json:"node_version,omitempty"`
	AntctlVersion string `json:"antctl_version,omitempty"`

	RepoOwner string `json:"repo_owner,omitempty"`
	Branch    string `json:"branch,omitempty"`
}

// BuildFromSource reports whether binaries are compiled on the build VM.
func (b BinaryOption) BuildFromSource() bool {
	return b.RepoOwner != "" && b.Branch != ""
}

// Validate checks that exactly one of the two forms is set.
func (b BinaryOption) Validate() error {
	versioned := b.NodeVersion != "" || b.AntctlVersion != ""
	source := b.RepoOwner != "" || b.Branch != ""
	switch {
	case versioned && source:
		return fmt.Errorf("binary versions and a source branch are mutually exclusive")
	case source && !b.BuildFromSource():
		return fmt.Errorf("both repo owner and branch are required to build from source")
	case !versioned && !source:
		return fmt.Errorf("either binary versions or a source branch must be supplied")
	}
	return nil
}

// EnvironmentDetails is the metadata written when a deployment is created.
type EnvironmentDetails struct {
	Kind            DeploymentKind  `json:"kind"`
	EnvironmentType EnvironmentType `json:"environment_type"`
	EvmNetwork      EvmNetwork      `json:"evm_network"`
	RewardsAddress  string          `json:"rewards_address,omitempty"`
	NetworkID       *uint8          `json:"network_id,omitempty"`
	// BootstrapPeer is the multiaddr of the running network a bootstrap
	// deployment joined.
	BootstrapPeer string `json:"bootstrap_peer,omitempty"`
}

// RoleInventory is a role's machines plus its process count per machine.
type RoleInventory struct {
	VMs            []MachineRef `json:"vms"`
	InstancesPerVM int          `json:"instances_per_vm,omitempty"`
}

// Counts returns the role's current scalable quantities.
func (r RoleInventory) Counts() Counts {
	return Counts{VMs: len(r.VMs), InstancesPerVM: r.InstancesPerVM}
}

// Snapshot is the persisted record of a deployment's last known topology.
// It is read only during a run and replaced whole after a successful one.
type Snapshot struct {
	Name        string             `json:"name"`
	Environment EnvironmentDetails `json:"environment"`
	Binary      BinaryOption       `json:"binary"`

	Genesis              RoleInventory `json:"genesis"`
	PeerCache            RoleInventory `json:"peer_cache"`
	Generic              RoleInventory `json:"generic"`
	FullConeNatGateways  RoleInventory `json:"full_cone_nat_gateways"`
	FullConePrivate      RoleInventory `json:"full_cone_private"`
	SymmetricNatGateways RoleInventory `json:"symmetric_nat_gateways"`
	SymmetricPrivate     RoleInventory `json:"symmetric_private"`
	Uploader             RoleInventory `json:"uploader"`
	Auditors             RoleInventory `json:"auditors"`

	CreatedAt time.Time `json:"created_at"`
}

// Inventory returns the snapshot entry for role, or nil when the role is
// not tracked.
func (s *Snapshot) Inventory(role RoleCategory) *RoleInventory {
	spec, ok := Lookup(role)
	if !ok || spec.Machines == nil {
		return nil
	}
	return spec.Machines(s)
}

// CurrentCounts returns the per-role counts recorded in the snapshot.
func (s *Snapshot) CurrentCounts() ResolvedCounts {
	counts := make(ResolvedCounts, len(Roles))
	for _, spec := range Roles {
		if spec.Machines == nil {
			continue
		}
		counts[spec.Role] = spec.Machines(s).Counts()
	}
	return counts
}

// AllMachines returns every machine in the snapshot tagged with its role.
func (s *Snapshot) AllMachines() map[RoleCategory][]MachineRef {
	out := make(map[RoleCategory][]MachineRef)
	for _, spec := range Roles {
		if spec.Machines == nil {
			continue
		}
		if vms := spec.Machines(s).VMs; len(vms) > 0 {
			out[spec.Role] = vms
		}
	}
	return out
}
