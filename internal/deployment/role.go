package deployment

import (
	"fmt"
	"strings"
)

// RoleCategory is a class of machine with its own provisioning procedure.
type RoleCategory string

const (
	RoleGenesis             RoleCategory = "genesis"
	RolePeerCache           RoleCategory = "peer-cache"
	RoleGeneric             RoleCategory = "generic"
	RoleFullConeNatGateway  RoleCategory = "full-cone-nat-gateway"
	RoleFullConePrivate     RoleCategory = "full-cone-private"
	RoleSymmetricNatGateway RoleCategory = "symmetric-nat-gateway"
	RoleSymmetricPrivate    RoleCategory = "symmetric-private"
	RoleUploader            RoleCategory = "uploader"
	RoleAuditor             RoleCategory = "auditor"
	RoleBuild               RoleCategory = "build"
)

// Dimension names one of the two scalable quantities of a role.
type Dimension string

const (
	DimensionVMs       Dimension = "vm count"
	DimensionInstances Dimension = "instance count"
)

// RoleSpec describes everything the engine needs to know about one role.
type RoleSpec struct {
	Role RoleCategory

	// Inventory is the configuration backend's group name for the role.
	Inventory string

	// Machines returns the role's entry in a snapshot. Nil when the role is
	// not tracked in snapshots and therefore cannot be diffed.
	Machines func(*Snapshot) *RoleInventory

	// Desired returns the caller's overrides for the role. Nil when the role
	// cannot be scaled directly.
	Desired func(*DesiredCounts) (vms, instances *int)

	// Gateway is the NAT gateway role that private machines of this role
	// route through. Empty for public roles.
	Gateway RoleCategory

	// InBootstrap reports whether the role exists in a deployment that joins
	// an already running network.
	InBootstrap bool

	// InfraVar is the infra backend variable carrying the role's VM count.
	InfraVar string

	// RunsNodes reports whether machines of the role host antnode processes
	// and therefore have node logs.
	RunsNodes bool
}

// Roles is ordered the way stages are provisioned.
var Roles = []RoleSpec{
	{
		Role:      RoleGenesis,
		Inventory: "genesis",
		Machines:  func(s *Snapshot) *RoleInventory { return &s.Genesis },
		InfraVar:  "genesis_vm_count",
		RunsNodes: true,
	},
	{
		Role:      RolePeerCache,
		Inventory: "peer_cache",
		Machines:  func(s *Snapshot) *RoleInventory { return &s.PeerCache },
		Desired: func(d *DesiredCounts) (*int, *int) {
			return d.PeerCacheVMs, d.PeerCacheInstances
		},
		InfraVar:  "peer_cache_node_vm_count",
		RunsNodes: true,
	},
	{
		Role:      RoleGeneric,
		Inventory: "node",
		Machines:  func(s *Snapshot) *RoleInventory { return &s.Generic },
		Desired: func(d *DesiredCounts) (*int, *int) {
			return d.GenericVMs, d.GenericInstances
		},
		InBootstrap: true,
		InfraVar:    "node_vm_count",
		RunsNodes:   true,
	},
	{
		Role:        RoleFullConeNatGateway,
		Inventory:   "full_cone_nat_gateway",
		Machines:    func(s *Snapshot) *RoleInventory { return &s.FullConeNatGateways },
		InBootstrap: true,
		InfraVar:    "full_cone_nat_gateway_vm_count",
	},
	{
		Role:      RoleFullConePrivate,
		Inventory: "full_cone_private_node",
		Machines:  func(s *Snapshot) *RoleInventory { return &s.FullConePrivate },
		Desired: func(d *DesiredCounts) (*int, *int) {
			return d.FullConePrivateVMs, d.FullConePrivateInstances
		},
		Gateway:     RoleFullConeNatGateway,
		InBootstrap: true,
		InfraVar:    "full_cone_private_node_vm_count",
		RunsNodes:   true,
	},
	{
		Role:        RoleSymmetricNatGateway,
		Inventory:   "symmetric_nat_gateway",
		Machines:    func(s *Snapshot) *RoleInventory { return &s.SymmetricNatGateways },
		InBootstrap: true,
		InfraVar:    "symmetric_nat_gateway_vm_count",
	},
	{
		Role:      RoleSymmetricPrivate,
		Inventory: "symmetric_private_node",
		Machines:  func(s *Snapshot) *RoleInventory { return &s.SymmetricPrivate },
		Desired: func(d *DesiredCounts) (*int, *int) {
			return d.SymmetricPrivateVMs, d.SymmetricPrivateInstances
		},
		Gateway:     RoleSymmetricNatGateway,
		InBootstrap: true,
		InfraVar:    "symmetric_private_node_vm_count",
		RunsNodes:   true,
	},
	{
		Role:      RoleUploader,
		Inventory: "uploader",
		Machines:  func(s *Snapshot) *RoleInventory { return &s.Uploader },
		Desired: func(d *DesiredCounts) (*int, *int) {
			return d.UploaderVMs, d.UploadersPerVM
		},
		InfraVar: "uploader_vm_count",
	},
	{
		Role:      RoleAuditor,
		Inventory: "auditor",
		Machines:  func(s *Snapshot) *RoleInventory { return &s.Auditors },
		Desired: func(d *DesiredCounts) (*int, *int) {
			return d.AuditorVMs, nil
		},
		InfraVar: "auditor_vm_count",
	},
	{
		Role:        RoleBuild,
		Inventory:   "build",
		InBootstrap: true,
		InfraVar:    "use_custom_bin",
	},
}

// Lookup returns the table row for role.
func Lookup(role RoleCategory) (RoleSpec, bool) {
	for _, spec := range Roles {
		if spec.Role == role {
			return spec, true
		}
	}
	return RoleSpec{}, false
}

// GatewayOf returns the private role served by the given gateway role.
func GatewayOf(gateway RoleCategory) (RoleCategory, bool) {
	for _, spec := range Roles {
		if spec.Gateway == gateway && gateway != "" {
			return spec.Role, true
		}
	}
	return "", false
}

// IsPrivate reports whether machines of the role sit behind a NAT gateway.
func (r RoleCategory) IsPrivate() bool {
	spec, ok := Lookup(r)
	return ok && spec.Gateway != ""
}

// ParseRole accepts canonical role names, inventory names and the
// "bootstrap" alias for peer-cache.
func ParseRole(s string) (RoleCategory, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "bootstrap", "bootstrap-node", "peer_cache":
		return RolePeerCache, nil
	case "node", "nodes":
		return RoleGeneric, nil
	}
	for _, spec := range Roles {
		if string(spec.Role) == name || spec.Inventory == name {
			return spec.Role, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// RoleNames lists the canonical role names in table order.
func RoleNames() []string {
	names := make([]string, 0, len(Roles))
	for _, spec := range Roles {
		names = append(names, string(spec.Role))
	}
	return names
}
