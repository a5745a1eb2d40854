package deployment

import (
	"fmt"
	"sort"
	"strings"
)

// DesiredCounts carries optional per-role overrides. A nil field keeps the
// current value.
type DesiredCounts struct {
	PeerCacheVMs       *int
	PeerCacheInstances *int

	GenericVMs       *int
	GenericInstances *int

	FullConePrivateVMs       *int
	FullConePrivateInstances *int

	SymmetricPrivateVMs       *int
	SymmetricPrivateInstances *int

	UploaderVMs    *int
	UploadersPerVM *int

	AuditorVMs *int
}

// Counts is a role's VM count and process instances per VM.
type Counts struct {
	VMs            int
	InstancesPerVM int
}

// ResolvedCounts maps each tracked role to its target counts.
type ResolvedCounts map[RoleCategory]Counts

// Get returns the counts for role, zero when absent.
func (r ResolvedCounts) Get(role RoleCategory) Counts {
	return r[role]
}

// TotalPrivateVMs sums VM counts over every role behind a NAT gateway.
func (r ResolvedCounts) TotalPrivateVMs() int {
	total := 0
	for _, spec := range Roles {
		if spec.Gateway != "" {
			total += r[spec.Role].VMs
		}
	}
	return total
}

func (r ResolvedCounts) String() string {
	parts := make([]string, 0, len(r))
	for role, c := range r {
		parts = append(parts, fmt.Sprintf("%s=%d×%d", role, c.VMs, c.InstancesPerVM))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
