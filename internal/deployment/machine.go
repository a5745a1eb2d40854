package deployment

import (
	"fmt"
	"net/netip"
	"sort"
)

// MachineRef identifies a single VM. Identity is the (name, address) pair.
type MachineRef struct {
	Name          string     `json:"name"`
	PublicAddress netip.Addr `json:"public_address"`
}

func (m MachineRef) String() string {
	return fmt.Sprintf("%s (%s)", m.Name, m.PublicAddress)
}

// Difference returns the machines in live that are not present in known,
// preserving the order of live.
func Difference(live, known []MachineRef) []MachineRef {
	seen := make(map[MachineRef]struct{}, len(known))
	for _, m := range known {
		seen[m] = struct{}{}
	}
	var out []MachineRef
	for _, m := range live {
		if _, ok := seen[m]; !ok {
			out = append(out, m)
		}
	}
	return out
}

// SortByName orders machines by name in place.
func SortByName(machines []MachineRef) {
	sort.SliceStable(machines, func(i, j int) bool {
		return machines[i].Name < machines[j].Name
	})
}
