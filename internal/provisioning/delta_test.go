package provisioning

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/testnet-deploy/internal/deployment"
)

func ref(name, addr string) deployment.MachineRef {
	return deployment.MachineRef{Name: name, PublicAddress: netip.MustParseAddr(addr)}
}

func ptr(n int) *int { return &n }

// populatedSnapshot has two VMs and a distinct instance count for every
// tracked role so each dimension has a non-zero current value.
func populatedSnapshot(kind deployment.DeploymentKind) *deployment.Snapshot {
	s := &deployment.Snapshot{
		Name:        "beta",
		Environment: deployment.EnvironmentDetails{Kind: kind, EvmNetwork: deployment.EvmArbitrumOne},
	}
	for i, spec := range deployment.Roles {
		if spec.Machines == nil {
			continue
		}
		*spec.Machines(s) = deployment.RoleInventory{
			VMs: []deployment.MachineRef{
				ref(string(spec.Role)+"-1", netip.AddrFrom4([4]byte{10, 0, byte(i), 1}).String()),
				ref(string(spec.Role)+"-2", netip.AddrFrom4([4]byte{10, 0, byte(i), 2}).String()),
			},
			InstancesPerVM: 10 + i,
		}
	}
	return s
}

func TestResolveCounts_UnsetKeepsCurrent(t *testing.T) {
	t.Parallel()

	for _, kind := range []deployment.DeploymentKind{deployment.KindFresh, deployment.KindBootstrap} {
		current := populatedSnapshot(kind)
		resolved, err := ResolveCounts(deployment.DesiredCounts{}, current)
		require.NoError(t, err)

		for _, spec := range deployment.Roles {
			if spec.Machines == nil {
				continue
			}
			assert.Equal(t, spec.Machines(current).Counts(), resolved.Get(spec.Role), "%s/%s", kind, spec.Role)
		}
	}
}

func TestResolveCounts_BelowCurrentFailsWithRoleSpecificError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		set      func(d *deployment.DesiredCounts, v *int)
		role     deployment.RoleCategory
		dim      deployment.Dimension
		sentinel error
	}{
		{"peer cache vms", func(d *deployment.DesiredCounts, v *int) { d.PeerCacheVMs = v }, deployment.RolePeerCache, deployment.DimensionVMs, ErrInvalidPeerCacheVMCount},
		{"peer cache nodes", func(d *deployment.DesiredCounts, v *int) { d.PeerCacheInstances = v }, deployment.RolePeerCache, deployment.DimensionInstances, ErrInvalidPeerCacheNodeCount},
		{"generic vms", func(d *deployment.DesiredCounts, v *int) { d.GenericVMs = v }, deployment.RoleGeneric, deployment.DimensionVMs, ErrInvalidGenericVMCount},
		{"generic nodes", func(d *deployment.DesiredCounts, v *int) { d.GenericInstances = v }, deployment.RoleGeneric, deployment.DimensionInstances, ErrInvalidGenericNodeCount},
		{"full cone vms", func(d *deployment.DesiredCounts, v *int) { d.FullConePrivateVMs = v }, deployment.RoleFullConePrivate, deployment.DimensionVMs, ErrInvalidFullConePrivateVMCount},
		{"full cone nodes", func(d *deployment.DesiredCounts, v *int) { d.FullConePrivateInstances = v }, deployment.RoleFullConePrivate, deployment.DimensionInstances, ErrInvalidFullConePrivateCount},
		{"symmetric vms", func(d *deployment.DesiredCounts, v *int) { d.SymmetricPrivateVMs = v }, deployment.RoleSymmetricPrivate, deployment.DimensionVMs, ErrInvalidSymmetricPrivateVMCount},
		{"symmetric nodes", func(d *deployment.DesiredCounts, v *int) { d.SymmetricPrivateInstances = v }, deployment.RoleSymmetricPrivate, deployment.DimensionInstances, ErrInvalidSymmetricPrivateCount},
		{"uploader vms", func(d *deployment.DesiredCounts, v *int) { d.UploaderVMs = v }, deployment.RoleUploader, deployment.DimensionVMs, ErrInvalidUploaderVMCount},
		{"uploaders per vm", func(d *deployment.DesiredCounts, v *int) { d.UploadersPerVM = v }, deployment.RoleUploader, deployment.DimensionInstances, ErrInvalidUploadersCount},
		{"auditor vms", func(d *deployment.DesiredCounts, v *int) { d.AuditorVMs = v }, deployment.RoleAuditor, deployment.DimensionVMs, ErrInvalidAuditorVMCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			current := populatedSnapshot(deployment.KindFresh)
			currentValue := current.CurrentCounts().Get(tt.role).VMs
			if tt.dim == deployment.DimensionInstances {
				currentValue = current.CurrentCounts().Get(tt.role).InstancesPerVM
			}

			for _, bad := range []int{currentValue - 1, -1} {
				var desired deployment.DesiredCounts
				tt.set(&desired, ptr(bad))

				resolved, err := ResolveCounts(desired, current)
				require.Error(t, err)
				assert.Nil(t, resolved)
				assert.ErrorIs(t, err, tt.sentinel)

				var countErr *InvalidDesiredCountError
				require.True(t, errors.As(err, &countErr))
				assert.Equal(t, tt.role, countErr.Role)
				assert.Equal(t, tt.dim, countErr.Dimension)
				assert.Equal(t, currentValue, countErr.Current)

				for _, other := range tests {
					if other.sentinel != tt.sentinel {
						assert.NotErrorIs(t, err, other.sentinel)
					}
				}
			}

			var desired deployment.DesiredCounts
			tt.set(&desired, ptr(currentValue))
			_, err := ResolveCounts(desired, current)
			assert.NoError(t, err, "equal to current is allowed")
		})
	}
}

func TestResolveCounts_BootstrapRejectsAbsentRoles(t *testing.T) {
	t.Parallel()

	overrides := map[string]deployment.DesiredCounts{
		"peer cache vms":   {PeerCacheVMs: ptr(10)},
		"peer cache nodes": {PeerCacheInstances: ptr(50)},
		"uploader vms":     {UploaderVMs: ptr(10)},
		"auditor vms":      {AuditorVMs: ptr(10)},
		// A violation elsewhere must not mask the bootstrap rejection.
		"mixed": {UploaderVMs: ptr(10), GenericVMs: ptr(0)},
	}
	for name, desired := range overrides {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ResolveCounts(desired, populatedSnapshot(deployment.KindBootstrap))
			assert.ErrorIs(t, err, ErrInvalidUpscaleOptionsForBootstrap)
		})
	}

	_, err := ResolveCounts(deployment.DesiredCounts{GenericVMs: ptr(5), FullConePrivateVMs: ptr(4)}, populatedSnapshot(deployment.KindBootstrap))
	assert.NoError(t, err)
}

func TestResolveCounts_BootstrapAcceptsUploadersPerVM(t *testing.T) {
	t.Parallel()

	current := populatedSnapshot(deployment.KindBootstrap)
	want := current.Uploader.InstancesPerVM + 3
	resolved, err := ResolveCounts(deployment.DesiredCounts{UploadersPerVM: ptr(want)}, current)

	require.NoError(t, err)
	assert.Equal(t, want, resolved.Get(deployment.RoleUploader).InstancesPerVM)
	assert.Equal(t, 2, resolved.Get(deployment.RoleUploader).VMs)
}

func TestResolveCounts_GatewaysFollowPrivateVMs(t *testing.T) {
	t.Parallel()
	current := &deployment.Snapshot{Name: "beta", Environment: deployment.EnvironmentDetails{Kind: deployment.KindFresh}}

	resolved, err := ResolveCounts(deployment.DesiredCounts{
		FullConePrivateVMs:       ptr(3),
		FullConePrivateInstances: ptr(20),
	}, current)
	require.NoError(t, err)

	assert.Equal(t, deployment.Counts{VMs: 3, InstancesPerVM: 20}, resolved.Get(deployment.RoleFullConePrivate))
	assert.Equal(t, 3, resolved.Get(deployment.RoleFullConeNatGateway).VMs)
	assert.Equal(t, 0, resolved.Get(deployment.RoleSymmetricNatGateway).VMs)
	assert.Equal(t, 3, resolved.TotalPrivateVMs())
}

func TestResolveCounts_PrivateInstancesDefaultToPrivateCount(t *testing.T) {
	t.Parallel()
	current := populatedSnapshot(deployment.KindFresh)
	current.Generic.InstancesPerVM = 40
	current.FullConePrivate.InstancesPerVM = 8

	resolved, err := ResolveCounts(deployment.DesiredCounts{GenericInstances: ptr(45)}, current)
	require.NoError(t, err)
	assert.Equal(t, 45, resolved.Get(deployment.RoleGeneric).InstancesPerVM)
	assert.Equal(t, 8, resolved.Get(deployment.RoleFullConePrivate).InstancesPerVM)
}
