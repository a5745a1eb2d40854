package provisioning_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/imamik/testnet-deploy/internal/deployment"
	"github.com/imamik/testnet-deploy/internal/provisioning"
	testkit "github.com/imamik/testnet-deploy/internal/testing"
)

type engineFixture struct {
	store       *testkit.MemoryStore
	infra       *testkit.MockInfraBackend
	provisioner *testkit.MockProvisioner
	entry       *testkit.MockEntryPoints
	gate        *fakeGate
	engine      *provisioning.Engine
}

func newEngineFixture(snapshots ...*deployment.Snapshot) *engineFixture {
	f := &engineFixture{
		store:       testkit.NewMemoryStore(snapshots...),
		infra:       &testkit.MockInfraBackend{},
		provisioner: &testkit.MockProvisioner{},
		entry:       &testkit.MockEntryPoints{},
		gate:        &fakeGate{},
	}
	f.engine = &provisioning.Engine{
		Store:       f.store,
		Infra:       f.infra,
		Provisioner: f.provisioner,
		Gate:        f.gate,
		EntryPoints: f.entry,
		Observer:    quietObserver(),
		SSHUser:     "root",
		Now:         func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) },
	}
	return f
}

func (f *engineFixture) provisionAll() {
	f.provisioner.On("ProvisionRole", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.provisioner.On("StartFaucet", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.provisioner.On("StopFaucet", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.entry.On("Resolve", mock.Anything, mock.Anything).Return(genesisEntry, nil)
}

func freshSnapshot() *deployment.Snapshot {
	return testkit.NewSnapshotBuilder("beta").
		WithRole(deployment.RolePeerCache, 5, "10.0.2.1").
		WithRole(deployment.RoleGeneric, 20, "10.0.1.1", "10.0.1.2", "10.0.1.3").
		WithRole(deployment.RoleUploader, 1, "10.0.7.1").
		Build()
}

func TestUpscale_EndToEnd_GenericVMCount(t *testing.T) {
	t.Parallel()

	current := freshSnapshot()
	f := newEngineFixture(current)
	f.provisionAll()

	wantSpec := provisioning.InfraSpec{
		Name:            "beta",
		EnvironmentType: deployment.EnvironmentStaging,
		VMCounts: map[deployment.RoleCategory]int{
			deployment.RoleGenesis:             1,
			deployment.RolePeerCache:           1,
			deployment.RoleGeneric:             5,
			deployment.RoleFullConeNatGateway:  0,
			deployment.RoleFullConePrivate:     0,
			deployment.RoleSymmetricNatGateway: 0,
			deployment.RoleSymmetricPrivate:    0,
			deployment.RoleUploader:            1,
			deployment.RoleAuditor:             0,
		},
	}
	f.infra.On("Apply", mock.Anything, wantSpec).Return(nil).Once()

	topology := testkit.NewSnapshotBuilder("beta").
		WithRole(deployment.RolePeerCache, 0, "10.0.2.1").
		WithRole(deployment.RoleGeneric, 0, "10.0.1.5", "10.0.1.4", "10.0.1.3", "10.0.1.2", "10.0.1.1").
		WithRole(deployment.RoleUploader, 0, "10.0.7.1").
		Build()
	f.infra.On("CurrentTopology", mock.Anything, "beta").Return(topology, nil)

	result, err := f.engine.Upscale(context.Background(), "beta", provisioning.UpscaleOptions{
		Desired: deployment.DesiredCounts{GenericVMs: testkit.IntPtr(5)},
	})
	require.NoError(t, err)

	want := current.CurrentCounts()
	want[deployment.RoleGeneric] = deployment.Counts{VMs: 5, InstancesPerVM: 20}
	assert.Equal(t, want, result.Counts)

	f.infra.AssertNumberOfCalls(t, "Apply", 1)
	f.infra.AssertExpectations(t)
	assert.False(t, result.Report.PartialFailure)

	saved, err := f.store.Load(context.Background(), "beta")
	require.NoError(t, err)
	assert.Len(t, saved.Generic.VMs, 5)
	assert.Equal(t, 20, saved.Generic.InstancesPerVM)
	assert.Equal(t, "beta-generic-1", saved.Generic.VMs[0].Name, "machines are sorted by name")
	assert.Equal(t, current.Environment, saved.Environment)
}

func TestUpscale_BootstrapOverrideFailsBeforeAnySideEffect(t *testing.T) {
	t.Parallel()

	for name, desired := range map[string]deployment.DesiredCounts{
		"peer cache vms":   {PeerCacheVMs: testkit.IntPtr(3)},
		"peer cache nodes": {PeerCacheInstances: testkit.IntPtr(30)},
		"uploader vms":     {UploaderVMs: testkit.IntPtr(3)},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			snap := testkit.NewSnapshotBuilder("joined").
				WithKind(deployment.KindBootstrap).
				WithRole(deployment.RoleGeneric, 20, "10.0.1.1").
				Build()
			f := newEngineFixture(snap)

			_, err := f.engine.Upscale(context.Background(), "joined", provisioning.UpscaleOptions{Desired: desired})

			require.ErrorIs(t, err, provisioning.ErrInvalidUpscaleOptionsForBootstrap)
			f.infra.AssertNumberOfCalls(t, "Apply", 0)
			f.infra.AssertNumberOfCalls(t, "Plan", 0)
			f.provisioner.AssertNumberOfCalls(t, "ProvisionRole", 0)
			assert.Empty(t, f.gate.calls)
			assert.Equal(t, 0, f.store.Saves)
		})
	}
}

func TestUpscale_BootstrapUsesStoredPeer(t *testing.T) {
	t.Parallel()

	const peer = "/ip4/203.0.113.7/udp/43000/quic-v1/p2p/12D3KooWXyz"
	snap := testkit.NewSnapshotBuilder("joined").
		WithKind(deployment.KindBootstrap).
		WithRole(deployment.RoleFullConeNatGateway, 0, "10.0.5.1").
		WithRole(deployment.RoleFullConePrivate, 20, "10.0.4.1").
		Build()
	snap.Environment.BootstrapPeer = peer

	f := newEngineFixture(snap)
	cfg := &testkit.MockConfigBackend{}
	f.engine.EntryPoints = &provisioning.SSHEntryPointResolver{Config: cfg, Shell: &testkit.MockRemoteShell{}, User: "root"}
	f.infra.On("Apply", mock.Anything, mock.Anything).Return(nil)
	f.infra.On("CurrentTopology", mock.Anything, "joined").Return(snap, nil)
	f.provisioner.On("ProvisionRole", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	result, err := f.engine.Upscale(context.Background(), "joined", provisioning.UpscaleOptions{
		Desired: deployment.DesiredCounts{FullConePrivateVMs: testkit.IntPtr(2)},
	})
	require.NoError(t, err)
	assert.False(t, result.Report.PartialFailure)

	cfg.AssertNotCalled(t, "ListInventory", mock.Anything, mock.Anything, mock.Anything)
	for _, call := range f.provisioner.Calls {
		if call.Arguments.Get(1) == deployment.RoleFullConePrivate {
			assert.Equal(t, peer, call.Arguments.Get(3).(provisioning.EntryPoint).Multiaddr)
		}
	}
	saved, err := f.store.Load(context.Background(), "joined")
	require.NoError(t, err)
	assert.Equal(t, peer, saved.Environment.BootstrapPeer)
}

func TestUpscale_InvalidCountPerformsNoSideEffect(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(freshSnapshot())

	_, err := f.engine.Upscale(context.Background(), "beta", provisioning.UpscaleOptions{
		Desired: deployment.DesiredCounts{GenericVMs: testkit.IntPtr(2)},
	})

	require.ErrorIs(t, err, provisioning.ErrInvalidGenericVMCount)
	f.infra.AssertNumberOfCalls(t, "Apply", 0)
	assert.Equal(t, 0, f.store.Saves)
}

func TestUpscale_PlanDoesNotApply(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(freshSnapshot())
	f.infra.On("Plan", mock.Anything, mock.Anything).Return("node_vm_count: 3 -> 4", nil)

	result, err := f.engine.Upscale(context.Background(), "beta", provisioning.UpscaleOptions{
		Desired: deployment.DesiredCounts{GenericVMs: testkit.IntPtr(4)},
		Plan:    true,
	})

	require.NoError(t, err)
	assert.Equal(t, "node_vm_count: 3 -> 4", result.Plan)
	assert.Equal(t, 4, result.Spec.VMCounts[deployment.RoleGeneric])
	f.infra.AssertNumberOfCalls(t, "Apply", 0)
}

func TestUpscale_InfraOnlyStopsAfterApply(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(freshSnapshot())
	f.infra.On("Apply", mock.Anything, mock.Anything).Return(nil)

	result, err := f.engine.Upscale(context.Background(), "beta", provisioning.UpscaleOptions{InfraOnly: true})

	require.NoError(t, err)
	assert.Nil(t, result.Report)
	assert.Empty(t, f.gate.calls)
	f.provisioner.AssertNumberOfCalls(t, "ProvisionRole", 0)
}

func TestUpscale_InfraFailureIsFatal(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(freshSnapshot())
	f.infra.On("Apply", mock.Anything, mock.Anything).Return(errors.New("quota exceeded"))

	_, err := f.engine.Upscale(context.Background(), "beta", provisioning.UpscaleOptions{})

	var applyErr *provisioning.InfraApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.Equal(t, "beta", applyErr.Name)
	assert.Empty(t, f.gate.calls)
	assert.Equal(t, 0, f.store.Saves)
}

func TestUpscale_PartialFailureStillRefreshesSnapshot(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(freshSnapshot())
	f.infra.On("Apply", mock.Anything, mock.Anything).Return(nil)
	f.infra.On("CurrentTopology", mock.Anything, "beta").Return(freshSnapshot(), nil)
	f.provisioner.On("ProvisionRole", mock.Anything, deployment.RoleGeneric, mock.Anything, mock.Anything).Return(errors.New("2 hosts unreachable"))
	f.provisionAll()

	result, err := f.engine.Upscale(context.Background(), "beta", provisioning.UpscaleOptions{})

	require.NoError(t, err)
	assert.True(t, result.Report.PartialFailure)
	require.Len(t, result.Report.Failed(), 1)
	assert.Equal(t, "Provision Generic Nodes", result.Report.Failed()[0].Stage)
	assert.Equal(t, 1, f.store.Saves)
}

func TestUpscale_MissingSnapshot(t *testing.T) {
	t.Parallel()
	f := newEngineFixture()

	_, err := f.engine.Upscale(context.Background(), "nope", provisioning.UpscaleOptions{})
	assert.ErrorIs(t, err, deployment.ErrSnapshotNotFound)
}

func stageNames(stages []provisioning.Stage) []string {
	names := make([]string, 0, len(stages))
	for _, s := range stages {
		names = append(names, s.Name)
	}
	return names
}

func TestPlanStages_Fresh(t *testing.T) {
	t.Parallel()

	counts := deployment.ResolvedCounts{
		deployment.RoleFullConePrivate:    {VMs: 2, InstancesPerVM: 10},
		deployment.RoleFullConeNatGateway: {VMs: 2},
	}
	stages := provisioning.PlanStages(deployment.KindFresh, counts, &testkit.MockProvisioner{}, &deployment.ProvisionOptions{}, false)

	assert.Equal(t, []string{
		"Provision Peer Cache Nodes",
		"Provision Generic Nodes",
		"Provision Full Cone NAT Gateway",
		"Provision Full Cone Private Nodes",
		"Start Faucet",
		"Provision Uploaders",
		"Stop Faucet",
	}, stageNames(stages))
	require.NoError(t, provisioning.ValidateOrder(stages))

	private := stages[3]
	assert.Equal(t, deployment.RoleFullConeNatGateway, private.DependsOn)
	assert.True(t, private.NeedsEntryPoint)
	assert.False(t, stages[2].NeedsEntryPoint, "gateways do not join the network")
	assert.Equal(t, "full-cone-private.yml", private.Procedure)
}

func TestPlanStages_BootstrapWithBuild(t *testing.T) {
	t.Parallel()

	counts := deployment.ResolvedCounts{
		deployment.RoleSymmetricPrivate:    {VMs: 1},
		deployment.RoleSymmetricNatGateway: {VMs: 1},
		deployment.RoleAuditor:             {VMs: 1},
	}
	stages := provisioning.PlanStages(deployment.KindBootstrap, counts, &testkit.MockProvisioner{}, &deployment.ProvisionOptions{}, true)

	assert.Equal(t, []string{
		"Build Custom Binaries",
		"Provision Generic Nodes",
		"Provision Symmetric NAT Gateway",
		"Provision Symmetric Private Nodes",
	}, stageNames(stages))
	assert.False(t, stages[0].AwaitNewMachines)
	assert.Equal(t, deployment.RoleBuild, stages[1].DependsOn)
}

func TestBuildInfraSpec(t *testing.T) {
	t.Parallel()

	snap := testkit.NewSnapshotBuilder("joined").WithKind(deployment.KindBootstrap).WithEvmNetwork(deployment.EvmCustom).Build()
	counts := deployment.ResolvedCounts{
		deployment.RoleGeneric:   {VMs: 4},
		deployment.RoleUploader:  {VMs: 2},
		deployment.RolePeerCache: {VMs: 3},
	}
	spec := provisioning.BuildInfraSpec(snap, counts, true)

	assert.Equal(t, 0, spec.VMCounts[deployment.RoleGenesis])
	assert.Equal(t, 4, spec.VMCounts[deployment.RoleGeneric])
	assert.Equal(t, 0, spec.VMCounts[deployment.RoleUploader])
	assert.Equal(t, 0, spec.VMCounts[deployment.RolePeerCache])
	assert.Equal(t, 1, spec.EvmNodeCount)
	assert.True(t, spec.EnableBuildVM)
	assert.Contains(t, spec.String(), "node_vm_count=4")
	assert.Contains(t, spec.String(), "use_custom_bin=true")
}

func TestBootstrap_WritesDetailsThenProvisions(t *testing.T) {
	t.Parallel()
	f := newEngineFixture()
	f.infra.On("Apply", mock.Anything, mock.MatchedBy(func(spec provisioning.InfraSpec) bool {
		return spec.VMCounts[deployment.RoleGeneric] == 2 && spec.VMCounts[deployment.RoleGenesis] == 0
	})).Return(nil).Once()
	f.infra.On("CurrentTopology", mock.Anything, "joined").Return(
		testkit.NewSnapshotBuilder("joined").WithKind(deployment.KindBootstrap).
			WithRole(deployment.RoleGeneric, 0, "10.0.1.1", "10.0.1.2").Build(), nil)
	f.provisionAll()

	result, err := f.engine.Bootstrap(context.Background(), provisioning.BootstrapOptions{
		Name:            "joined",
		EnvironmentType: deployment.EnvironmentDevelopment,
		EvmNetwork:      deployment.EvmArbitrumOne,
		BootstrapPeer:   "/ip4/10.9.9.9/udp/43000/quic-v1/p2p/12D3KooWXyz",
		Binary:          deployment.BinaryOption{NodeVersion: "0.3.0", AntctlVersion: "0.11.0"},
		GenericVMs:      2,
	})
	require.NoError(t, err)

	assert.Equal(t, 25, result.Counts.Get(deployment.RoleGeneric).InstancesPerVM)
	assert.Equal(t, []deployment.RoleCategory{deployment.RoleGeneric}, f.gate.calls)
	assert.Equal(t, 2, f.store.Saves, "environment details, then refreshed snapshot")
	assert.Len(t, result.Snapshot.Generic.VMs, 2)
	assert.Equal(t, deployment.KindBootstrap, result.Snapshot.Environment.Kind)
}

func TestBootstrap_RejectsExistingDeployment(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(freshSnapshot())

	_, err := f.engine.Bootstrap(context.Background(), provisioning.BootstrapOptions{
		Name:          "beta",
		BootstrapPeer: "/ip4/10.9.9.9/udp/43000",
		Binary:        deployment.BinaryOption{NodeVersion: "0.3.0"},
	})
	assert.ErrorIs(t, err, provisioning.ErrDeploymentExists)
	f.infra.AssertNumberOfCalls(t, "Apply", 0)
}
