package hcloud

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sort"
	"sync"
	"testing"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/testnet-deploy/internal/deployment"
	"github.com/imamik/testnet-deploy/internal/provisioning"
	"github.com/imamik/testnet-deploy/internal/util/labels"
)

// fakeAPI records created servers and lists them back.
type fakeAPI struct {
	mu       sync.Mutex
	servers  []*hcloud.Server
	created  []ServerCreateOpts
	failName string
	listErr  error
}

func (f *fakeAPI) ListServers(_ context.Context, selector string) ([]*hcloud.Server, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*hcloud.Server
	for _, s := range f.servers {
		if labels.SelectorForDeployment(s.Labels[labels.KeyDeployment]) == selector {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeAPI) CreateServer(_ context.Context, opts ServerCreateOpts) (*hcloud.Server, error) {
	if opts.Name == f.failName {
		return nil, errors.New("resource_unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, opts)
	s := server(opts.Name, opts.Labels[labels.KeyDeployment], opts.Labels[labels.KeyRole], "192.0.2.99")
	f.servers = append(f.servers, s)
	return s, nil
}

func (f *fakeAPI) createdNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.created))
	for _, c := range f.created {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

func server(name, dep, role, ip string) *hcloud.Server {
	s := &hcloud.Server{
		Name:   name,
		Labels: map[string]string{labels.KeyDeployment: dep, labels.KeyRole: role},
	}
	s.PublicNet.IPv4.IP = net.ParseIP(ip)
	return s
}

func stagingSpec(counts map[deployment.RoleCategory]int) provisioning.InfraSpec {
	return provisioning.InfraSpec{
		Name:            "beta",
		EnvironmentType: deployment.EnvironmentStaging,
		VMCounts:        counts,
	}
}

func TestBackend_ApplyCreatesOnlyMissingServers(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{servers: []*hcloud.Server{
		server("beta-genesis-1", "beta", "genesis", "10.0.0.1"),
		server("beta-generic-1", "beta", "generic", "10.0.1.1"),
		server("beta-generic-3", "beta", "generic", "10.0.1.3"),
		server("other-generic-1", "other", "generic", "10.9.0.1"),
	}}
	b := &Backend{API: api, Image: "ubuntu-24.04", Location: "nbg1", SSHKeys: []string{"beta-ssh"}}

	err := b.Apply(context.Background(), stagingSpec(map[deployment.RoleCategory]int{
		deployment.RoleGenesis:  1,
		deployment.RoleGeneric:  4,
		deployment.RoleUploader: 1,
	}))

	require.NoError(t, err)
	assert.Equal(t, []string{"beta-generic-2", "beta-generic-4", "beta-uploader-1"}, api.createdNames())

	for _, c := range api.created {
		assert.Equal(t, "ubuntu-24.04", c.ImageType)
		assert.Equal(t, "nbg1", c.Location)
		assert.Equal(t, []string{"beta-ssh"}, c.SSHKeys)
		assert.Equal(t, "beta", c.Labels[labels.KeyDeployment])
		assert.Equal(t, "staging", c.Labels[labels.KeyEnvironment])
		if c.Name == "beta-uploader-1" {
			assert.Equal(t, "cx22", c.ServerType)
		} else {
			assert.Equal(t, "cx32", c.ServerType)
			assert.Equal(t, "generic", c.Labels[labels.KeyRole])
		}
	}
}

func TestBackend_ApplyIsIdempotent(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	b := &Backend{API: api}
	spec := stagingSpec(map[deployment.RoleCategory]int{deployment.RoleGeneric: 2})

	require.NoError(t, b.Apply(context.Background(), spec))
	require.NoError(t, b.Apply(context.Background(), spec))
	assert.Len(t, api.created, 2)
}

func TestBackend_ApplyBuildAndEvmNodes(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	b := &Backend{API: api, ServerTypes: map[string]string{"build": "ccx33"}}
	spec := stagingSpec(map[deployment.RoleCategory]int{deployment.RoleGeneric: 0})
	spec.EnableBuildVM = true
	spec.EvmNodeCount = 1

	require.NoError(t, b.Apply(context.Background(), spec))
	assert.Equal(t, []string{"beta-build-1", "beta-evm-node-1"}, api.createdNames())
	for _, c := range api.created {
		if c.Name == "beta-build-1" {
			assert.Equal(t, "ccx33", c.ServerType)
		}
	}
}

func TestBackend_ApplyReportsFailures(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{failName: "beta-generic-2"}
	b := &Backend{API: api}

	err := b.Apply(context.Background(), stagingSpec(map[deployment.RoleCategory]int{deployment.RoleGeneric: 3}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create 1 of 3 servers")
	assert.Contains(t, err.Error(), "beta-generic-2: resource_unavailable")
	assert.Equal(t, []string{"beta-generic-1", "beta-generic-3"}, api.createdNames())
}

func TestBackend_ApplyListError(t *testing.T) {
	t.Parallel()

	b := &Backend{API: &fakeAPI{listErr: errors.New("unauthorized")}}
	err := b.Apply(context.Background(), stagingSpec(map[deployment.RoleCategory]int{deployment.RoleGeneric: 1}))
	assert.EqualError(t, err, "unauthorized")
}

func TestBackend_Plan(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{servers: []*hcloud.Server{
		server("beta-generic-1", "beta", "generic", "10.0.1.1"),
	}}
	b := &Backend{API: api}

	plan, err := b.Plan(context.Background(), stagingSpec(map[deployment.RoleCategory]int{
		deployment.RoleGenesis: 0,
		deployment.RoleGeneric: 3,
	}))

	require.NoError(t, err)
	assert.Equal(t, "genesis: 0 -> 0\ngeneric: 1 -> 3 (+beta-generic-2, beta-generic-3)\n", plan)
	assert.Empty(t, api.created)

	plan, err = b.Plan(context.Background(), stagingSpec(map[deployment.RoleCategory]int{deployment.RoleGeneric: 1}))
	require.NoError(t, err)
	assert.Contains(t, plan, "No changes.")
}

func TestBackend_CurrentTopology(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{servers: []*hcloud.Server{
		server("beta-generic-2", "beta", "generic", "10.0.1.2"),
		server("beta-generic-1", "beta", "generic", "10.0.1.1"),
		server("beta-full-cone-nat-gateway-1", "beta", "full-cone-nat-gateway", "10.0.3.1"),
		server("beta-build-1", "beta", "build", "10.0.9.1"),
		server("beta-evm-node-1", "beta", "evm-node", "10.0.9.2"),
		server("other-generic-1", "other", "generic", "10.9.0.1"),
	}}
	b := &Backend{API: api}

	snap, err := b.CurrentTopology(context.Background(), "beta")

	require.NoError(t, err)
	assert.Equal(t, "beta", snap.Name)
	assert.Equal(t, []deployment.MachineRef{
		{Name: "beta-generic-1", PublicAddress: netip.MustParseAddr("10.0.1.1")},
		{Name: "beta-generic-2", PublicAddress: netip.MustParseAddr("10.0.1.2")},
	}, snap.Generic.VMs)
	require.Len(t, snap.FullConeNatGateways.VMs, 1)
	assert.Empty(t, snap.Genesis.VMs)
	assert.Len(t, snap.AllMachines(), 2, "build and evm nodes are not tracked")
}

func TestDefaultServerType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "cx22", DefaultServerType(deployment.EnvironmentDevelopment, "generic"))
	assert.Equal(t, "cx32", DefaultServerType(deployment.EnvironmentStaging, "peer-cache"))
	assert.Equal(t, "cx42", DefaultServerType(deployment.EnvironmentProduction, "generic"))
	assert.Equal(t, "cx22", DefaultServerType(deployment.EnvironmentProduction, "symmetric-nat-gateway"))
	assert.Equal(t, "cx42", DefaultServerType(deployment.EnvironmentDevelopment, "build"))
}
