package testing

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/imamik/testnet-deploy/internal/deployment"
	"github.com/imamik/testnet-deploy/internal/provisioning"
	"github.com/imamik/testnet-deploy/internal/util/command"
)

// MockInfraBackend is a mock implementation of provisioning.InfraBackend.
type MockInfraBackend struct {
	mock.Mock
}

func (m *MockInfraBackend) Apply(ctx context.Context, spec provisioning.InfraSpec) error {
	return m.Called(ctx, spec).Error(0)
}

func (m *MockInfraBackend) Plan(ctx context.Context, spec provisioning.InfraSpec) (string, error) {
	args := m.Called(ctx, spec)
	return args.String(0), args.Error(1)
}

func (m *MockInfraBackend) CurrentTopology(ctx context.Context, name string) (*deployment.Snapshot, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*deployment.Snapshot), args.Error(1)
}

// MockConfigBackend is a mock implementation of provisioning.ConfigBackend.
type MockConfigBackend struct {
	mock.Mock
}

func (m *MockConfigBackend) RunProcedure(ctx context.Context, run provisioning.ProcedureRun) error {
	return m.Called(ctx, run).Error(0)
}

func (m *MockConfigBackend) ListInventory(ctx context.Context, role deployment.RoleCategory, forceRefresh bool) ([]deployment.MachineRef, error) {
	args := m.Called(ctx, role, forceRefresh)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]deployment.MachineRef), args.Error(1)
}

// MockRemoteShell is a mock implementation of provisioning.RemoteShell.
type MockRemoteShell struct {
	mock.Mock
}

func (m *MockRemoteShell) WaitForReachable(ctx context.Context, addr netip.Addr, user string) error {
	return m.Called(ctx, addr, user).Error(0)
}

func (m *MockRemoteShell) RunCommand(ctx context.Context, addr netip.Addr, user, command string, capture bool) ([]string, error) {
	args := m.Called(ctx, addr, user, command, capture)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockProvisioner is a mock implementation of provisioning.Provisioner.
type MockProvisioner struct {
	mock.Mock
}

func (m *MockProvisioner) Procedure(role deployment.RoleCategory) string {
	return string(role) + ".yml"
}

func (m *MockProvisioner) ProvisionRole(ctx context.Context, role deployment.RoleCategory, opts *deployment.ProvisionOptions, ep provisioning.EntryPoint) error {
	return m.Called(ctx, role, opts, ep).Error(0)
}

func (m *MockProvisioner) StartFaucet(ctx context.Context, opts *deployment.ProvisionOptions, ep provisioning.EntryPoint) error {
	return m.Called(ctx, opts, ep).Error(0)
}

func (m *MockProvisioner) StopFaucet(ctx context.Context, opts *deployment.ProvisionOptions, ep provisioning.EntryPoint) error {
	return m.Called(ctx, opts, ep).Error(0)
}

func (m *MockProvisioner) BuildBinaries(ctx context.Context, opts *deployment.ProvisionOptions) error {
	return m.Called(ctx, opts).Error(0)
}

// MockEntryPoints is a mock implementation of provisioning.EntryPointResolver.
type MockEntryPoints struct {
	mock.Mock
}

func (m *MockEntryPoints) Resolve(ctx context.Context, env deployment.EnvironmentDetails) (provisioning.EntryPoint, error) {
	args := m.Called(ctx, env)
	return args.Get(0).(provisioning.EntryPoint), args.Error(1)
}

// MemoryStore is an in-memory deployment.Store.
type MemoryStore struct {
	mu        sync.Mutex
	snapshots map[string]deployment.Snapshot
	Saves     int
}

// NewMemoryStore seeds a store with the given snapshots.
func NewMemoryStore(snapshots ...*deployment.Snapshot) *MemoryStore {
	s := &MemoryStore{snapshots: map[string]deployment.Snapshot{}}
	for _, snap := range snapshots {
		s.snapshots[snap.Name] = *snap
	}
	return s
}

func (s *MemoryStore) Load(_ context.Context, name string) (*deployment.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", deployment.ErrSnapshotNotFound, name)
	}
	return &snap, nil
}

func (s *MemoryStore) Save(_ context.Context, snapshot *deployment.Snapshot) error {
	if snapshot == nil {
		return errors.New("nil snapshot")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Saves++
	s.snapshots[snapshot.Name] = *snapshot
	return nil
}

// MockCommandRunner is a mock implementation of command.Runner.
type MockCommandRunner struct {
	mock.Mock
}

func (m *MockCommandRunner) Run(ctx context.Context, cmd command.Cmd) (command.Result, error) {
	args := m.Called(ctx, cmd)
	return args.Get(0).(command.Result), args.Error(1)
}
