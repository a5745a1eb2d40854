package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/testnet-deploy/internal/config"
	"github.com/imamik/testnet-deploy/internal/deployment"
	"github.com/imamik/testnet-deploy/internal/logs"
	"github.com/imamik/testnet-deploy/internal/provisioning"
	testkit "github.com/imamik/testnet-deploy/internal/testing"
	"github.com/imamik/testnet-deploy/internal/util/command"
)

func useTopology(snapshot *deployment.Snapshot) {
	newInfraBackend = func(*config.Config, *config.Timeouts, string, provisioning.Observer) provisioning.InfraBackend {
		return staticTopology{snapshot: snapshot}
	}
}

func TestLogsRsync_SyncsEveryMachine(t *testing.T) {
	cfg, out := useTestConfig(t)
	useTopology(testkit.NewSnapshotBuilder("beta").
		WithRole(deployment.RoleGeneric, 5, "10.0.1.1", "10.0.1.2").
		Build())
	runner := &scriptedRunner{}
	newCommandRunner = func() command.Runner { return runner }
	metricsFile := filepath.Join(t.TempDir(), "logs.prom")

	err := LogsRsync(testkit.TestContext(t), LogsArgs{Name: "beta", MetricsFile: metricsFile}, "")
	require.NoError(t, err)

	require.Len(t, runner.calls, 3)
	for _, c := range runner.calls {
		assert.Equal(t, "rsync", c.Binary)
	}
	for _, name := range []string{"beta-genesis-1", "beta-generic-1", "beta-generic-2"} {
		assert.DirExists(t, filepath.Join(logs.Dir(cfg.LogsRoot, "beta"), name))
	}
	assert.Contains(t, out.String(), "Logs written to")

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "testnet_deploy_logs_machines_total")
}

func TestLogsRsync_Filter(t *testing.T) {
	useTestConfig(t)
	useTopology(testkit.NewSnapshotBuilder("beta").
		WithRole(deployment.RoleGeneric, 5, "10.0.1.1", "10.0.1.2").
		Build())
	runner := &scriptedRunner{}
	newCommandRunner = func() command.Runner { return runner }

	require.NoError(t, LogsRsync(testkit.TestContext(t), LogsArgs{Name: "beta"}, "genesis"))
	assert.Len(t, runner.calls, 1)
}

func TestLogsRsync_Upload(t *testing.T) {
	cfg, out := useTestConfig(t)
	useTopology(testkit.NewSnapshotBuilder("beta").Build())
	newCommandRunner = func() command.Runner { return &scriptedRunner{} }
	objects := newFakeObjects()
	objects.count = 1
	newObjectStore = func(context.Context, *config.Config) (ObjectStore, error) { return objects, nil }

	require.NoError(t, LogsRsync(testkit.TestContext(t), LogsArgs{Name: "beta", Upload: true}, ""))
	assert.Equal(t, []string{cfg.S3.Bucket + "/testnet-logs/beta"}, objects.uploaded)
	assert.Contains(t, out.String(), "Archived 1 files under testnet-logs/beta")
}

func TestLogsGet(t *testing.T) {
	cfg, out := useTestConfig(t)
	objects := newFakeObjects()
	objects.count = 4
	newObjectStore = func(context.Context, *config.Config) (ObjectStore, error) { return objects, nil }

	require.NoError(t, LogsGet(testkit.TestContext(t), LogsArgs{Name: "beta"}))
	assert.Equal(t, []string{cfg.S3.Bucket + "/testnet-logs/beta"}, objects.downloaded)
	assert.Contains(t, out.String(), "Downloaded 4 files")
}

func TestLogsRm(t *testing.T) {
	cfg, out := useTestConfig(t)
	objects := newFakeObjects()
	objects.count = 2
	newObjectStore = func(context.Context, *config.Config) (ObjectStore, error) { return objects, nil }

	require.NoError(t, LogsRm(testkit.TestContext(t), LogsArgs{Name: "beta"}))
	assert.Equal(t, []string{cfg.S3.Bucket + "/testnet-logs/beta"}, objects.deleted)
	assert.Contains(t, out.String(), "Removed 2 archived log files of beta")
}

func TestLogsReassemble_NotRetrieved(t *testing.T) {
	useTestConfig(t)

	err := LogsReassemble(testkit.TestContext(t), LogsArgs{Name: "beta"})
	require.ErrorIs(t, err, logs.ErrLogsNotRetrieved)
}

func TestLogsReassemble(t *testing.T) {
	cfg, out := useTestConfig(t)
	dir := filepath.Join(logs.Dir(cfg.LogsRoot, "beta"), "beta-generic-1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "antnode.log.part1"), []byte("b"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "antnode.log.part0"), []byte("a"), 0o600))

	require.NoError(t, LogsReassemble(testkit.TestContext(t), LogsArgs{Name: "beta"}))

	merged, err := os.ReadFile(filepath.Join(logs.ReassembledDir(cfg.LogsRoot, "beta"), "beta-generic-1", logs.ReassembledFile))
	require.NoError(t, err)
	assert.Equal(t, "ab", string(merged))
	assert.Contains(t, out.String(), "Reassembled logs written to")
}
