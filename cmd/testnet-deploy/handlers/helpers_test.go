package handlers

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/imamik/testnet-deploy/internal/config"
	"github.com/imamik/testnet-deploy/internal/deployment"
	"github.com/imamik/testnet-deploy/internal/provisioning"
	"github.com/imamik/testnet-deploy/internal/util/command"
	"github.com/imamik/testnet-deploy/internal/util/prerequisites"
)

// saveAndRestoreFactories restores every factory variable after the test.
// Tests using it must not run in parallel.
func saveAndRestoreFactories(t *testing.T) {
	t.Helper()

	origLoadConfig := loadConfig
	origNewObjectStore := newObjectStore
	origOpenLocalStore := openLocalStore
	origNewInfraBackend := newInfraBackend
	origNewRemoteShell := newRemoteShell
	origNewCommandRunner := newCommandRunner
	origCheckDefault := checkDefaultPrereqs
	origCheckLogs := checkLogPrereqs
	origCheckAll := checkAllPrereqs
	origNewRunID := newRunID
	origStdout := stdout

	t.Cleanup(func() {
		loadConfig = origLoadConfig
		newObjectStore = origNewObjectStore
		openLocalStore = origOpenLocalStore
		newInfraBackend = origNewInfraBackend
		newRemoteShell = origNewRemoteShell
		newCommandRunner = origNewCommandRunner
		checkDefaultPrereqs = origCheckDefault
		checkLogPrereqs = origCheckLogs
		checkAllPrereqs = origCheckAll
		newRunID = origNewRunID
		stdout = origStdout
	})
}

// useTestConfig makes loadConfig return a valid configuration rooted in a
// temporary directory and captures the output.
func useTestConfig(t *testing.T) (*config.Config, *bytes.Buffer) {
	t.Helper()
	saveAndRestoreFactories(t)

	cfg := config.Default()
	cfg.WorkingDir = t.TempDir()
	cfg.LogsRoot = t.TempDir()
	loadConfig = func(string, string) (*config.Config, error) { return cfg, nil }

	out := &bytes.Buffer{}
	stdout = out
	newRunID = func() string { return "run-1" }
	noTools := func() *prerequisites.CheckResults { return &prerequisites.CheckResults{} }
	checkDefaultPrereqs = noTools
	checkLogPrereqs = noTools
	return cfg, out
}

// fakeObjects is an in-memory ObjectStore.
type fakeObjects struct {
	objects    map[string][]byte
	downloaded []string
	deleted    []string
	uploaded   []string
	count      int
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}}
}

func (f *fakeObjects) PutObject(_ context.Context, bucket, key string, data []byte) error {
	f.objects[bucket+"/"+key] = data
	return nil
}

func (f *fakeObjects) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func (f *fakeObjects) DownloadFolder(_ context.Context, bucket, prefix, _ string) (int, error) {
	f.downloaded = append(f.downloaded, bucket+"/"+prefix)
	return f.count, nil
}

func (f *fakeObjects) DeleteFolder(_ context.Context, bucket, prefix string) (int, error) {
	f.deleted = append(f.deleted, bucket+"/"+prefix)
	return f.count, nil
}

func (f *fakeObjects) UploadFolder(_ context.Context, bucket, _, prefix string) (int, error) {
	f.uploaded = append(f.uploaded, bucket+"/"+prefix)
	return f.count, nil
}

// unreachableObjects fails every read.
type unreachableObjects struct {
	*fakeObjects
}

func (unreachableObjects) GetObject(context.Context, string, string) ([]byte, error) {
	return nil, errors.New("bucket unreachable")
}

// staticTopology is an InfraBackend that only reports a fixed topology.
type staticTopology struct {
	provisioning.InfraBackend
	snapshot *deployment.Snapshot
}

func (s staticTopology) CurrentTopology(context.Context, string) (*deployment.Snapshot, error) {
	return s.snapshot, nil
}

// scriptedRunner answers commands by binary name.
type scriptedRunner struct {
	calls   []command.Cmd
	answers map[string]command.Result
}

func (r *scriptedRunner) Run(_ context.Context, cmd command.Cmd) (command.Result, error) {
	r.calls = append(r.calls, cmd)
	return r.answers[cmd.Binary], nil
}
