// Package handlers implements the business logic for CLI commands.
//
// Handlers are called by the command definitions in the commands package.
// Every external collaborator is created through a factory variable so tests
// can substitute fakes.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/imamik/testnet-deploy/internal/ansible"
	"github.com/imamik/testnet-deploy/internal/config"
	"github.com/imamik/testnet-deploy/internal/deployment"
	"github.com/imamik/testnet-deploy/internal/platform/hcloud"
	"github.com/imamik/testnet-deploy/internal/platform/s3"
	"github.com/imamik/testnet-deploy/internal/platform/ssh"
	"github.com/imamik/testnet-deploy/internal/provisioning"
	"github.com/imamik/testnet-deploy/internal/ui"
	"github.com/imamik/testnet-deploy/internal/util/command"
	"github.com/imamik/testnet-deploy/internal/util/naming"
	"github.com/imamik/testnet-deploy/internal/util/prerequisites"
)

// ErrPartialFailure is returned in strict mode when some stages failed.
var ErrPartialFailure = errors.New("some stages failed")

// ObjectStore is what the handlers need from the object store.
type ObjectStore interface {
	deployment.ObjectStore
	DownloadFolder(ctx context.Context, bucket, prefix, dir string) (int, error)
	DeleteFolder(ctx context.Context, bucket, prefix string) (int, error)
	UploadFolder(ctx context.Context, bucket, dir, prefix string) (int, error)
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfig loads configuration from the working directory.
	loadConfig = config.Load

	// newObjectStore creates the object store client.
	newObjectStore = func(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
		return s3.NewClient(ctx, cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey)
	}

	// openLocalStore opens the SQLite snapshot cache.
	openLocalStore = func(path string) (deployment.Store, func() error, error) {
		db, err := deployment.OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		return deployment.NewSQLiteStore(db), db.Close, nil
	}

	// newInfraBackend creates the Hetzner Cloud infra backend.
	newInfraBackend = func(cfg *config.Config, timeouts *config.Timeouts, name string, obs provisioning.Observer) provisioning.InfraBackend {
		keyName := cfg.HCloud.SSHKeyName
		if keyName == "" {
			keyName = naming.SSHKey(name)
		}
		return &hcloud.Backend{
			API:         hcloud.NewRealClient(cfg.HCloud.Token, hcloud.WithTimeouts(timeouts), hcloud.WithLogger(obs)),
			Location:    cfg.HCloud.Location,
			Image:       cfg.HCloud.Image,
			SSHKeys:     []string{keyName},
			ServerTypes: cfg.HCloud.ServerTypes,
			Observer:    obs,
		}
	}

	// newRemoteShell creates the SSH client.
	newRemoteShell = func(cfg *config.Config, timeouts *config.Timeouts) (provisioning.RemoteShell, error) {
		key, err := os.ReadFile(cfg.SSHKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read ssh key: %w", err)
		}
		return ssh.NewClient(&ssh.Config{
			PrivateKey: key,
			MaxRetries: timeouts.SSHMaxRetries,
			RetryDelay: timeouts.SSHRetryDelay,
		})
	}

	// newCommandRunner runs local binaries.
	newCommandRunner = func() command.Runner { return command.ExecRunner{} }

	// checkDefaultPrereqs verifies the tools deployments need.
	checkDefaultPrereqs = prerequisites.CheckDefault

	// checkLogPrereqs verifies the tools log collection needs.
	checkLogPrereqs = prerequisites.CheckForLogs

	// newRunID tags every line of a run.
	newRunID = uuid.NewString

	// stdout receives user facing output.
	stdout io.Writer = os.Stdout
)

// Options common to every command.
type Options struct {
	// Dir is the directory holding testnet-deploy.yaml and .env.
	Dir        string
	ConfigPath string
}

// env is everything a command needs, built once per invocation.
type env struct {
	cfg      *config.Config
	timeouts *config.Timeouts
	observer provisioning.Observer
	printer  *ui.Printer
	closers  []func() error
}

func newEnv(opts Options) (*env, error) {
	cfg, err := loadConfig(opts.Dir, opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate().Err(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	obs := provisioning.NewConsoleObserverWithLogger(log.New(stdout, "", log.LstdFlags)).
		WithFields(map[string]string{"run_id": newRunID()})
	return &env{
		cfg:      cfg,
		timeouts: config.LoadTimeouts(),
		observer: obs,
		printer:  ui.NewPrinter(stdout),
	}, nil
}

func (e *env) Close() {
	for _, c := range e.closers {
		_ = c()
	}
}

// objects returns the object store client.
func (e *env) objects(ctx context.Context) (ObjectStore, error) {
	store, err := newObjectStore(ctx, e.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}
	return store, nil
}

// store returns the snapshot store: the bucket, mirrored into the local
// SQLite cache when one is configured.
func (e *env) store(ctx context.Context) (deployment.Store, error) {
	objects, err := e.objects(ctx)
	if err != nil {
		return nil, err
	}
	primary := deployment.NewS3Store(objects, e.cfg.S3.Bucket)
	if e.cfg.StateDB == "" {
		return primary, nil
	}
	local, closeFn, err := openLocalStore(e.cfg.StateDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open state db: %w", err)
	}
	e.closers = append(e.closers, closeFn)
	return &deployment.CachedStore{
		Primary: primary,
		Cache:   local,
		OnFallback: func(name string, err error) {
			e.observer.Printf("[state] Object store unavailable for %s (%v), using the local cache", name, err)
		},
	}, nil
}

// runner returns the ansible runner for a deployment, writing its
// inventory files first.
func (e *env) runner(name string) (*ansible.Runner, error) {
	if _, err := ansible.WriteInventories(e.cfg.InventoryDir(), name, e.cfg.Provider); err != nil {
		return nil, err
	}
	return &ansible.Runner{
		Cmd:          newCommandRunner(),
		Name:         name,
		Provider:     e.cfg.Provider,
		PlaybookDir:  e.cfg.AnsibleDir(),
		InventoryDir: e.cfg.InventoryDir(),
		SSHKeyPath:   e.cfg.SSHKeyPath,
		Forks:        e.cfg.Ansible.Forks,
		Verbose:      e.cfg.Ansible.Verbose,
		Output:       stdout,
	}, nil
}

// engine wires the provisioning engine for a deployment.
func (e *env) engine(ctx context.Context, name string) (*provisioning.Engine, error) {
	store, err := e.store(ctx)
	if err != nil {
		return nil, err
	}
	runner, err := e.runner(name)
	if err != nil {
		return nil, err
	}
	shell, err := newRemoteShell(e.cfg, e.timeouts)
	if err != nil {
		return nil, err
	}

	obs := e.observer.WithFields(map[string]string{"deployment": name})
	return &provisioning.Engine{
		Store:       store,
		Infra:       newInfraBackend(e.cfg, e.timeouts, name, obs),
		Provisioner: ansible.NewProvisioner(runner, e.cfg.Provider),
		Gate: &provisioning.Gate{
			Config:   runner,
			Shell:    shell,
			User:     e.cfg.SSHUser,
			Observer: obs,
			Timeout:  e.timeouts.Reachability,
		},
		EntryPoints: &provisioning.SSHEntryPointResolver{
			Config: runner,
			Shell:  shell,
			User:   e.cfg.SSHUser,
		},
		Observer:     obs,
		Timeouts:     e.timeouts,
		Banner:       e.printer.Banner,
		InventoryDir: e.cfg.InventoryDir(),
		SSHUser:      e.cfg.SSHUser,
	}, nil
}

// reportStages prints every stage outcome and, after a partial failure, the
// warning. In strict mode a partial failure is an error.
func (e *env) reportStages(report *provisioning.SequenceReport, strict bool) error {
	if report == nil {
		return nil
	}
	for _, o := range report.Outcomes {
		detail := ""
		if o.Err != nil {
			detail = o.Err.Error()
		}
		e.printer.Result(o.Stage, string(o.Status), detail)
	}
	if !report.PartialFailure {
		return nil
	}
	e.printer.PartialFailureWarning()
	if strict {
		return fmt.Errorf("%w:\n%s", ErrPartialFailure, report.Summary())
	}
	return nil
}
