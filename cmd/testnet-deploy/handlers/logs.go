package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/testnet-deploy/internal/ansible"
	"github.com/imamik/testnet-deploy/internal/deployment"
	"github.com/imamik/testnet-deploy/internal/logs"
)

// LogsArgs are the inputs shared by the logs subcommands.
type LogsArgs struct {
	Options
	Name string
	// MetricsFile receives the fan-out metrics in the textfile format.
	// Empty disables the export.
	MetricsFile string
	// Upload archives the collected logs to the object store after rsync.
	Upload bool
}

// targets lists the deployment's machines as the infra backend sees them.
func (e *env) targets(ctx context.Context, name string) ([]logs.Target, error) {
	topology, err := newInfraBackend(e.cfg, e.timeouts, name, e.observer).CurrentTopology(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list machines of %s: %w", name, err)
	}
	return logs.Targets(topology), nil
}

func (e *env) writeMetrics(m *logs.Metrics, path string) error {
	if path == "" {
		return nil
	}
	return m.WriteTextfile(path)
}

// LogsRsync pulls node logs from every machine whose name contains filter.
func LogsRsync(ctx context.Context, args LogsArgs, filter string) error {
	if err := checkLogPrereqs().Error(); err != nil {
		return err
	}
	e, err := newEnv(args.Options)
	if err != nil {
		return err
	}
	defer e.Close()

	targets, err := e.targets(ctx, args.Name)
	if err != nil {
		return err
	}
	metrics := logs.NewMetrics()
	collector := &logs.Collector{
		Cmd:         newCommandRunner(),
		SSHKeyPath:  e.cfg.SSHKeyPath,
		User:        e.cfg.SSHUser,
		Root:        e.cfg.LogsRoot,
		Concurrency: e.cfg.Concurrency,
		Observer:    e.observer,
		Metrics:     metrics,
	}
	report, err := collector.Collect(ctx, logs.CollectRequest{Name: args.Name, Targets: targets, Filter: filter})
	if err != nil {
		return err
	}

	for _, m := range report.Unresolved {
		e.printer.Result(m.Name, "failed", "could not obtain logs")
	}
	e.printer.Println(fmt.Sprintf("Logs written to %s", report.Dest))

	if args.Upload {
		objects, err := e.objects(ctx)
		if err != nil {
			return err
		}
		n, err := logs.Upload(ctx, objects, e.cfg.S3.Bucket, e.cfg.LogsRoot, args.Name)
		if err != nil {
			return err
		}
		e.printer.Println(fmt.Sprintf("Archived %d files under %s", n, logs.ArchivePrefix(args.Name)))
	}
	return e.writeMetrics(metrics, args.MetricsFile)
}

// LogsSearch runs rg with rgArgs on every machine of the deployment.
func LogsSearch(ctx context.Context, args LogsArgs, rgArgs string) error {
	e, err := newEnv(args.Options)
	if err != nil {
		return err
	}
	defer e.Close()

	targets, err := e.targets(ctx, args.Name)
	if err != nil {
		return err
	}
	machines := make([]deployment.MachineRef, 0, len(targets))
	for _, t := range targets {
		machines = append(machines, t.Machine)
	}
	shell, err := newRemoteShell(e.cfg, e.timeouts)
	if err != nil {
		return err
	}

	metrics := logs.NewMetrics()
	searcher := &logs.Searcher{
		Shell:       shell,
		User:        e.cfg.SSHUser,
		Root:        e.cfg.LogsRoot,
		Concurrency: e.cfg.Concurrency,
		Observer:    e.observer,
		Metrics:     metrics,
	}
	report, err := searcher.Search(ctx, logs.SearchRequest{Name: args.Name, Machines: machines, Args: rgArgs})
	if err != nil {
		return err
	}
	for _, f := range report.Failed {
		e.printer.Result(f.Machine.Name, "failed", f.Err.Error())
	}
	e.printer.Println(fmt.Sprintf("Results written to rg-%s.log under %s", report.Timestamp, logs.Dir(e.cfg.LogsRoot, args.Name)))
	return e.writeMetrics(metrics, args.MetricsFile)
}

// LogsCopy copies node logs with the logs playbook.
func LogsCopy(ctx context.Context, args LogsArgs, resourcesOnly bool) error {
	if err := checkDefaultPrereqs().Error(); err != nil {
		return err
	}
	e, err := newEnv(args.Options)
	if err != nil {
		return err
	}
	defer e.Close()

	dest, err := logs.PrepareCopy(e.cfg.LogsRoot, args.Name)
	if err != nil {
		return err
	}
	runner, err := e.runner(args.Name)
	if err != nil {
		return err
	}
	p := ansible.NewProvisioner(runner, e.cfg.Provider)
	if err := p.CopyLogs(ctx, args.Name, e.cfg.SSHUser, resourcesOnly); err != nil {
		return err
	}
	e.printer.Println(fmt.Sprintf("Logs copied to %s", dest))
	return nil
}

// LogsGet downloads the archived logs of a deployment.
func LogsGet(ctx context.Context, args LogsArgs) error {
	e, err := newEnv(args.Options)
	if err != nil {
		return err
	}
	defer e.Close()

	objects, err := e.objects(ctx)
	if err != nil {
		return err
	}
	n, err := logs.Get(ctx, objects, e.cfg.S3.Bucket, e.cfg.LogsRoot, args.Name)
	if err != nil {
		return err
	}
	e.printer.Println(fmt.Sprintf("Downloaded %d files to %s", n, logs.Dir(e.cfg.LogsRoot, args.Name)))
	return nil
}

// LogsRm deletes the archived logs of a deployment.
func LogsRm(ctx context.Context, args LogsArgs) error {
	e, err := newEnv(args.Options)
	if err != nil {
		return err
	}
	defer e.Close()

	objects, err := e.objects(ctx)
	if err != nil {
		return err
	}
	n, err := logs.Remove(ctx, objects, e.cfg.S3.Bucket, args.Name)
	if err != nil {
		return err
	}
	e.printer.Println(fmt.Sprintf("Removed %d archived log files of %s", n, args.Name))
	return nil
}

// LogsReassemble merges shipped log parts of a downloaded deployment.
func LogsReassemble(_ context.Context, args LogsArgs) error {
	e, err := newEnv(args.Options)
	if err != nil {
		return err
	}
	defer e.Close()

	dest, err := logs.Reassemble(e.cfg.LogsRoot, args.Name)
	if err != nil {
		return err
	}
	e.printer.Println(fmt.Sprintf("Reassembled logs written to %s", dest))
	return nil
}
