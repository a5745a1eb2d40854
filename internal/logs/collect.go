package logs

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/imamik/testnet-deploy/internal/deployment"
	"github.com/imamik/testnet-deploy/internal/provisioning"
	"github.com/imamik/testnet-deploy/internal/util/async"
	"github.com/imamik/testnet-deploy/internal/util/command"
	"github.com/imamik/testnet-deploy/internal/util/naming"
)

// RemoteLogDir is where nodes write their logs.
const RemoteLogDir = "/mnt/antnode-storage/log/"

const (
	rsyncBinary     = "rsync"
	sshKeygenBinary = "ssh-keygen"
)

// Target is one machine to collect from. Via is the NAT gateway a private
// machine is reached through; the zero Addr means a direct connection.
type Target struct {
	Machine deployment.MachineRef
	Via     netip.Addr
}

// Targets lists the machines in a snapshot that run nodes. Gateways are
// never targets themselves. Private machines are routed through the gateway
// with the same server index, or through the only gateway when there is just
// one.
func Targets(s *deployment.Snapshot) []Target {
	var targets []Target
	for _, row := range deployment.Roles {
		if row.Machines == nil || !row.RunsNodes {
			continue
		}
		var gateways []deployment.MachineRef
		if row.Gateway != "" {
			if gw, ok := deployment.Lookup(row.Gateway); ok {
				gateways = gw.Machines(s).VMs
			}
		}
		for _, m := range row.Machines(s).VMs {
			targets = append(targets, Target{Machine: m, Via: matchGateway(m, gateways)})
		}
	}
	return targets
}

func matchGateway(m deployment.MachineRef, gateways []deployment.MachineRef) netip.Addr {
	switch len(gateways) {
	case 0:
		return netip.Addr{}
	case 1:
		return gateways[0].PublicAddress
	}
	idx, ok := naming.ServerIndex(m.Name)
	if !ok {
		return netip.Addr{}
	}
	for _, gw := range gateways {
		if gi, ok := naming.ServerIndex(gw.Name); ok && gi == idx {
			return gw.PublicAddress
		}
	}
	return netip.Addr{}
}

// Filter keeps the targets whose machine name contains substr.
func Filter(targets []Target, substr string) []Target {
	if substr == "" {
		return targets
	}
	var out []Target
	for _, t := range targets {
		if strings.Contains(t.Machine.Name, substr) {
			out = append(out, t)
		}
	}
	return out
}

// Dir returns the local log directory of a deployment under root.
func Dir(root, name string) string {
	return filepath.Join(root, "logs", name)
}

// Collector pulls node logs with rsync.
type Collector struct {
	Cmd        command.Runner
	SSHKeyPath string
	User       string
	// Root is the directory holding logs/<deployment>/.
	Root        string
	Concurrency int
	Observer    provisioning.Observer
	Metrics     *Metrics
}

// CollectRequest selects what to collect.
type CollectRequest struct {
	Name    string
	Targets []Target
	// Filter keeps machines whose name contains it. Empty keeps all.
	Filter string
}

// CollectReport summarises a collection run.
type CollectReport struct {
	Dest  string
	Total int
	// Synced succeeded on the first pass, Recovered after a host key reset.
	Synced     []deployment.MachineRef
	Recovered  []deployment.MachineRef
	Unresolved []deployment.MachineRef
	// HostKeyResets counts ssh-keygen -R invocations.
	HostKeyResets int
}

// Collect syncs logs from every selected machine into
// <root>/logs/<name>/<machine>/. Machines that fail are retried once,
// sequentially, after their known-hosts entry is removed. Per-machine
// failures never fail the batch; only local setup errors are returned.
func (c *Collector) Collect(ctx context.Context, req CollectRequest) (*CollectReport, error) {
	obs := c.observer()
	start := time.Now()

	root, err := filepath.Abs(c.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve logs root: %w", err)
	}
	targets := Filter(req.Targets, req.Filter)
	dest := Dir(root, req.Name)
	for _, t := range targets {
		if err := os.MkdirAll(filepath.Join(dest, t.Machine.Name), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory for %s: %w", t.Machine.Name, err)
		}
	}

	report := &CollectReport{Dest: dest, Total: len(targets)}
	if len(targets) == 0 {
		obs.Printf("[Logs] No machines to collect from")
		return report, nil
	}

	var done atomic.Int64
	advance := func() {
		obs.Progress("Logs", int(done.Add(1)), len(targets))
	}

	obs.Printf("[Logs] Starting to rsync the log files from %d machines", len(targets))
	failures := async.ForEach(ctx, targets, c.Concurrency, func(ctx context.Context, t Target) error {
		if err := c.sync(ctx, dest, t); err != nil {
			return err
		}
		advance()
		return nil
	})

	failed := make(map[deployment.MachineRef]bool, len(failures))
	retrySet := make([]Target, 0, len(failures))
	for _, f := range failures {
		obs.Printf("[Logs] Failed to rsync %s, retrying after host key reset: %v", f.Item.Machine, f.Err)
		failed[f.Item.Machine] = true
		retrySet = append(retrySet, f.Item)
	}
	for _, t := range targets {
		if !failed[t.Machine] {
			report.Synced = append(report.Synced, t.Machine)
			c.Metrics.record(req.Name, "rsync", resultSynced)
		}
	}
	sort.Slice(retrySet, func(i, j int) bool { return retrySet[i].Machine.Name < retrySet[j].Machine.Name })

	for _, t := range retrySet {
		if err := c.retry(ctx, dest, t, report); err != nil {
			obs.Printf("[Logs] Could not obtain logs for %s: %v", t.Machine, err)
			report.Unresolved = append(report.Unresolved, t.Machine)
			c.Metrics.record(req.Name, "rsync", resultUnresolved)
		} else {
			report.Recovered = append(report.Recovered, t.Machine)
			c.Metrics.record(req.Name, "rsync", resultRetried)
		}
		advance()
	}
	for range report.HostKeyResets {
		c.Metrics.hostKeyReset(req.Name)
	}
	c.Metrics.observe(req.Name, "rsync", time.Since(start))

	obs.Printf("[Logs] Rsync completed: %d synced, %d recovered, %d unresolved",
		len(report.Synced), len(report.Recovered), len(report.Unresolved))
	return report, nil
}

func (c *Collector) retry(ctx context.Context, dest string, t Target, report *CollectReport) error {
	report.HostKeyResets++
	_, err := c.Cmd.Run(ctx, command.Cmd{
		Binary: sshKeygenBinary,
		Args:   []string{"-R", t.Machine.PublicAddress.String()},
	})
	if err != nil {
		return fmt.Errorf("failed to reset host key: %w", err)
	}
	if err := c.sync(ctx, dest, t); err != nil {
		return fmt.Errorf("rsync failed after host key reset: %w", err)
	}
	return nil
}

func (c *Collector) sync(ctx context.Context, dest string, t Target) error {
	_, err := c.Cmd.Run(ctx, command.Cmd{
		Binary: rsyncBinary,
		Args:   RsyncArgs(c.SSHKeyPath, c.user(), t, filepath.Join(dest, t.Machine.Name)),
	})
	return err
}

// RsyncArgs builds the rsync arguments that copy *.log* files from a
// machine's log directory into local.
func RsyncArgs(keyPath, user string, t Target, local string) []string {
	ssh := fmt.Sprintf("ssh -i %s -q -o StrictHostKeyChecking=no -o BatchMode=yes -o ConnectTimeout=30", keyPath)
	if t.Via.IsValid() {
		ssh += fmt.Sprintf(" -o ProxyCommand='ssh -i %s -q -o StrictHostKeyChecking=no -o BatchMode=yes -W %%h:%%p %s@%s'",
			keyPath, user, t.Via)
	}
	return []string{
		"--compress",
		"--archive",
		"--prune-empty-dirs",
		"--verbose",
		"--verbose",
		"--filter=+ */",
		"--filter=+ *.log*",
		"--filter=- *",
		"-e", ssh,
		fmt.Sprintf("%s@%s:%s", user, t.Machine.PublicAddress, RemoteLogDir),
		local,
	}
}

func (c *Collector) user() string {
	if c.User == "" {
		return "root"
	}
	return c.User
}

func (c *Collector) observer() provisioning.Observer {
	if c.Observer == nil {
		return provisioning.NewConsoleObserver()
	}
	return c.Observer
}
