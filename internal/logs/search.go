package logs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/imamik/testnet-deploy/internal/deployment"
	"github.com/imamik/testnet-deploy/internal/platform/ssh"
	"github.com/imamik/testnet-deploy/internal/provisioning"
	"github.com/imamik/testnet-deploy/internal/util/async"
)

// NoMatches is written in place of output when rg finds nothing.
const NoMatches = "No matches found"

// timestampLayout renders YYYYMMDDTHHMMSS.
const timestampLayout = "20060102T150405"

// Searcher runs ripgrep over node logs on every machine.
type Searcher struct {
	Shell       provisioning.RemoteShell
	User        string
	Root        string
	Concurrency int
	Observer    provisioning.Observer
	Metrics     *Metrics
	Now         func() time.Time
}

// SearchRequest selects the machines and the rg arguments.
type SearchRequest struct {
	Name     string
	Machines []deployment.MachineRef
	Args     string
}

// SearchFailure is a machine whose search could not be completed.
type SearchFailure struct {
	Machine deployment.MachineRef
	Err     error
}

// SearchReport summarises a search run.
type SearchReport struct {
	Command string
	// Timestamp names the rg-<timestamp>.log files written.
	Timestamp string
	Matched   []deployment.MachineRef
	NoMatches []deployment.MachineRef
	Failed    []SearchFailure
}

// SearchCommand renders the remote command for args.
func SearchCommand(args string) string {
	return fmt.Sprintf("rg %s %s/", args, RemoteLogDir)
}

// Search runs the query on every machine in parallel and stores each result
// in <root>/logs/<name>/<machine>/rg-<timestamp>.log, prefixed with the
// command. Exit status 1 is rg's "no matches" and is stored as such.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchReport, error) {
	obs := s.observer()
	start := time.Now()

	root, err := filepath.Abs(s.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve logs root: %w", err)
	}
	dest := Dir(root, req.Name)
	for _, m := range req.Machines {
		if err := os.MkdirAll(filepath.Join(dest, m.Name), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory for %s: %w", m.Name, err)
		}
	}

	report := &SearchReport{
		Command:   SearchCommand(req.Args),
		Timestamp: s.now().UTC().Format(timestampLayout),
	}
	obs.Printf("[Logs] Running ripgrep with command: %s", report.Command)

	var (
		mu   sync.Mutex
		done atomic.Int64
	)
	failures := async.ForEach(ctx, req.Machines, s.Concurrency, func(ctx context.Context, m deployment.MachineRef) error {
		defer func() { obs.Progress("Search", int(done.Add(1)), len(req.Machines)) }()

		matched := true
		lines, err := s.Shell.RunCommand(ctx, m.PublicAddress, s.user(), report.Command, true)
		if err != nil {
			if status, ok := ssh.ExitStatus(err); !ok || status != 1 {
				return fmt.Errorf("rg query failed: %w", err)
			}
			matched = false
			lines = []string{NoMatches}
		}
		path := filepath.Join(dest, m.Name, fmt.Sprintf("rg-%s.log", report.Timestamp))
		if err := writeResult(path, report.Command, lines); err != nil {
			return err
		}

		mu.Lock()
		defer mu.Unlock()
		if matched {
			report.Matched = append(report.Matched, m)
		} else {
			report.NoMatches = append(report.NoMatches, m)
		}
		return nil
	})

	for _, f := range failures {
		obs.Printf("[Logs] Failed to search %s: %v", f.Item, f.Err)
		report.Failed = append(report.Failed, SearchFailure{Machine: f.Item, Err: f.Err})
		s.Metrics.record(req.Name, "rg", resultFailed)
	}
	for range report.Matched {
		s.Metrics.record(req.Name, "rg", resultMatched)
	}
	for range report.NoMatches {
		s.Metrics.record(req.Name, "rg", resultNoMatches)
	}
	deployment.SortByName(report.Matched)
	deployment.SortByName(report.NoMatches)
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Machine.Name < report.Failed[j].Machine.Name })
	s.Metrics.observe(req.Name, "rg", time.Since(start))

	obs.Printf("[Logs] Ripgrep completed: %d with matches, %d without, %d failed",
		len(report.Matched), len(report.NoMatches), len(report.Failed))
	return report, nil
}

func writeResult(path, cmd string, lines []string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Command: %s\n", cmd)
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to store output: %w", err)
	}
	return nil
}

func (s *Searcher) user() string {
	if s.User == "" {
		return "root"
	}
	return s.User
}

func (s *Searcher) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Searcher) observer() provisioning.Observer {
	if s.Observer == nil {
		return provisioning.NewConsoleObserver()
	}
	return s.Observer
}
