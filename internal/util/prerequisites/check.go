// Package prerequisites checks that the local tools the CLI shells out to
// are on PATH.
package prerequisites

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// versionTimeout bounds each version probe.
const versionTimeout = 2 * time.Second

// Tool is a local binary the CLI runs.
type Tool struct {
	Name     string
	Required bool
	// Description says which command needs the tool.
	Description string
	InstallURL  string
	// VersionArgs print the tool's version. Empty skips the probe.
	VersionArgs []string
}

// DefaultTools returns the tools every deployment run shells out to.
func DefaultTools() []Tool {
	return []Tool{
		{
			Name:        "ansible-playbook",
			Required:    true,
			Description: "Runs the provisioning playbooks against each role",
			InstallURL:  "https://docs.ansible.com/ansible/latest/installation_guide/",
			VersionArgs: []string{"--version"},
		},
		{
			Name:        "ansible-inventory",
			Required:    true,
			Description: "Resolves the live inventory of each role",
			InstallURL:  "https://docs.ansible.com/ansible/latest/installation_guide/",
			VersionArgs: []string{"--version"},
		},
	}
}

// LogTools returns the tools needed to collect logs from machines.
func LogTools() []Tool {
	return []Tool{
		{
			Name:        "rsync",
			Required:    true,
			Description: "Copies node logs from every machine",
			InstallURL:  "https://rsync.samba.org/download.html",
			VersionArgs: []string{"--version"},
		},
		{
			// ssh-keygen has no version flag.
			Name:        "ssh-keygen",
			Required:    true,
			Description: "Clears stale host keys before retrying a failed sync",
			InstallURL:  "https://www.openssh.com/portable.html",
		},
	}
}

// CheckResult is the outcome for one tool.
type CheckResult struct {
	Tool    Tool
	Found   bool
	Path    string
	Version string
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors reports whether a required tool is missing.
func (r *CheckResults) HasErrors() bool {
	return r.Error() != nil
}

// Error lists the missing required tools, or returns nil.
func (r *CheckResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, fmt.Sprintf("%s (%s)", tool.Name, tool.InstallURL))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// lookPath and probeVersion are replaced in tests.
var (
	lookPath     = exec.LookPath
	probeVersion = toolVersion
)

// Check looks every tool up on PATH and probes the version of those found.
func Check(tools []Tool) *CheckResults {
	results := &CheckResults{}
	for _, tool := range tools {
		result := CheckResult{Tool: tool}
		if path, err := lookPath(tool.Name); err == nil {
			result.Found = true
			result.Path = path
			result.Version = probeVersion(path, tool.VersionArgs)
		} else {
			results.Missing = append(results.Missing, tool)
		}
		results.Results = append(results.Results, result)
	}
	return results
}

// CheckDefault checks the tools deployment commands need.
func CheckDefault() *CheckResults {
	return Check(DefaultTools())
}

// CheckForLogs checks the tools needed for log collection.
func CheckForLogs() *CheckResults {
	return Check(LogTools())
}

// CheckAll checks every tool the CLI may use.
func CheckAll() *CheckResults {
	return Check(append(DefaultTools(), LogTools()...))
}

// toolVersion returns the first non-empty output line of path args, or ""
// when the probe fails.
func toolVersion(path string, args []string) string {
	if len(args) == 0 {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), versionTimeout)
	defer cancel()

	// #nosec G204 - path and args come from the fixed tool table
	out, err := exec.CommandContext(ctx, path, args...).Output()
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
