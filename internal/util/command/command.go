// Package command runs local binaries (ansible, rsync, ssh-keygen) with
// captured output and typed exit errors.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Run waits for output pipes after the process
// was killed on cancellation.
const waitDelay = 10 * time.Second

// Cmd describes one invocation.
type Cmd struct {
	Binary string
	Args   []string
	Dir    string
	// Env is appended to the current process environment.
	Env []string
	// Stream, when set, also receives stdout and stderr as they are written.
	Stream io.Writer
}

func (c Cmd) String() string {
	return strings.TrimSpace(c.Binary + " " + strings.Join(c.Args, " "))
}

// Result holds captured output.
type Result struct {
	Stdout string
	Stderr string
}

// Lines returns the non-empty trimmed lines of stdout.
func (r Result) Lines() []string {
	var lines []string
	for _, line := range strings.Split(r.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// ExitError reports a binary that ran and exited non-zero.
type ExitError struct {
	Binary string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Binary, e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Code returns the exit code carried by err, if any.
func Code(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// Runner runs commands. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner. A non-zero exit is an *ExitError; a binary that
// could not be started is returned wrapped.
func (ExecRunner) Run(ctx context.Context, c Cmd) (Result, error) {
	// #nosec G204 - binaries come from fixed call sites, arguments are not shell-interpreted
	cmd := exec.CommandContext(ctx, c.Binary, c.Args...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = waitDelay
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if c.Stream != nil {
		cmd.Stdout = io.MultiWriter(&stdout, c.Stream)
		cmd.Stderr = io.MultiWriter(&stderr, c.Stream)
	}

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return res, &ExitError{Binary: c.Binary, Code: exitErr.ExitCode(), Stderr: strings.TrimSpace(res.Stderr)}
	}
	if ctx.Err() != nil {
		return res, fmt.Errorf("%s interrupted: %w", c.Binary, ctx.Err())
	}
	return res, fmt.Errorf("failed to run %s: %w", c.Binary, err)
}
