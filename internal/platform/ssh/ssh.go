// Package ssh runs commands on deployment machines over SSH.
//
// Security: Host key verification is disabled by default. Testnet machines
// are recreated often and their host keys are never pinned.
package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/imamik/testnet-deploy/internal/util/retry"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
	defaultMaxRetries  = 30
	defaultRetryDelay  = 10 * time.Second
	defaultMaxDelay    = 30 * time.Second
)

// Config holds SSH client configuration.
type Config struct {
	Port       int
	PrivateKey []byte

	// DialTimeout is the timeout for establishing the TCP connection.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// MaxRetries is the maximum number of connection retry attempts made
	// by WaitForReachable. If zero, defaultMaxRetries is used.
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts.
	// If zero, defaultRetryDelay is used.
	RetryDelay time.Duration

	// HostKeyCallback handles host key verification.
	// If nil, ssh.InsecureIgnoreHostKey() is used.
	HostKeyCallback ssh.HostKeyCallback
}

// ExitError is returned when a remote command exits with a non-zero status.
type ExitError struct {
	Addr    netip.Addr
	Command string
	Status  int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command exited with status %d on %s: %s", e.Status, e.Addr, e.Command)
	if e.Stderr != "" {
		msg += "\n" + e.Stderr
	}
	return msg
}

// ExitStatus returns the remote exit status carried by err, if any.
func ExitStatus(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Status, true
	}
	return 0, false
}

// Client executes commands on any machine reachable with one private key.
// It parses the key once during construction and dials per call.
type Client struct {
	config *Config
	signer ssh.Signer
}

// NewClient creates a new SSH client and validates the private key.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("config private key cannot be empty")
	}

	// Copy config to avoid mutating caller's struct
	configCopy := *cfg

	if configCopy.Port == 0 {
		configCopy.Port = defaultPort
	}
	if configCopy.DialTimeout == 0 {
		configCopy.DialTimeout = defaultDialTimeout
	}
	if configCopy.MaxRetries == 0 {
		configCopy.MaxRetries = defaultMaxRetries
	}
	if configCopy.RetryDelay == 0 {
		configCopy.RetryDelay = defaultRetryDelay
	}
	if configCopy.HostKeyCallback == nil {
		configCopy.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // testnet hosts are ephemeral
	}

	signer, err := ssh.ParsePrivateKey(configCopy.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &Client{
		config: &configCopy,
		signer: signer,
	}, nil
}

// WaitForReachable retries until an SSH session can be opened on addr as
// user, the retry budget is spent, or ctx is done.
func (c *Client) WaitForReachable(ctx context.Context, addr netip.Addr, user string) error {
	client, err := c.connect(ctx, addr, user,
		retry.WithMaxRetries(c.config.MaxRetries),
		retry.WithInitialDelay(c.config.RetryDelay),
		retry.WithMaxDelay(defaultMaxDelay),
	)
	if err != nil {
		return err
	}
	return client.Close()
}

// RunCommand runs command on addr. With capture set the stdout lines are
// returned verbatim; otherwise output is discarded. A non-zero exit
// is reported as an *ExitError.
func (c *Client) RunCommand(ctx context.Context, addr netip.Addr, user, command string, capture bool) ([]string, error) {
	client, err := c.connect(ctx, addr, user, retry.WithMaxRetries(0))
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH session on %s: %w", addr, err)
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	if capture {
		session.Stdout = &stdout
	}
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return nil, ctx.Err()
	case err = <-done:
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ExitError{
				Addr:    addr,
				Command: command,
				Status:  exitErr.ExitStatus(),
				Stderr:  strings.TrimSpace(stderr.String()),
			}
		}
		return nil, fmt.Errorf("command failed on %s: %w\nCommand: %s", addr, err, command)
	}

	if !capture {
		return nil, nil
	}
	return splitLines(stdout.Bytes()), nil
}

// connect establishes an SSH connection, retrying per opts.
func (c *Client) connect(ctx context.Context, addr netip.Addr, user string, opts ...retry.Option) (*ssh.Client, error) {
	if !addr.IsValid() {
		return nil, fmt.Errorf("invalid address for SSH connection")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	config := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(c.signer),
		},
		HostKeyCallback: c.config.HostKeyCallback,
		Timeout:         c.config.DialTimeout,
	}

	target := net.JoinHostPort(addr.String(), strconv.Itoa(c.config.Port))
	dialer := &net.Dialer{Timeout: c.config.DialTimeout}
	var client *ssh.Client

	err := retry.Do(ctx, func() error {
		conn, err := dialer.DialContext(ctx, "tcp", target)
		if err != nil {
			return err
		}
		sshConn, chans, reqs, err := ssh.NewClientConn(conn, target, config)
		if err != nil {
			_ = conn.Close()
			return err
		}
		client = ssh.NewClient(sshConn, chans, reqs)
		return nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to establish SSH connection to %s: %w", target, err)
	}
	return client, nil
}

// splitLines returns the output lines exactly as printed, without the final
// newline. Empty output has no lines.
func splitLines(out []byte) []string {
	if len(out) == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
}
