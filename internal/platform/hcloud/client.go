package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/testnet-deploy/internal/config"
	"github.com/imamik/testnet-deploy/internal/provisioning"
	"github.com/imamik/testnet-deploy/internal/util/retry"
)

// ServerCreateOpts holds all parameters for creating an HCloud server.
type ServerCreateOpts struct {
	Name       string
	ImageType  string
	ServerType string
	Location   string
	SSHKeys    []string
	Labels     map[string]string
}

// ServerAPI is the part of the Hetzner API the backend uses.
type ServerAPI interface {
	// ListServers returns all servers matching a label selector.
	ListServers(ctx context.Context, selector string) ([]*hcloud.Server, error)
	// CreateServer creates a server and waits for it to be running.
	CreateServer(ctx context.Context, opts ServerCreateOpts) (*hcloud.Server, error)
}

// RealClient implements ServerAPI using the Hetzner Cloud API.
type RealClient struct {
	client   *hcloud.Client
	timeouts *config.Timeouts
	logger   provisioning.Logger
}

// ClientOption configures a RealClient.
type ClientOption func(*RealClient)

// WithTimeouts sets custom timeouts for the client.
func WithTimeouts(t *config.Timeouts) ClientOption {
	return func(c *RealClient) {
		c.timeouts = t
	}
}

// WithLogger reports API retries to l.
func WithLogger(l provisioning.Logger) ClientOption {
	return func(c *RealClient) {
		c.logger = l
	}
}

// WithHCloudClient sets a custom hcloud client (useful for testing).
func WithHCloudClient(hc *hcloud.Client) ClientOption {
	return func(c *RealClient) {
		c.client = hc
	}
}

// NewRealClient creates a new RealClient with optional configuration.
func NewRealClient(token string, opts ...ClientOption) *RealClient {
	c := &RealClient{
		client:   hcloud.NewClient(hcloud.WithToken(token), hcloud.WithApplication("testnet-deploy", "")),
		timeouts: config.LoadTimeouts(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListServers implements ServerAPI.
func (c *RealClient) ListServers(ctx context.Context, selector string) ([]*hcloud.Server, error) {
	servers, err := c.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: selector},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	return servers, nil
}

// CreateServer implements ServerAPI.
func (c *RealClient) CreateServer(ctx context.Context, opts ServerCreateOpts) (*hcloud.Server, error) {
	serverType, _, err := c.client.ServerType.Get(ctx, opts.ServerType)
	if err != nil {
		return nil, fmt.Errorf("failed to get server type: %w", err)
	}
	if serverType == nil {
		return nil, fmt.Errorf("server type not found: %s", opts.ServerType)
	}

	image, _, err := c.client.Image.GetForArchitecture(ctx, opts.ImageType, serverType.Architecture)
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	if image == nil {
		return nil, fmt.Errorf("image not found: %s", opts.ImageType)
	}

	sshKeys, err := c.resolveSSHKeys(ctx, opts.SSHKeys)
	if err != nil {
		return nil, err
	}

	var location *hcloud.Location
	if opts.Location != "" {
		location, _, err = c.client.Location.Get(ctx, opts.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to get location %s: %w", opts.Location, err)
		}
		if location == nil {
			return nil, fmt.Errorf("location not found: %s", opts.Location)
		}
	}

	var result hcloud.ServerCreateResult
	err = retry.Do(ctx, func() error {
		res, _, err := c.client.Server.Create(ctx, hcloud.ServerCreateOpts{
			Name:       opts.Name,
			ServerType: serverType,
			Image:      image,
			SSHKeys:    sshKeys,
			Location:   location,
			Labels:     opts.Labels,
		})
		if err != nil {
			if isPermanent(err) {
				return retry.Fatal(err)
			}
			return err
		}
		result = res
		return nil
	},
		retry.WithMaxRetries(c.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(c.timeouts.RetryInitialDelay),
		retry.WithOnRetry(func(attempt int, err error) {
			if c.logger != nil {
				c.logger.Printf("[hcloud] Create %s failed (attempt %d), retrying: %v", opts.Name, attempt, err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create server %s: %w", opts.Name, err)
	}

	if err := c.client.Action.WaitFor(ctx, result.Action); err != nil {
		return nil, fmt.Errorf("failed to wait for server %s: %w", opts.Name, err)
	}
	return result.Server, nil
}

// resolveSSHKeys resolves SSH key names/IDs to SSH key objects.
func (c *RealClient) resolveSSHKeys(ctx context.Context, names []string) ([]*hcloud.SSHKey, error) {
	keys := make([]*hcloud.SSHKey, 0, len(names))
	for _, name := range names {
		key, _, err := c.client.SSHKey.Get(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to get ssh key %s: %w", name, err)
		}
		if key == nil {
			return nil, fmt.Errorf("ssh key not found: %s", name)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
