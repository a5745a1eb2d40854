package config

import (
	"path/filepath"
)

// DefaultConfigFilename is the default configuration filename.
const DefaultConfigFilename = "testnet-deploy.yaml"

// Default values applied to fields the config file leaves empty.
const (
	DefaultProvider    = "hetzner"
	DefaultSSHUser     = "root"
	DefaultWorkingDir  = "resources"
	DefaultLogsRoot    = "."
	DefaultConcurrency = 10
	DefaultBucket      = "sn-testnet"
	DefaultRegion      = "eu-west-2"
	DefaultLocation    = "nbg1"
	DefaultImage       = "ubuntu-24.04"
)

// Config holds the application configuration.
type Config struct {
	Provider   string `yaml:"provider"`
	SSHUser    string `yaml:"ssh_user"`
	SSHKeyPath string `yaml:"ssh_key_path"`

	// WorkingDir holds the ansible playbooks and generated inventories.
	WorkingDir string `yaml:"working_dir"`
	// LogsRoot is the directory under which logs/<deployment> is created.
	LogsRoot string `yaml:"logs_root"`
	// Concurrency bounds the log sync and search fan-outs.
	Concurrency int `yaml:"concurrency"`
	// StateDB is the SQLite file caching deployment snapshots. Empty
	// disables the local cache.
	StateDB string `yaml:"state_db"`

	HCloud  HCloudConfig  `yaml:"hcloud"`
	S3      S3Config      `yaml:"s3"`
	Ansible AnsibleConfig `yaml:"ansible"`
}

// HCloudConfig configures the Hetzner Cloud infra backend.
type HCloudConfig struct {
	Token      string `yaml:"-"`
	Location   string `yaml:"location"`
	Image      string `yaml:"image"`
	SSHKeyName string `yaml:"ssh_key_name"`
	// ServerTypes maps a role name to its server type. Roles that are not
	// listed use the environment default.
	ServerTypes map[string]string `yaml:"server_types"`
}

// S3Config configures the object store holding snapshots and logs.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"-"`
	SecretAccessKey string `yaml:"-"`
}

// AnsibleConfig configures the configuration backend.
type AnsibleConfig struct {
	Forks   int  `yaml:"forks"`
	Verbose bool `yaml:"verbose"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.SSHUser == "" {
		c.SSHUser = DefaultSSHUser
	}
	if c.WorkingDir == "" {
		c.WorkingDir = DefaultWorkingDir
	}
	if c.LogsRoot == "" {
		c.LogsRoot = DefaultLogsRoot
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.S3.Bucket == "" {
		c.S3.Bucket = DefaultBucket
	}
	if c.S3.Region == "" {
		c.S3.Region = DefaultRegion
	}
	if c.HCloud.Location == "" {
		c.HCloud.Location = DefaultLocation
	}
	if c.HCloud.Image == "" {
		c.HCloud.Image = DefaultImage
	}
}

// AnsibleDir returns the directory containing playbooks.
func (c *Config) AnsibleDir() string {
	return filepath.Join(c.WorkingDir, "ansible")
}

// InventoryDir returns the directory holding generated inventories.
func (c *Config) InventoryDir() string {
	return filepath.Join(c.AnsibleDir(), "inventory")
}

// LogsDir returns the local log directory of a deployment.
func (c *Config) LogsDir(name string) string {
	return filepath.Join(c.LogsRoot, "logs", name)
}
