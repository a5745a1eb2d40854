package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads .env from dir, then the config file at path, then applies
// environment overrides and defaults. A missing config file yields the
// defaults. The result is not validated.
func Load(dir, path string) (*Config, error) {
	if err := LoadDotEnv(dir); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if path == "" {
		path = filepath.Join(dir, DefaultConfigFilename)
	}
	// #nosec G304
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if cfg, err = LoadFromBytes(data); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// LoadFromBytes parses YAML data into a Config with no defaults applied.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &cfg, nil
}

// LoadDotEnv loads dir/.env into the process environment. Variables that
// are already set win. A missing file is not an error.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, name string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	override(&c.HCloud.Token, "HCLOUD_TOKEN")
	override(&c.S3.AccessKeyID, "AWS_ACCESS_KEY_ID")
	override(&c.S3.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	override(&c.S3.Endpoint, "TESTNET_S3_ENDPOINT")
	override(&c.SSHKeyPath, "SSH_KEY_PATH")
	override(&c.StateDB, "TESTNET_STATE_DB")
}
