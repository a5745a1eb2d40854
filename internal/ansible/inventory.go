package ansible

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/imamik/testnet-deploy/internal/deployment"
	"github.com/imamik/testnet-deploy/internal/util/labels"
)

// hcloudPlugin is the dynamic inventory plugin shipped with the
// hetzner.hcloud collection.
const hcloudPlugin = "hetzner.hcloud.hcloud"

// InventoryFile is the hcloud dynamic inventory definition for one role
// group. Hosts are selected by the labels the infra backend sets.
type InventoryFile struct {
	Plugin        string            `yaml:"plugin"`
	TokenEnv      string            `yaml:"token_env"`
	LabelSelector string            `yaml:"label_selector"`
	ConnectWith   string            `yaml:"connect_with"`
	Groups        map[string]string `yaml:"groups"`
	Compose       map[string]string `yaml:"compose,omitempty"`
}

// InventoryPath returns the inventory file for a role group of a
// deployment, e.g. inventory/.beta_node_inventory_hetzner.yml.
func InventoryPath(dir, name, group, provider string) string {
	return filepath.Join(dir, fmt.Sprintf(".%s_%s_inventory_%s.yml", name, group, provider))
}

// NewInventoryFile builds the definition for one role.
func NewInventoryFile(name string, spec deployment.RoleSpec) InventoryFile {
	return InventoryFile{
		Plugin:        hcloudPlugin,
		TokenEnv:      "HCLOUD_TOKEN",
		LabelSelector: labels.SelectorForRole(name, string(spec.Role)),
		ConnectWith:   "public_ipv4",
		Groups:        map[string]string{spec.Inventory: "true"},
		Compose:       map[string]string{"ansible_host": "ipv4"},
	}
}

// WriteInventories writes one inventory file per role into dir and returns
// the paths written. Existing files are replaced.
func WriteInventories(dir, name, provider string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create inventory directory: %w", err)
	}
	paths := make([]string, 0, len(deployment.Roles))
	for _, spec := range deployment.Roles {
		data, err := yaml.Marshal(NewInventoryFile(name, spec))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s inventory: %w", spec.Inventory, err)
		}
		path := InventoryPath(dir, name, spec.Inventory, provider)
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
