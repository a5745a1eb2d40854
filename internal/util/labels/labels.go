package labels

import (
	"sort"
	"strings"
)

// Standard label keys for Hetzner Cloud resources.
const (
	// KeyDeployment identifies which deployment a server belongs to
	KeyDeployment = "testnet-deploy/deployment"

	// KeyRole identifies the role of a server (genesis, generic, ...)
	KeyRole = "testnet-deploy/role"

	// KeyIndex is the server's 1-based position within its role
	KeyIndex = "testnet-deploy/index"

	// KeyManagedBy identifies the management system
	KeyManagedBy = "testnet-deploy/managed-by"

	// KeyEnvironment carries the environment type
	KeyEnvironment = "testnet-deploy/environment"
)

// ManagedBy is the value of KeyManagedBy on every resource this tool creates.
const ManagedBy = "testnet-deploy"

// LabelBuilder provides a fluent interface for building Hetzner Cloud resource labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a new label builder with the deployment name pre-set.
func NewLabelBuilder(deployment string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyDeployment: deployment,
			KeyManagedBy:  ManagedBy,
		},
	}
}

// WithRole adds a role label.
func (lb *LabelBuilder) WithRole(role string) *LabelBuilder {
	lb.labels[KeyRole] = role
	return lb
}

// WithIndex adds the position label.
func (lb *LabelBuilder) WithIndex(index string) *LabelBuilder {
	lb.labels[KeyIndex] = index
	return lb
}

// WithEnvironment adds the environment type label when set.
func (lb *LabelBuilder) WithEnvironment(env string) *LabelBuilder {
	if env != "" {
		lb.labels[KeyEnvironment] = env
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// Selector renders labels as a Hetzner label selector, sorted by key.
func Selector(labels map[string]string) string {
	parts := make([]string, 0, len(labels))
	for k, v := range labels {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// SelectorForDeployment returns a label selector for all servers of a deployment.
func SelectorForDeployment(deployment string) string {
	return KeyDeployment + "=" + deployment
}

// SelectorForRole returns a label selector for a deployment's servers of one role.
func SelectorForRole(deployment, role string) string {
	return Selector(map[string]string{KeyDeployment: deployment, KeyRole: role})
}
