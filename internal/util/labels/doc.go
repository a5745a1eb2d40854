// Package labels provides consistent labeling for Hetzner Cloud servers.
//
// Every server of a deployment carries the deployment name, its role and
// the managing tool, so the infra backend can rebuild the topology from
// labels alone.
package labels
