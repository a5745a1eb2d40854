// Package hcloud implements the infra backend on Hetzner Cloud.
//
// Servers are identified by labels only: the deployment name, the role and
// a stable 1-based index. Apply creates the servers missing from a spec and
// never deletes; CurrentTopology rebuilds a snapshot from the labels of the
// servers that exist.
//
//   - client.go: hcloud-go wrapper with retry and timeout handling
//   - backend.go: provisioning.InfraBackend over the client
//   - errors.go: error classification for retry logic
package hcloud
