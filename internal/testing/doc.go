// Package testing provides test utilities, builders, and mocks shared by the
// package tests.
//
//   - SnapshotBuilder: fluent builder for deployment snapshots
//   - MockInfraBackend, MockConfigBackend, MockRemoteShell, MockProvisioner:
//     testify mocks of the engine's collaborators
//   - MemoryStore: an in-memory snapshot store that counts saves
//
// Usage:
//
//	snap := testing.NewSnapshotBuilder("beta").
//	    WithRole(deployment.RoleGeneric, 20, "10.0.1.1", "10.0.1.2").
//	    Build()
package testing
