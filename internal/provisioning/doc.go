// Package provisioning orchestrates deployment runs: it resolves desired
// counts against the stored snapshot, applies the infra spec, and sequences
// the configuration stages that bring new machines into the network.
//
// # Flow
//
// ResolveCounts validates overrides with no side effects. BuildInfraSpec
// turns the resolved counts into the declarative topology handed to the
// InfraBackend. PlanStages lays out the stages and the Sequencer runs them,
// waiting on new machines through a MachineGate and resolving the network
// entry point once through an EntryPointResolver.
//
// # Failure handling
//
// Infra apply, reachability and entry point failures abort a run. A failed
// stage is recorded in the SequenceReport and the run continues; stages
// that depend on the failed role are skipped.
package provisioning
