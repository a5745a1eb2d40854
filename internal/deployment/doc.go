// Package deployment holds the data model shared by the provisioning engine,
// the configuration backend and the log tooling: machine references, the
// role table, the persisted topology snapshot and its stores.
//
// The role table ([Roles]) is the single place where per-role behavior is
// described. The delta calculator, the reachability gate and the infra
// backend all iterate it instead of branching on role names.
package deployment
