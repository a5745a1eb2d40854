// Package naming provides consistent names for deployment resources.
//
// Servers are named {deployment}-{role}-{index}. The index is 1-based and
// stable, so a name identifies the same machine across runs.
package naming
