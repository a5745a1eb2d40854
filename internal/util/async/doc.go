// Package async fans a function out over a slice of items with a
// concurrency limit. [ForEach] never stops siblings on failure, which is what
// the per-machine fan-outs need.
package async
