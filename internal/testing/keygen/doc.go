// Package keygen generates throwaway SSH key pairs for tests that run an
// in-process SSH server.
package keygen
