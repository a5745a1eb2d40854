package testing

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/imamik/testnet-deploy/internal/deployment"
)

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// Machine builds a MachineRef, panicking on an invalid address.
func Machine(name, addr string) deployment.MachineRef {
	return deployment.MachineRef{Name: name, PublicAddress: netip.MustParseAddr(addr)}
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}
