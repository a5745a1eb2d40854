// Package main is the entry point for the testnet-deploy CLI.
//
// testnet-deploy provisions and grows multi-role test networks on Hetzner
// Cloud, configures them with Ansible and collects their logs.
//
// Commands: upscale, bootstrap, inventory, logs, doctor, version.
//
// For detailed usage information, run:
//
//	testnet-deploy --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/testnet-deploy/cmd/testnet-deploy/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
