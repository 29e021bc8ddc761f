// Package main is the entry point for the hvplane CLI.
//
// hvplane manages Proxmox VE and vSphere/ESXi hypervisors through one
// control plane: it stores connection records, locates VMs across every
// connected hypervisor, provisions VMs from ISO images or templates, runs
// power actions and reports free capacity against VM plans.
//
// For detailed usage information, run:
//
//	hvplane --help
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/imamik/hvplane/cmd/hvplane/commands"
	"github.com/imamik/hvplane/cmd/hvplane/handlers"
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
		if !errors.Is(err, handlers.ErrReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
