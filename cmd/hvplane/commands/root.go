// Package commands defines the CLI command structure and flag bindings.
//
// Command execution is delegated to handler functions in the handlers
// package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/hvplane/cmd/hvplane/handlers"
)

// global holds the persistent flags of the root command.
var global handlers.Options

// Root returns the root command for the hvplane CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hvplane",
		Short:         "Manage VMs across Proxmox VE and vSphere hypervisors",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&global.ConfigPath, "config", "c", "", "Path to configuration file (default: hvplane.yaml)")
	flags.BoolVar(&global.JSON, "json", false, "Output in JSON format")
	flags.StringVar(&global.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	cmd.AddCommand(Hypervisor())
	cmd.AddCommand(Plan())
	cmd.AddCommand(VM())
	cmd.AddCommand(Capacity())
	cmd.AddCommand(Templates())
	cmd.AddCommand(Version())

	return cmd
}
