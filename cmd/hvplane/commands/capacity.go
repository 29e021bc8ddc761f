package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/hvplane/cmd/hvplane/handlers"
)

// Capacity returns the command for capacity reports.
func Capacity() *cobra.Command {
	return &cobra.Command{
		Use:   "capacity <hypervisor>",
		Short: "Show free node capacity and plan estimates",
		Long: `Aggregate the free CPU, memory and disk of every node of a hypervisor
and estimate how many VMs of each active plan still fit per node.

Estimates are advisory. Nothing is reserved.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Capacity(cmd.Context(), global, args[0])
		},
	}
}

// Templates returns the command listing templates and ISO images.
func Templates() *cobra.Command {
	return &cobra.Command{
		Use:   "templates <hypervisor>",
		Short: "List clonable templates and ISO images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Templates(cmd.Context(), global, args[0])
		},
	}
}
