package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imamik/hvplane/cmd/hvplane/handlers"
	"github.com/imamik/hvplane/internal/hypervisor"
)

// VM returns the command group for virtual machines.
func VM() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vm",
		Short: "Locate, create and control virtual machines",
	}

	cmd.AddCommand(vmLocate())
	cmd.AddCommand(vmDetails())
	cmd.AddCommand(vmCreate())
	cmd.AddCommand(vmAction())
	cmd.AddCommand(vmList())

	return cmd
}

func vmLocate() *cobra.Command {
	return &cobra.Command{
		Use:   "locate <vm-id>",
		Short: "Find the hypervisor and node that hold a VM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.VMLocate(cmd.Context(), global, args[0])
		},
	}
}

func vmDetails() *cobra.Command {
	return &cobra.Command{
		Use:     "details <vm-id>",
		Aliases: []string{"show"},
		Short:   "Show the configuration and live usage of a VM",
		Long: `Locate a VM and print its configuration (vCPUs, memory, disk, guest OS)
and current usage (CPU, memory, uptime), with the guest addresses reported
by the guest agent or VMware Tools.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.VMDetails(cmd.Context(), global, args[0])
		},
	}
}

func vmCreate() *cobra.Command {
	var in handlers.VMCreateInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a VM from an ISO image or a template",
		Long: `Create a VM on a connected hypervisor.

--template is either an ISO reference (local:iso/debian.iso or
"[datastore1] iso/debian.iso"), which boots a new empty VM, or a template id,
which is cloned. Memory and disk accept plain numbers (MiB and GiB) or
quantities such as 4Gi.
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.VMCreate(cmd.Context(), global, in)
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "VM name")
	cmd.Flags().StringVar(&in.Description, "description", "", "VM description")
	cmd.Flags().StringVar(&in.Hypervisor, "hypervisor", "", "Target hypervisor id or name")
	cmd.Flags().IntVar(&in.CPU, "cpu", 1, "vCPUs")
	cmd.Flags().StringVar(&in.Memory, "memory", "1Gi", "Memory (MiB or quantity)")
	cmd.Flags().StringVar(&in.Disk, "disk", "20Gi", "Disk (GiB or quantity)")
	cmd.Flags().StringVar(&in.Template, "template", "", "ISO reference or template id")
	cmd.Flags().StringVar(&in.Node, "node", "", "Target node (default: first node)")
	cmd.Flags().StringVar(&in.Storage, "storage", "", "Storage pool (default: provisioning.storage)")
	cmd.Flags().StringSliceVar(&in.Tags, "tag", nil, "Tag to add (repeatable)")
	cmd.Flags().BoolVar(&in.Start, "start", false, "Power the VM on after creation")
	cmd.Flags().StringVar(&in.TicketID, "ticket", "", "Ticket id to link")
	cmd.Flags().StringVar(&in.ClientID, "client", "", "Client id to link")
	cmd.Flags().StringVar(&in.CreatedBy, "created-by", "", "Creator recorded in the inventory")

	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("hypervisor")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

func vmAction() *cobra.Command {
	return &cobra.Command{
		Use:       "action <vm-id> <action>",
		Short:     "Run a power action on a VM",
		Long:      fmt.Sprintf("Run a power action on a VM. Actions: %s.\n", strings.Join(actionNames(), ", ")),
		Args:      cobra.ExactArgs(2),
		ValidArgs: actionNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.VMAction(cmd.Context(), global, args[0], args[1])
		},
	}
}

func vmList() *cobra.Command {
	var hypervisorID string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List VMs created through hvplane",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.VMList(cmd.Context(), global, hypervisorID)
		},
	}

	cmd.Flags().StringVar(&hypervisorID, "hypervisor", "", "Only list VMs of this hypervisor")

	return cmd
}

func actionNames() []string {
	names := make([]string, 0, len(hypervisor.Actions))
	for _, a := range hypervisor.Actions {
		names = append(names, string(a))
	}
	return names
}
