package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/hvplane/cmd/hvplane/handlers"
)

// Hypervisor returns the command group for hypervisor records.
func Hypervisor() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "hypervisor",
		Aliases: []string{"hv"},
		Short:   "Manage hypervisor connection records",
	}

	cmd.AddCommand(hypervisorAdd())
	cmd.AddCommand(hypervisorList())
	cmd.AddCommand(hypervisorUpdate())
	cmd.AddCommand(hypervisorConnect())
	cmd.AddCommand(hypervisorRemove())

	return cmd
}

func hypervisorAdd() *cobra.Command {
	var in handlers.HypervisorAddInput

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store a new hypervisor",
		Long: `Store a Proxmox VE or vSphere connection record.

Proxmox authenticates with an API token (--username root@pam --token-name
automation). vSphere and ESXi authenticate with username and password.
The secret is read from --secret or the HVPLANE_SECRET environment variable.

New records start disconnected. Run 'hvplane hypervisor connect' to check them.
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.HypervisorAdd(cmd.Context(), global, in)
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&in.Type, "type", "", "Backend type: proxmox or vsphere")
	cmd.Flags().StringVar(&in.Host, "host", "", "Host or host:port of the API endpoint")
	cmd.Flags().StringVar(&in.Username, "username", "", "API user")
	cmd.Flags().StringVar(&in.TokenName, "token-name", "", "Proxmox API token name")
	cmd.Flags().StringVar(&in.Secret, "secret", "", "Token secret or password (default: $HVPLANE_SECRET)")
	cmd.Flags().BoolVar(&in.Insecure, "insecure", false, "Skip TLS certificate verification for this hypervisor")

	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("host")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func hypervisorList() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored hypervisors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.HypervisorList(cmd.Context(), global)
		},
	}
}

func hypervisorUpdate() *cobra.Command {
	var (
		in       handlers.HypervisorUpdateInput
		insecure bool
	)

	cmd := &cobra.Command{
		Use:   "update <id|name>",
		Short: "Change a stored hypervisor",
		Long: `Change the connection fields of a stored hypervisor. Flags that are not
given keep their stored value. The record keeps its id and returns to
disconnected; run 'hvplane hypervisor connect' to check it again.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("insecure") {
				in.Insecure = &insecure
			}
			return handlers.HypervisorUpdate(cmd.Context(), global, args[0], in)
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&in.Type, "type", "", "Backend type: proxmox or vsphere")
	cmd.Flags().StringVar(&in.Host, "host", "", "Host or host:port of the API endpoint")
	cmd.Flags().StringVar(&in.Username, "username", "", "API user")
	cmd.Flags().StringVar(&in.TokenName, "token-name", "", "Proxmox API token name")
	cmd.Flags().StringVar(&in.Secret, "secret", "", "Token secret or password (default: $HVPLANE_SECRET)")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "Skip TLS certificate verification for this hypervisor")

	return cmd
}

func hypervisorConnect() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "connect [id|name]",
		Short: "Check a hypervisor and record its status",
		Long: `Check a hypervisor and record its status, subtype and last sync time.

With --all every stored hypervisor is checked concurrently.
`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				return handlers.HypervisorConnectAll(cmd.Context(), global)
			}
			return handlers.HypervisorConnect(cmd.Context(), global, args[0])
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Check every stored hypervisor")

	return cmd
}

func hypervisorRemove() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id|name>",
		Aliases: []string{"rm"},
		Short:   "Delete a hypervisor record",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.HypervisorRemove(cmd.Context(), global, args[0])
		},
	}
}
